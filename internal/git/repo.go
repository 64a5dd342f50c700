package git

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	httpsRemote = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/]+)`)
	sshRemote   = regexp.MustCompile(`git@[^:]+:([^/]+)/([^/]+)`)
	gitRemote   = regexp.MustCompile(`git://[^/]+/([^/]+)/([^/]+)`)
)

// ParseRepoURL extracts owner and repo name from a git remote URL.
// Supports HTTPS, SSH and git protocol URLs:
//   - https://github.com/owner/repo.git
//   - git@github.com:owner/repo.git
//   - git://github.com/owner/repo.git
func ParseRepoURL(remoteURL string) (owner, repo string, err error) {
	remoteURL = strings.TrimSuffix(strings.TrimSpace(remoteURL), ".git")

	for _, re := range []*regexp.Regexp{httpsRemote, sshRemote, gitRemote} {
		if matches := re.FindStringSubmatch(remoteURL); len(matches) == 3 {
			return matches[1], matches[2], nil
		}
	}

	return "", "", fmt.Errorf("unrecognized git URL format: %s", remoteURL)
}

// RemoteURL returns the URL of the named remote
func (r *Reader) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := r.run(ctx, "config", "--get", "remote."+remote+".url")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// RepoRoot returns the top level directory of the working tree
func (r *Reader) RepoRoot(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
