package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
)

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"

	logFormat = "--format=%H%x1f%an%x1f%ae%x1f%ct%x1f%P%x1f%B%x1e"
)

// Reader answers version control queries by running the git binary
// against a local repository.
type Reader struct {
	repoPath string
	gitBin   string
	logger   logrus.FieldLogger
}

// NewReader creates a Reader for the repository at repoPath
func NewReader(repoPath string, logger logrus.FieldLogger) *Reader {
	return &Reader{
		repoPath: repoPath,
		gitBin:   "git",
		logger:   logging.OrDiscard(logger),
	}
}

func (r *Reader) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"-C", r.repoPath}, args...)
	cmd := exec.CommandContext(ctx, r.gitBin, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("git %s failed: %w (stderr: %s)", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// ResolveTag returns the commit sha that refs/tags/<tag> points at
func (r *Reader) ResolveTag(ctx context.Context, tag string) (string, error) {
	ref := "refs/tags/" + strings.TrimPrefix(tag, "refs/tags/")
	out, err := r.run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", errors.ConfigErrorf("tag %q does not resolve to a commit in %s", tag, r.repoPath).
			WithContext("cause", err.Error())
	}
	return models.NormalizeSHA(string(out)), nil
}

// CommitsInRange lists the commits reachable from newRef but not from
// oldRef, newest first.
func (r *Reader) CommitsInRange(ctx context.Context, oldRef, newRef string) ([]models.LogEntry, error) {
	out, err := r.run(ctx, "log", logFormat, oldRef+".."+newRef)
	if err != nil {
		return nil, err
	}

	entries, err := parseLog(string(out))
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"range":   oldRef + ".." + newRef,
		"commits": len(entries),
	}).Debug("Read commit range")
	return entries, nil
}

func parseLog(out string) ([]models.LogEntry, error) {
	var entries []models.LogEntry
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimLeft(record, "\r\n")
		if strings.TrimSpace(record) == "" {
			continue
		}

		fields := strings.SplitN(record, fieldSep, 6)
		if len(fields) != 6 {
			return nil, fmt.Errorf("malformed git log record: %q", record)
		}

		seconds, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed commit time %q: %w", fields[3], err)
		}

		title, body := splitMessage(fields[5])
		entries = append(entries, models.LogEntry{
			SHA:         models.NormalizeSHA(fields[0]),
			AuthorName:  fields[1],
			AuthorEmail: fields[2],
			CommitTime:  time.Unix(seconds, 0).UTC(),
			ParentCount: len(strings.Fields(fields[4])),
			Title:       title,
			Body:        body,
		})
	}
	return entries, nil
}

func splitMessage(message string) (title, body string) {
	message = strings.TrimSpace(message)
	title, body, _ = strings.Cut(message, "\n")
	return strings.TrimSpace(title), strings.TrimSpace(body)
}

// ChangedPaths lists the paths touched by a commit. Both sides of a rename
// are reported.
func (r *Reader) ChangedPaths(ctx context.Context, sha string) ([]string, error) {
	// -z keeps git from C-quoting paths with non-ASCII bytes, tabs or quotes
	out, err := r.run(ctx, "diff-tree", "--no-commit-id", "--root", "-r", "-M", "-z", "--name-status", sha)
	if err != nil {
		return nil, err
	}
	return parseNameStatus(string(out)), nil
}

// parseNameStatus reads NUL separated name-status records: the status, then
// one path, or two for renames and copies
func parseNameStatus(out string) []string {
	seen := make(map[string]struct{})
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); {
		status := strings.TrimSpace(fields[i])
		i++
		if status == "" {
			continue
		}

		n := 1
		if status[0] == 'R' || status[0] == 'C' {
			n = 2
		}
		for ; n > 0 && i < len(fields); n-- {
			if path := fields[i]; path != "" {
				seen[path] = struct{}{}
			}
			i++
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// BranchesContaining lists the full ref names of local and remote branches
// that contain the commit.
func (r *Reader) BranchesContaining(ctx context.Context, sha string) ([]string, error) {
	out, err := r.run(ctx, "branch", "-a", "--contains", sha, "--format=%(refname)")
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	sort.Strings(branches)
	return branches, nil
}
