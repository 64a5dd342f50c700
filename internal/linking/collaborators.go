package linking

import (
	"context"
	"fmt"
	"strings"

	"github.com/webtide/changelog-go/internal/models"
)

// Tracker looks up issues and pull requests. FetchIssueOrPR returns an
// error wrapping models.ErrNotFound when the number does not exist.
type Tracker interface {
	FetchIssueOrPR(ctx context.Context, number int) (models.TrackerItem, error)
	CloseEventCommits(ctx context.Context, issueNumber int) ([]string, error)
	PullRequestCommits(ctx context.Context, prNumber int) ([]string, error)
}

// AuthorLookup is implemented by trackers that can name the account
// behind a commit
type AuthorLookup interface {
	CommitAuthor(ctx context.Context, sha string) (string, error)
}

// VCS reads the local repository
type VCS interface {
	CommitsInRange(ctx context.Context, oldRef, newRef string) ([]models.LogEntry, error)
	ChangedPaths(ctx context.Context, sha string) ([]string, error)
	BranchesContaining(ctx context.Context, sha string) ([]string, error)
}

// TitlePriority picks which record type names a mixed change
type TitlePriority int

const (
	PriorityIssue TitlePriority = iota
	PriorityPullRequest
)

func (p TitlePriority) String() string {
	if p == PriorityPullRequest {
		return "pull-request"
	}
	return "issue"
}

// ParseTitlePriority accepts "issue" or "pull-request" (also "pr")
func ParseTitlePriority(s string) (TitlePriority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "issue":
		return PriorityIssue, nil
	case "pull-request", "pullrequest", "pr":
		return PriorityPullRequest, nil
	}
	return PriorityIssue, fmt.Errorf("unknown title priority %q", s)
}

// DefaultMaxResolveAttempts bounds how often a failing tracker lookup is retried
const DefaultMaxResolveAttempts = 3

// Options configures a run
type Options struct {
	Branch             string
	OldRef             string
	NewRef             string
	ExcludedLabels     []string
	PathExclusions     []func(string) bool
	BranchExclusions   []func(string) bool
	TitlePriority      TitlePriority
	RequireClosed      bool
	MaxResolveAttempts int
}

func (o Options) maxAttempts() int {
	if o.MaxResolveAttempts <= 0 {
		return DefaultMaxResolveAttempts
	}
	return o.MaxResolveAttempts
}

func (o Options) excludedPath(path string) bool {
	return anyMatch(o.PathExclusions, path)
}

func (o Options) excludedBranch(branch string) bool {
	return anyMatch(o.BranchExclusions, branch)
}

func (o Options) excludedLabel(labels []string) (string, bool) {
	for _, excluded := range o.ExcludedLabels {
		for _, label := range labels {
			if strings.EqualFold(strings.TrimSpace(label), strings.TrimSpace(excluded)) {
				return excluded, true
			}
		}
	}
	return "", false
}

func anyMatch(preds []func(string) bool, s string) bool {
	for _, p := range preds {
		if p(s) {
			return true
		}
	}
	return false
}
