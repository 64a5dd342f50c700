package linking

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
)

// LinkStats summarizes the linkage pass
type LinkStats struct {
	ConnectedCommits       int
	IssueConnections       int
	PullRequestConnections int
	SkippedCommits         int
	SkippedIssues          int
}

// Linker cross-links resolved records with the commits of the range and
// decides which of them are skipped
type Linker struct {
	store *models.Store
	vcs   VCS
	opts  Options
	log   logrus.FieldLogger
}

// NewLinker creates a linker over store
func NewLinker(store *models.Store, vcs VCS, opts Options, log logrus.FieldLogger) *Linker {
	return &Linker{
		store: store,
		vcs:   vcs,
		opts:  opts,
		log:   logging.OrDiscard(log),
	}
}

// Run back-references commits and attaches path, branch and relevance facts.
// Commits outside the log range are never created.
func (l *Linker) Run(ctx context.Context) (LinkStats, error) {
	var relevant []*models.IssueRecord
	for _, rec := range l.store.Issues() {
		if rec.Relevant() {
			relevant = append(relevant, rec)
		}
	}

	l.log.Infof("Resolving commit branches and paths on %d issues and pull requests ...", len(relevant))

	for _, rec := range relevant {
		for _, sha := range rec.Commits.Sorted() {
			commit, ok := l.store.Commit(sha)
			if !ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return LinkStats{}, err
			}

			if rec.Kind() == models.RefTypePullRequest {
				commit.PullRequestRefs.Add(rec.Number)
			} else {
				commit.IssueRefs.Add(rec.Number)
			}

			if commit.Skipped() {
				continue
			}
			if err := l.loadCommitFacts(ctx, commit); err != nil {
				return LinkStats{}, err
			}
		}
	}

	for _, rec := range relevant {
		l.markRecord(rec)
	}

	stats := l.stats()
	l.log.WithFields(logrus.Fields{
		"connected_commits":        stats.ConnectedCommits,
		"issue_connections":        stats.IssueConnections,
		"pull_request_connections": stats.PullRequestConnections,
		"skipped_commits":          stats.SkippedCommits,
		"skipped_issues":           stats.SkippedIssues,
	}).Info("Linkage complete")
	return stats, nil
}

// loadCommitFacts fills in paths and branches once per commit
func (l *Linker) loadCommitFacts(ctx context.Context, commit *models.CommitRecord) error {
	if commit.Paths == nil {
		paths, err := l.vcs.ChangedPaths(ctx, commit.SHA)
		if err != nil {
			return errors.VCSErrorf(err, "failed to list paths of %s", commit.SHA)
		}

		commit.Paths = models.StringSet{}
		for _, p := range paths {
			if !l.opts.excludedPath(p) {
				commit.Paths.Add(p)
			}
		}
		if len(commit.Paths) == 0 {
			commit.Skip.Add(models.SkipNoInterestingPaths)
		}
	}

	if commit.Branches == nil {
		branches, err := l.vcs.BranchesContaining(ctx, commit.SHA)
		if err != nil {
			return errors.VCSErrorf(err, "failed to list branches containing %s", commit.SHA)
		}

		commit.Branches = models.NewStringSet(branches...)
		for _, b := range branches {
			if l.opts.excludedBranch(b) {
				commit.Skip.Add(models.SkipExcludedBranch)
				l.log.WithFields(logrus.Fields{"sha": shortSHA(commit.SHA), "branch": b}).Debug("Commit is on an excluded branch")
				break
			}
		}
	}
	return nil
}

// markRecord attaches the skip reasons that depend on linkage results
func (l *Linker) markRecord(rec *models.IssueRecord) {
	if rec.Kind() == models.RefTypePullRequest && rec.BaseRef() != l.opts.Branch {
		rec.Skip.Add(models.SkipWrongBaseRef)
	}

	if l.opts.RequireClosed && !strings.EqualFold(rec.State(), "closed") {
		rec.Skip.Add(models.SkipNotClosed)
	}

	for _, sha := range rec.Commits.Sorted() {
		if commit, ok := l.store.Commit(sha); ok && !commit.Skipped() {
			return
		}
	}
	rec.Skip.Add(models.SkipNoRelevantCommits)
}

func (l *Linker) stats() LinkStats {
	var stats LinkStats
	for _, c := range l.store.Commits() {
		if len(c.IssueRefs) > 0 || len(c.PullRequestRefs) > 0 {
			stats.ConnectedCommits++
		}
		stats.IssueConnections += len(c.IssueRefs)
		stats.PullRequestConnections += len(c.PullRequestRefs)
		if c.Skipped() {
			stats.SkippedCommits++
		}
	}
	for _, rec := range l.store.Issues() {
		if rec.Skipped() {
			stats.SkippedIssues++
		}
	}
	return stats
}
