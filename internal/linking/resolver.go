package linking

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
	"github.com/webtide/changelog-go/internal/refscan"
)

// ErrResolutionStalled is returned when a record keeps failing to resolve
// after Options.MaxResolveAttempts passes
var ErrResolutionStalled = stderrors.New("issue resolution stalled")

// ResolveStats summarizes a resolver run
type ResolveStats struct {
	Passes       int
	Issues       int
	PullRequests int
	Invalid      int
	Failures     int
}

// Resolver drains unresolved issue records against the tracker until none
// are left
type Resolver struct {
	store   *models.Store
	tracker Tracker
	opts    Options
	log     logrus.FieldLogger
}

// NewResolver creates a resolver over store
func NewResolver(store *models.Store, tracker Tracker, opts Options, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		store:   store,
		tracker: tracker,
		opts:    opts,
		log:     logging.OrDiscard(log),
	}
}

// Run resolves passes of unresolved records. Each pass works on a snapshot;
// records discovered during a pass are handled by the next one. A record
// failing MaxResolveAttempts times stops the run with ErrResolutionStalled.
func (r *Resolver) Run(ctx context.Context) (ResolveStats, error) {
	var stats ResolveStats
	maxAttempts := r.opts.maxAttempts()

	for {
		pending := r.store.Unresolved()
		if len(pending) == 0 {
			return stats, nil
		}
		stats.Passes++
		r.log.WithField("pass", stats.Passes).Infof("Need to resolve %d more issues ...", len(pending))

		var stalled []int
		for _, rec := range pending {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			if err := r.ResolveOne(ctx, rec); err != nil {
				rec.Attempts++
				stats.Failures++
				r.log.WithError(err).WithFields(logrus.Fields{
					"issue":   rec.Number,
					"attempt": rec.Attempts,
				}).Warn("Failed to resolve issue, will retry")
				if rec.Attempts >= maxAttempts {
					stalled = append(stalled, rec.Number)
				}
				continue
			}

			switch rec.Resolution().(type) {
			case models.ResolvedIssue:
				stats.Issues++
			case models.ResolvedPullRequest:
				stats.PullRequests++
			case models.Invalid:
				stats.Invalid++
			}
		}

		if len(stalled) > 0 {
			return stats, fmt.Errorf("%w: %v failed %d times", ErrResolutionStalled, stalled, maxAttempts)
		}
	}
}

// ResolveOne looks up a single record. Everything is fetched before the
// record is touched, so a failed lookup leaves it unresolved and unchanged.
// Calling it on a resolved record is a no-op.
func (r *Resolver) ResolveOne(ctx context.Context, rec *models.IssueRecord) error {
	if rec.Resolved() {
		return nil
	}

	item, err := r.tracker.FetchIssueOrPR(ctx, rec.Number)
	if stderrors.Is(err, models.ErrNotFound) {
		rec.Resolve(models.Invalid{})
		rec.Skip.Add(models.SkipInvalidIssueRef)
		r.log.WithField("issue", rec.Number).Debug("Issue does not exist")
		return nil
	}
	if err != nil {
		return errors.TrackerErrorf(err, "failed to fetch #%d", rec.Number)
	}

	res := models.ResolutionFromItem(item)

	excluded, isExcluded := r.opts.excludedLabel(item.Labels)

	var commits []string
	if !isExcluded {
		commits, err = r.fetchCommits(ctx, rec.Number, res)
		if err != nil {
			return err
		}
	}

	rec.Resolve(res)
	for _, label := range item.Labels {
		rec.AddLabel(label)
	}

	refs := refscan.ScanMessage(rec.Title(), rec.Body())
	delete(refs, rec.Number)
	for _, n := range refs.Sorted() {
		rec.ReferencedIssues.Add(n)
		if _, created := r.store.EnsureIssue(n); created {
			r.log.WithFields(logrus.Fields{"issue": rec.Number, "ref": n}).Debug("Discovered reference")
		}
	}

	if isExcluded {
		rec.Skip.Add(models.SkipExcludedLabel)
		r.log.WithFields(logrus.Fields{"issue": rec.Number, "label": excluded}).Debug("Skipping issue with excluded label")
		return nil
	}

	for _, sha := range commits {
		if sha = models.NormalizeSHA(sha); sha != "" {
			rec.Commits.Add(sha)
		}
	}
	return nil
}

func (r *Resolver) fetchCommits(ctx context.Context, number int, res models.Resolution) ([]string, error) {
	var (
		commits []string
		err     error
	)
	switch res.(type) {
	case models.ResolvedIssue:
		commits, err = r.tracker.CloseEventCommits(ctx, number)
	case models.ResolvedPullRequest:
		commits, err = r.tracker.PullRequestCommits(ctx, number)
	case models.Unresolved, models.Invalid:
		return nil, nil
	default:
		panic(fmt.Sprintf("unexpected resolution %T", res))
	}

	if stderrors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.TrackerErrorf(err, "failed to fetch commits of #%d", number)
	}
	return commits, nil
}
