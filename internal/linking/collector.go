package linking

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/authors"
	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
	"github.com/webtide/changelog-go/internal/refscan"
)

// Collector seeds the store with the commits of the release range and the
// issue numbers their messages mention
type Collector struct {
	store   *models.Store
	vcs     VCS
	authors *authors.Registry
	lookup  AuthorLookup // optional
	log     logrus.FieldLogger
}

// NewCollector creates a collector. lookup may be nil.
func NewCollector(store *models.Store, vcs VCS, registry *authors.Registry, lookup AuthorLookup, log logrus.FieldLogger) *Collector {
	if registry == nil {
		registry = authors.NewRegistry()
	}
	return &Collector{
		store:   store,
		vcs:     vcs,
		authors: registry,
		lookup:  lookup,
		log:     logging.OrDiscard(log),
	}
}

// Collect reads oldRef..newRef and returns the number of new commits
func (c *Collector) Collect(ctx context.Context, oldRef, newRef string) (int, error) {
	entries, err := c.vcs.CommitsInRange(ctx, oldRef, newRef)
	if err != nil {
		return 0, errors.VCSErrorf(err, "failed to list commits %s..%s", oldRef, newRef)
	}

	added := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		if c.addEntry(ctx, entry) {
			added++
		}
	}

	c.log.WithFields(logrus.Fields{
		"old":     oldRef,
		"new":     newRef,
		"commits": added,
		"issues":  c.store.IssueCount(),
	}).Info("Collected commits in range")
	return added, nil
}

func (c *Collector) addEntry(ctx context.Context, entry models.LogEntry) bool {
	rec, added := c.store.AddCommit(models.NewCommitRecord(entry))
	if !added {
		return false
	}

	rec.Author = c.resolveAuthor(ctx, rec.SHA, entry)
	if rec.Merge {
		rec.Skip.Add(models.SkipMergeCommit)
	}

	for _, n := range refscan.ScanMessage(rec.Title, rec.Body).Sorted() {
		issue, _ := c.store.EnsureIssue(n)
		issue.Commits.Add(rec.SHA)
	}

	c.log.WithFields(logrus.Fields{
		"sha":    shortSHA(rec.SHA),
		"author": rec.Author.DisplayName(),
	}).Debug(rec.Title)
	return true
}

// resolveAuthor maps the commit email to a known author. Unknown emails
// become a new non-committer whose tracker handle is looked up once.
func (c *Collector) resolveAuthor(ctx context.Context, sha string, entry models.LogEntry) *models.Author {
	if a, ok := c.authors.Find(entry.AuthorEmail); ok {
		return a
	}

	a := c.authors.Add(&models.Author{
		Name:   entry.AuthorName,
		Emails: []string{entry.AuthorEmail},
	})

	if c.lookup == nil || a.Handle != "" {
		return a
	}

	handle, err := c.lookup.CommitAuthor(ctx, sha)
	if err != nil {
		c.log.WithError(err).WithField("sha", shortSHA(sha)).Warn("Failed to look up commit author")
		return a
	}
	return c.authors.SetHandle(a, handle)
}

func shortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}
