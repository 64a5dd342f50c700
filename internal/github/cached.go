package github

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/cache"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
)

// Tracker is everything the changelog pipeline asks of GitHub
type Tracker interface {
	FetchIssueOrPR(ctx context.Context, number int) (models.TrackerItem, error)
	CloseEventCommits(ctx context.Context, number int) ([]string, error)
	PullRequestCommits(ctx context.Context, number int) ([]string, error)
	CommitAuthor(ctx context.Context, sha string) (string, error)
}

// CachedTracker answers from the persistent cache and falls through to
// the wrapped tracker on a miss. Failures are never cached. Keys are scoped
// by repository so one cache file can serve several projects.
type CachedTracker struct {
	next   Tracker
	repo   string
	store  *cache.Store
	logger logrus.FieldLogger
}

// NewCachedTracker wraps next, the tracker of repository "owner/repo", with store
func NewCachedTracker(next Tracker, repo string, store *cache.Store, logger logrus.FieldLogger) *CachedTracker {
	return &CachedTracker{
		next:   next,
		repo:   strings.ToLower(strings.TrimSpace(repo)),
		store:  store,
		logger: logging.OrDiscard(logger),
	}
}

func (c *CachedTracker) numberKey(number int) string {
	return c.repo + "#" + strconv.Itoa(number)
}

func (c *CachedTracker) commitKey(sha string) string {
	return c.repo + "@" + sha
}

type cachedItem struct {
	Found bool               `json:"found"`
	Item  models.TrackerItem `json:"item"`
}

func (c *CachedTracker) FetchIssueOrPR(ctx context.Context, number int) (models.TrackerItem, error) {
	key := c.numberKey(number)

	var cached cachedItem
	if c.get(cache.BucketIssues, key, &cached) {
		if !cached.Found {
			return models.TrackerItem{}, ErrNotFound
		}
		return cached.Item, nil
	}

	item, err := c.next.FetchIssueOrPR(ctx, number)
	switch {
	case stderrors.Is(err, models.ErrNotFound):
		c.put(cache.BucketIssues, key, cachedItem{Found: false})
		return item, err
	case err != nil:
		return item, err
	}

	c.put(cache.BucketIssues, key, cachedItem{Found: true, Item: item})
	return item, nil
}

func (c *CachedTracker) CloseEventCommits(ctx context.Context, number int) ([]string, error) {
	return c.shas(ctx, cache.BucketEvents, number, c.next.CloseEventCommits)
}

func (c *CachedTracker) PullRequestCommits(ctx context.Context, number int) ([]string, error) {
	return c.shas(ctx, cache.BucketPRCommits, number, c.next.PullRequestCommits)
}

func (c *CachedTracker) CommitAuthor(ctx context.Context, sha string) (string, error) {
	sha = models.NormalizeSHA(sha)
	key := c.commitKey(sha)

	var login string
	if c.get(cache.BucketCommitAuthors, key, &login) {
		return login, nil
	}

	login, err := c.next.CommitAuthor(ctx, sha)
	if err != nil {
		return "", err
	}
	c.put(cache.BucketCommitAuthors, key, login)
	return login, nil
}

func (c *CachedTracker) shas(ctx context.Context, bucket string, number int, fetch func(context.Context, int) ([]string, error)) ([]string, error) {
	key := c.numberKey(number)

	var shas []string
	if c.get(bucket, key, &shas) {
		return shas, nil
	}

	shas, err := fetch(ctx, number)
	if err != nil {
		return nil, err
	}
	if shas == nil {
		shas = []string{}
	}
	c.put(bucket, key, shas)
	return shas, nil
}

func (c *CachedTracker) get(bucket, key string, v interface{}) bool {
	found, err := c.store.Get(bucket, key, v)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	return found
}

func (c *CachedTracker) put(bucket, key string, v interface{}) {
	if err := c.store.Put(bucket, key, v); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}
