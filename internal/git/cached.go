package git

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/cache"
	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
)

// Source is the subset of Reader that CachedReader decorates
type Source interface {
	CommitsInRange(ctx context.Context, oldRef, newRef string) ([]models.LogEntry, error)
	ChangedPaths(ctx context.Context, sha string) ([]string, error)
	BranchesContaining(ctx context.Context, sha string) ([]string, error)
}

// CachedReader keeps changed paths and branch containment in the
// persistent cache. Commit ranges are always read fresh.
type CachedReader struct {
	next   Source
	store  *cache.Store
	logger logrus.FieldLogger
}

// NewCachedReader wraps next with store
func NewCachedReader(next Source, store *cache.Store, logger logrus.FieldLogger) *CachedReader {
	return &CachedReader{next: next, store: store, logger: logging.OrDiscard(logger)}
}

func (c *CachedReader) CommitsInRange(ctx context.Context, oldRef, newRef string) ([]models.LogEntry, error) {
	return c.next.CommitsInRange(ctx, oldRef, newRef)
}

func (c *CachedReader) ChangedPaths(ctx context.Context, sha string) ([]string, error) {
	return c.lookup(ctx, cache.BucketPaths, sha, c.next.ChangedPaths)
}

func (c *CachedReader) BranchesContaining(ctx context.Context, sha string) ([]string, error) {
	return c.lookup(ctx, cache.BucketBranches, sha, c.next.BranchesContaining)
}

func (c *CachedReader) lookup(ctx context.Context, bucket, sha string, fetch func(context.Context, string) ([]string, error)) ([]string, error) {
	key := models.NormalizeSHA(sha)

	var values []string
	found, err := c.store.Get(bucket, key, &values)
	if err != nil {
		c.logger.WithError(err).WithField("sha", key).Warn("Cache read failed")
	} else if found {
		return values, nil
	}

	values, err = fetch(ctx, sha)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}

	if err := c.store.Put(bucket, key, values); err != nil {
		c.logger.WithError(err).WithField("sha", key).Warn("Cache write failed")
	}
	return values, nil
}
