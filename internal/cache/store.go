package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/webtide/changelog-go/internal/logging"
)

// Bucket names
const (
	BucketPaths         = "paths"
	BucketBranches      = "branches"
	BucketIssues        = "issues"
	BucketEvents        = "events"
	BucketPRCommits     = "pr_commits"
	BucketCommitAuthors = "commit_authors"
)

// FileName is the database file created inside the cache directory
const FileName = "changelog-cache.db"

var buckets = []string{
	BucketPaths,
	BucketBranches,
	BucketIssues,
	BucketEvents,
	BucketPRCommits,
	BucketCommitAuthors,
}

// Store persists lookups across runs in a bbolt database.
// Values are stored as JSON.
type Store struct {
	db     *bolt.DB
	path   string
	logger logrus.FieldLogger
}

// Open opens (or creates) the cache database inside dir
func Open(dir string, logger logrus.FieldLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache buckets: %w", err)
	}

	logger = logging.OrDiscard(logger)
	logger.WithField("path", path).Debug("Opened cache")
	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Get decodes the value stored under key into v. It reports whether the key existed.
func (s *Store) Get(bucket, key string, v interface{}) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown cache bucket %q", bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	if err != nil {
		return false, fmt.Errorf("cache read %s/%s: %w", bucket, key, err)
	}
	return found, nil
}

// Put stores v under key
func (s *Store) Put(bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown cache bucket %q", bucket)
		}
		return b.Put([]byte(key), data)
	})
}

// Count returns the number of entries per bucket
func (s *Store) Count() (map[string]int, error) {
	counts := make(map[string]int, len(buckets))
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			counts[name] = tx.Bucket([]byte(name)).Stats().KeyN
		}
		return nil
	})
	return counts, err
}

// Clear drops every cached entry
func (s *Store) Clear() error {
	s.logger.Info("Clearing cache")
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if err := tx.DeleteBucket([]byte(name)); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}
