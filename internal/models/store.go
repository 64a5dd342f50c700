package models

import (
	"sort"
	"strings"
)

// NormalizeSHA canonicalizes a commit id for use as a key
func NormalizeSHA(sha string) string {
	return strings.ToLower(strings.TrimSpace(sha))
}

// Store owns every CommitRecord and IssueRecord of a run. It is not safe
// for concurrent use.
type Store struct {
	commits     map[string]*CommitRecord
	commitOrder []string
	issues      map[int]*IssueRecord
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		commits: make(map[string]*CommitRecord),
		issues:  make(map[int]*IssueRecord),
	}
}

// Commit looks up a commit by sha in any case
func (s *Store) Commit(sha string) (*CommitRecord, bool) {
	c, ok := s.commits[NormalizeSHA(sha)]
	return c, ok
}

// AddCommit inserts c unless a record with the same sha exists. It returns
// the stored record and whether c was inserted.
func (s *Store) AddCommit(c *CommitRecord) (*CommitRecord, bool) {
	c.SHA = NormalizeSHA(c.SHA)
	if existing, ok := s.commits[c.SHA]; ok {
		return existing, false
	}
	if c.IssueRefs == nil {
		c.IssueRefs = NumberSet{}
	}
	if c.PullRequestRefs == nil {
		c.PullRequestRefs = NumberSet{}
	}
	s.commits[c.SHA] = c
	s.commitOrder = append(s.commitOrder, c.SHA)
	return c, true
}

// Issue looks up an issue record by number
func (s *Store) Issue(number int) (*IssueRecord, bool) {
	r, ok := s.issues[number]
	return r, ok
}

// EnsureIssue returns the record for number, creating an unresolved one
// if needed. The boolean reports creation.
func (s *Store) EnsureIssue(number int) (*IssueRecord, bool) {
	if r, ok := s.issues[number]; ok {
		return r, false
	}
	r := NewIssueRecord(number)
	s.issues[number] = r
	return r, true
}

// Commits returns the commits in insertion (log) order
func (s *Store) Commits() []*CommitRecord {
	out := make([]*CommitRecord, 0, len(s.commitOrder))
	for _, sha := range s.commitOrder {
		out = append(out, s.commits[sha])
	}
	return out
}

// Issues returns all issue records by descending number
func (s *Store) Issues() []*IssueRecord {
	out := make([]*IssueRecord, 0, len(s.issues))
	for _, r := range s.issues {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out
}

// Unresolved returns a snapshot of the records still waiting for the
// tracker, by ascending number. Records added afterwards are not included.
func (s *Store) Unresolved() []*IssueRecord {
	var out []*IssueRecord
	for _, r := range s.issues {
		if !r.Resolved() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (s *Store) CommitCount() int { return len(s.commits) }

func (s *Store) IssueCount() int { return len(s.issues) }
