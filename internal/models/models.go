package models

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by tracker collaborators when a number does not exist
var ErrNotFound = errors.New("not found")

// RefType is the resolved kind of an issue tracker number
type RefType string

const (
	RefTypeUnknown     RefType = "unknown"
	RefTypeIssue       RefType = "issue"
	RefTypePullRequest RefType = "pull-request"
	RefTypeInvalid     RefType = "invalid"
)

// ItemKind distinguishes tracker items before they are turned into records
type ItemKind string

const (
	ItemIssue       ItemKind = "issue"
	ItemPullRequest ItemKind = "pull-request"
)

// TrackerItem is the metadata the tracker reports for an issue or pull request
type TrackerItem struct {
	Kind    ItemKind `json:"kind"`
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	State   string   `json:"state"`
	Labels  []string `json:"labels"`
	BaseRef string   `json:"base_ref,omitempty"`
}

// LogEntry is one commit as reported by the version control reader
type LogEntry struct {
	SHA         string    `json:"sha"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CommitTime  time.Time `json:"commit_time"`
	ParentCount int       `json:"parent_count"`
}

// Author is a person who authored commits in the range
type Author struct {
	Handle    string   `json:"github,omitempty" yaml:"github,omitempty"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Emails    []string `json:"emails" yaml:"emails"`
	Committer bool     `json:"committer" yaml:"committer"`
}

// Key identifies the author: the tracker handle when known, else the first email
func (a *Author) Key() string {
	if a.Handle != "" {
		return strings.ToLower(a.Handle)
	}
	if len(a.Emails) > 0 {
		return strings.ToLower(a.Emails[0])
	}
	return strings.ToLower(a.Name)
}

// DisplayName is the name used in the rendered report
func (a *Author) DisplayName() string {
	if a.Handle != "" {
		return "@" + a.Handle
	}
	if a.Name != "" {
		return a.Name
	}
	if len(a.Emails) > 0 {
		email := a.Emails[0]
		if at := strings.IndexByte(email, '@'); at > 0 {
			return email[:at]
		}
		return email
	}
	return ""
}

// HasEmail reports whether email (case-insensitive) belongs to the author
func (a *Author) HasEmail(email string) bool {
	for _, e := range a.Emails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// AddEmail records another address for the author, ignoring duplicates
func (a *Author) AddEmail(email string) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || a.HasEmail(email) {
		return
	}
	a.Emails = append(a.Emails, email)
}

// Change is one entry of the changelog: a group of connected records
type Change struct {
	ID           int
	Commits      []*CommitRecord
	Issues       []*IssueRecord
	PullRequests []*IssueRecord
	Skip         bool
	RefNumber    int
	RefType      RefType
	RefTitle     string
	Associated   NumberSet

	authors map[string]*Author
}

// NewChange creates an empty change with the given id
func NewChange(id int) *Change {
	return &Change{
		ID:         id,
		RefType:    RefTypeUnknown,
		Associated: NumberSet{},
		authors:    make(map[string]*Author),
	}
}

// AddAuthor records a participating author; the same instance is kept once
func (c *Change) AddAuthor(a *Author) {
	if a == nil {
		return
	}
	if c.authors == nil {
		c.authors = make(map[string]*Author)
	}
	c.authors[a.Key()] = a
}

// Authors returns the participating authors ordered by key
func (c *Change) Authors() []*Author {
	out := make([]*Author, 0, len(c.authors))
	for _, a := range c.authors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Contributors returns the non-committer authors, ordered by key
func (c *Change) Contributors() []*Author {
	var out []*Author
	for _, a := range c.Authors() {
		if !a.Committer {
			out = append(out, a)
		}
	}
	return out
}
