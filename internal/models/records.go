package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CommitRecord is a commit from the requested log range
type CommitRecord struct {
	SHA             string    `json:"sha"`
	Author          *Author   `json:"-"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	CommitTime      time.Time `json:"commit_time"`
	Merge           bool      `json:"merge"`
	Paths           StringSet `json:"paths"`    // nil until resolved
	Branches        StringSet `json:"branches"` // nil until resolved
	IssueRefs       NumberSet `json:"issue_refs"`
	PullRequestRefs NumberSet `json:"pull_request_refs"`
	Skip            SkipSet   `json:"skip"`
	ChangeID        int       `json:"change_id,omitempty"`
}

// NewCommitRecord builds a record from a log entry; the sha is normalized
func NewCommitRecord(e LogEntry) *CommitRecord {
	return &CommitRecord{
		SHA:             NormalizeSHA(e.SHA),
		Title:           e.Title,
		Body:            e.Body,
		CommitTime:      e.CommitTime,
		Merge:           e.ParentCount > 1,
		IssueRefs:       NumberSet{},
		PullRequestRefs: NumberSet{},
	}
}

// Skipped reports whether any skip reason is attached
func (c *CommitRecord) Skipped() bool {
	return !c.Skip.Empty()
}

// Grouped reports whether the commit already belongs to a change
func (c *CommitRecord) Grouped() bool {
	return c.ChangeID != 0
}

// Resolution is the resolved state of an IssueRecord. Implementations are
// Unresolved, ResolvedIssue, ResolvedPullRequest and Invalid.
type Resolution interface {
	resolution()
}

// Unresolved is the state of a number seen in text but not looked up yet
type Unresolved struct{}

// ResolvedIssue holds the tracker data of a plain issue
type ResolvedIssue struct {
	Title string
	Body  string
	State string
}

// ResolvedPullRequest holds the tracker data of a pull request
type ResolvedPullRequest struct {
	Title   string
	Body    string
	State   string
	BaseRef string
}

// Invalid is the state of a number the tracker does not know
type Invalid struct{}

func (Unresolved) resolution()          {}
func (ResolvedIssue) resolution()       {}
func (ResolvedPullRequest) resolution() {}
func (Invalid) resolution()             {}

// ResolutionFromItem converts tracker metadata into a resolution
func ResolutionFromItem(item TrackerItem) Resolution {
	if item.Kind == ItemPullRequest {
		return ResolvedPullRequest{
			Title:   item.Title,
			Body:    item.Body,
			State:   item.State,
			BaseRef: item.BaseRef,
		}
	}
	return ResolvedIssue{Title: item.Title, Body: item.Body, State: item.State}
}

// IssueRecord is an issue or pull request number referenced somewhere in the range
type IssueRecord struct {
	Number           int
	Labels           StringSet // lowercased
	ReferencedIssues NumberSet
	Commits          StringSet
	Skip             SkipSet
	Attempts         int
	ChangeID         int

	resolution Resolution
}

// NewIssueRecord creates an unresolved record
func NewIssueRecord(number int) *IssueRecord {
	return &IssueRecord{
		Number:           number,
		Labels:           StringSet{},
		ReferencedIssues: NumberSet{},
		Commits:          StringSet{},
		resolution:       Unresolved{},
	}
}

// Resolution returns the current state
func (r *IssueRecord) Resolution() Resolution {
	return r.resolution
}

// Resolve moves an unresolved record to res. It returns false and changes
// nothing when the record was already resolved or res is Unresolved.
func (r *IssueRecord) Resolve(res Resolution) bool {
	if r.Resolved() {
		return false
	}
	switch res.(type) {
	case ResolvedIssue, ResolvedPullRequest, Invalid:
		r.resolution = res
		return true
	case Unresolved, nil:
		return false
	default:
		panic(fmt.Sprintf("unexpected resolution %T", res))
	}
}

// Kind maps the resolution to its RefType
func (r *IssueRecord) Kind() RefType {
	switch r.resolution.(type) {
	case Unresolved:
		return RefTypeUnknown
	case ResolvedIssue:
		return RefTypeIssue
	case ResolvedPullRequest:
		return RefTypePullRequest
	case Invalid:
		return RefTypeInvalid
	default:
		panic(fmt.Sprintf("unexpected resolution %T", r.resolution))
	}
}

// Resolved reports whether the record left the Unresolved state
func (r *IssueRecord) Resolved() bool {
	_, pending := r.resolution.(Unresolved)
	return !pending
}

// IsIssueOrPR reports whether the tracker resolved the number to an issue or pull request
func (r *IssueRecord) IsIssueOrPR() bool {
	switch r.resolution.(type) {
	case ResolvedIssue, ResolvedPullRequest:
		return true
	}
	return false
}

// Relevant reports whether the record takes part in linkage and grouping.
// Skipped records stay relevant; they are only left out of the report.
func (r *IssueRecord) Relevant() bool {
	return r.IsIssueOrPR()
}

// Skipped reports whether any skip reason is attached
func (r *IssueRecord) Skipped() bool {
	return !r.Skip.Empty()
}

// Grouped reports whether the record already belongs to a change
func (r *IssueRecord) Grouped() bool {
	return r.ChangeID != 0
}

func (r *IssueRecord) Title() string {
	switch res := r.resolution.(type) {
	case ResolvedIssue:
		return res.Title
	case ResolvedPullRequest:
		return res.Title
	}
	return ""
}

func (r *IssueRecord) Body() string {
	switch res := r.resolution.(type) {
	case ResolvedIssue:
		return res.Body
	case ResolvedPullRequest:
		return res.Body
	}
	return ""
}

func (r *IssueRecord) State() string {
	switch res := r.resolution.(type) {
	case ResolvedIssue:
		return res.State
	case ResolvedPullRequest:
		return res.State
	}
	return ""
}

// BaseRef is the target branch of a pull request, empty otherwise
func (r *IssueRecord) BaseRef() string {
	if pr, ok := r.resolution.(ResolvedPullRequest); ok {
		return pr.BaseRef
	}
	return ""
}

// AddLabel stores the label lowercased
func (r *IssueRecord) AddLabel(label string) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label != "" {
		r.Labels.Add(label)
	}
}

// HasLabel compares case-insensitively
func (r *IssueRecord) HasLabel(label string) bool {
	return r.Labels.Has(strings.ToLower(strings.TrimSpace(label)))
}

type issueRecordJSON struct {
	Number           int       `json:"number"`
	Type             RefType   `json:"type"`
	Title            string    `json:"title,omitempty"`
	Body             string    `json:"body,omitempty"`
	State            string    `json:"state,omitempty"`
	BaseRef          string    `json:"base_ref,omitempty"`
	Labels           StringSet `json:"labels"`
	ReferencedIssues NumberSet `json:"referenced_issues"`
	Commits          StringSet `json:"commits"`
	Skip             SkipSet   `json:"skip"`
	ChangeID         int       `json:"change_id,omitempty"`
}

func (r *IssueRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(issueRecordJSON{
		Number:           r.Number,
		Type:             r.Kind(),
		Title:            r.Title(),
		Body:             r.Body(),
		State:            r.State(),
		BaseRef:          r.BaseRef(),
		Labels:           r.Labels,
		ReferencedIssues: r.ReferencedIssues,
		Commits:          r.Commits,
		Skip:             r.Skip,
		ChangeID:         r.ChangeID,
	})
}
