package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueRecordResolveOnce(t *testing.T) {
	r := NewIssueRecord(100)
	assert.Equal(t, RefTypeUnknown, r.Kind())
	assert.False(t, r.Resolved())

	assert.True(t, r.Resolve(ResolvedIssue{Title: "add feature", State: "closed"}))
	assert.Equal(t, RefTypeIssue, r.Kind())

	// terminal: later transitions are ignored
	assert.False(t, r.Resolve(ResolvedPullRequest{Title: "other", BaseRef: "main"}))
	assert.False(t, r.Resolve(Invalid{}))
	assert.Equal(t, RefTypeIssue, r.Kind())
	assert.Equal(t, "add feature", r.Title())
	assert.Empty(t, r.BaseRef())
}

func TestIssueRecordRejectsUnresolved(t *testing.T) {
	r := NewIssueRecord(7)
	assert.False(t, r.Resolve(Unresolved{}))
	assert.False(t, r.Resolve(nil))
	assert.False(t, r.Resolved())
}

func TestIssueRecordRelevance(t *testing.T) {
	r := NewIssueRecord(200)
	assert.False(t, r.Relevant())

	r.Resolve(ResolvedPullRequest{Title: "pr", BaseRef: "jetty-12.0.x"})
	assert.True(t, r.Relevant())
	assert.Equal(t, "jetty-12.0.x", r.BaseRef())

	r.Skip.Add(SkipWrongBaseRef)
	assert.True(t, r.Relevant())
	assert.True(t, r.Skipped())

	invalid := NewIssueRecord(201)
	invalid.Resolve(Invalid{})
	assert.False(t, invalid.Relevant())
	assert.False(t, invalid.IsIssueOrPR())
}

func TestLabelsCaseInsensitive(t *testing.T) {
	r := NewIssueRecord(1)
	r.AddLabel("  Dependencies ")
	assert.True(t, r.HasLabel("dependencies"))
	assert.True(t, r.HasLabel("DEPENDENCIES"))
	assert.False(t, r.HasLabel("build"))
}

func TestSkipSet(t *testing.T) {
	var s SkipSet
	assert.True(t, s.Empty())

	s.Add(SkipNoRelevantCommits)
	s.Add(SkipMergeCommit)
	s.Add(SkipMergeCommit)

	assert.False(t, s.Empty())
	assert.True(t, s.Has(SkipMergeCommit))
	assert.False(t, s.Has(SkipExcludedBranch))
	assert.Equal(t, []SkipReason{SkipMergeCommit, SkipNoRelevantCommits}, s.Reasons())
	assert.Equal(t, "merge-commit,no-relevant-commits", s.String())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["merge-commit","no-relevant-commits"]`, string(data))

	var back SkipSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)

	assert.Error(t, json.Unmarshal([]byte(`["bogus"]`), &back))
}

func TestStoreNormalizesSHA(t *testing.T) {
	s := NewStore()
	c, added := s.AddCommit(NewCommitRecord(LogEntry{SHA: "ABCDEF0123", Title: "x"}))
	require.True(t, added)
	assert.Equal(t, "abcdef0123", c.SHA)

	got, ok := s.Commit("AbCdEf0123")
	require.True(t, ok)
	assert.Same(t, c, got)

	again, added := s.AddCommit(NewCommitRecord(LogEntry{SHA: "abcdef0123", Title: "y"}))
	assert.False(t, added)
	assert.Same(t, c, again)
	assert.Equal(t, 1, s.CommitCount())
}

func TestStoreOrdering(t *testing.T) {
	s := NewStore()
	s.AddCommit(NewCommitRecord(LogEntry{SHA: "bbb"}))
	s.AddCommit(NewCommitRecord(LogEntry{SHA: "aaa"}))
	for _, n := range []int{300, 100, 200} {
		s.EnsureIssue(n)
	}

	commits := s.Commits()
	require.Len(t, commits, 2)
	assert.Equal(t, "bbb", commits[0].SHA)

	issues := s.Issues()
	assert.Equal(t, 300, issues[0].Number)
	assert.Equal(t, 100, issues[2].Number)

	_, created := s.EnsureIssue(200)
	assert.False(t, created)
}

func TestUnresolvedIsSnapshot(t *testing.T) {
	s := NewStore()
	s.EnsureIssue(100)
	s.EnsureIssue(101)

	snapshot := s.Unresolved()
	s.EnsureIssue(102)

	require.Len(t, snapshot, 2)
	assert.Equal(t, 100, snapshot[0].Number)
	assert.Len(t, s.Unresolved(), 3)

	snapshot[0].Resolve(Invalid{})
	assert.Len(t, s.Unresolved(), 2)
}

func TestMergeCommitFromParents(t *testing.T) {
	assert.True(t, NewCommitRecord(LogEntry{SHA: "a", ParentCount: 2}).Merge)
	assert.False(t, NewCommitRecord(LogEntry{SHA: "b", ParentCount: 1}).Merge)
}

func TestAuthorNames(t *testing.T) {
	a := &Author{Emails: []string{"jane@example.com"}}
	assert.Equal(t, "jane", a.DisplayName())
	assert.Equal(t, "jane@example.com", a.Key())

	a.Name = "Jane Doe"
	assert.Equal(t, "Jane Doe", a.DisplayName())

	a.Handle = "JaneD"
	assert.Equal(t, "@JaneD", a.DisplayName())
	assert.Equal(t, "janed", a.Key())

	a.AddEmail("JANE@example.com")
	a.AddEmail("jd@example.org")
	assert.Equal(t, []string{"jane@example.com", "jd@example.org"}, a.Emails)
}

func TestChangeContributors(t *testing.T) {
	c := NewChange(1)
	committer := &Author{Handle: "lead", Committer: true}
	outsider := &Author{Handle: "visitor"}

	c.AddAuthor(outsider)
	c.AddAuthor(committer)
	c.AddAuthor(outsider)

	assert.Len(t, c.Authors(), 2)
	assert.Equal(t, []*Author{outsider}, c.Contributors())
}

func TestIssueRecordJSON(t *testing.T) {
	r := NewIssueRecord(42)
	r.Resolve(ResolvedPullRequest{Title: "t", State: "closed", BaseRef: "main"})
	r.Commits.Add("abc")
	r.Skip.Add(SkipNotClosed)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "pull-request", m["type"])
	assert.Equal(t, "main", m["base_ref"])
	assert.Equal(t, []interface{}{"abc"}, m["commits"])
	assert.Equal(t, []interface{}{"not-closed"}, m["skip"])
}
