package linking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtide/changelog-go/internal/authors"
	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/models"
)

func TestSingleIssueScenario(t *testing.T) {
	vcs := newFakeVCS().commit("AAA111", "dev@example.com", "Fixes #100 - add feature", "", "src/main/java/Foo.java")
	tracker := newFakeTracker().issue(100, "Add feature", "", "aaa111")

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Changes, 1)
	change := result.Changes[0]
	assert.False(t, change.Skip)
	assert.Equal(t, 100, change.RefNumber)
	assert.Equal(t, models.RefTypeIssue, change.RefType)
	assert.Equal(t, "Add feature", change.RefTitle)
	require.Len(t, change.Commits, 1)
	assert.Equal(t, "aaa111", change.Commits[0].SHA)

	commit, ok := result.Store.Commit("aaa111")
	require.True(t, ok)
	assert.True(t, commit.IssueRefs.Has(100))
	assert.Equal(t, change.ID, commit.ChangeID)
}

func TestCommitTitleIsCleanedWhenIssueTitleHasVerb(t *testing.T) {
	vcs := newFakeVCS().commit("aaa111", "dev@example.com", "Fixes #100 - add feature", "", "src/Foo.java")
	tracker := newFakeTracker().issue(100, "Fixes #100 - add feature", "", "aaa111")

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "add feature", result.Changes[0].RefTitle)
}

func TestWrongBaseRefScenario(t *testing.T) {
	vcs := newFakeVCS().commit("bbb222", "dev@example.com", "Backport fix (#200)", "", "src/Bar.java")
	tracker := newFakeTracker().pr(200, "jetty-9.4.x", "Backport fix", "", "bbb222")

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	pr, ok := result.Store.Issue(200)
	require.True(t, ok)
	assert.True(t, pr.Skip.Has(models.SkipWrongBaseRef))

	require.Len(t, result.Changes, 1)
	assert.True(t, result.Changes[0].Skip)
	assert.Equal(t, 1, result.Stats.SkippedChanges)
}

func TestRequireClosed(t *testing.T) {
	vcs := newFakeVCS().
		commit("aaa111", "dev@example.com", "Fixes #100", "", "src/Foo.java").
		commit("bbb222", "dev@example.com", "Fixes #101", "", "src/Bar.java")
	tracker := newFakeTracker().
		issue(100, "Still open", "", "aaa111").
		issue(101, "Done", "", "bbb222")
	open := tracker.items[100]
	open.State = "open"
	tracker.items[100] = open

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)
	rec, _ := result.Store.Issue(100)
	assert.False(t, rec.Skip.Has(models.SkipNotClosed), "state is ignored unless closed issues are required")

	opts := defaultOptions()
	opts.RequireClosed = true
	result, err = NewOrchestrator(vcs, tracker, nil, opts, nil).Run(context.Background())
	require.NoError(t, err)

	rec, _ = result.Store.Issue(100)
	assert.True(t, rec.Skip.Has(models.SkipNotClosed))
	done, _ := result.Store.Issue(101)
	assert.True(t, done.Skip.Empty())

	require.Len(t, result.Changes, 2)
	assert.Equal(t, 1, result.Stats.SkippedChanges)
	for _, c := range result.Changes {
		if !c.Skip {
			assert.Equal(t, 101, c.RefNumber)
		}
	}
}

func TestProseNumbersDoNotMergeChanges(t *testing.T) {
	vcs := newFakeVCS().
		commit("aaa111", "dev@example.com", "Improve build (#100)", "", "build/Build.java").
		commit("bbb222", "dev@example.com", "Stabilize tests (#250)", "", "src/test/FooTest.java")
	tracker := newFakeTracker().
		issue(100, "Improve build", "This change fixed 250 flaky tests.", "aaa111").
		issue(250, "Stabilize tests", "", "bbb222")

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	rec, _ := result.Store.Issue(100)
	assert.Empty(t, rec.ReferencedIssues)

	require.Len(t, result.Changes, 2)
	var refs []int
	for _, c := range result.Changes {
		assert.False(t, c.Skip)
		assert.Len(t, c.Issues, 1)
		refs = append(refs, c.RefNumber)
	}
	assert.ElementsMatch(t, []int{100, 250}, refs)
}

func TestDocumentationOnlyScenario(t *testing.T) {
	vcs := newFakeVCS().commit("ccc333", "dev@example.com", "Update docs (#300)", "", "README.md")
	tracker := newFakeTracker().pr(300, "jetty-12.0.x", "Update docs", "", "ccc333")

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	commit, _ := result.Store.Commit("ccc333")
	assert.True(t, commit.Skip.Has(models.SkipNoInterestingPaths))
	assert.Empty(t, commit.Paths)
	assert.Equal(t, []string{"refs/remotes/origin/jetty-12.0.x"}, commit.Branches.Sorted())
	assert.Equal(t, 1, vcs.calls["branches:ccc333"])

	pr, _ := result.Store.Issue(300)
	assert.True(t, pr.Skip.Has(models.SkipNoRelevantCommits))

	require.Len(t, result.Changes, 1)
	assert.True(t, result.Changes[0].Skip)
}

func TestExcludedBranch(t *testing.T) {
	vcs := newFakeVCS().commit("ddd444", "dev@example.com", "Fix thing (#400)", "", "src/Baz.java")
	vcs.branches["ddd444"] = []string{"refs/remotes/origin/jetty-12.0.x", "refs/remotes/origin/jetty-9.4.x"}
	tracker := newFakeTracker().pr(400, "jetty-12.0.x", "Fix thing", "", "ddd444")

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	commit, _ := result.Store.Commit("ddd444")
	assert.True(t, commit.Skip.Has(models.SkipExcludedBranch))
	pr, _ := result.Store.Issue(400)
	assert.True(t, pr.Skip.Has(models.SkipNoRelevantCommits))
}

func TestExcludedLabelSkipsCommitFetch(t *testing.T) {
	vcs := newFakeVCS().commit("eee555", "bot@example.com", "Bump library (#500)", "", "pom.xml")
	tracker := newFakeTracker().pr(500, "jetty-12.0.x", "Bump library", "", "fff000").labels(500, "Dependencies")

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	pr, _ := result.Store.Issue(500)
	assert.True(t, pr.Skip.Has(models.SkipExcludedLabel))
	assert.True(t, pr.HasLabel("dependencies"))
	// only the sha seeded from the commit message, none from the tracker
	assert.Equal(t, []string{"eee555"}, pr.Commits.Sorted())
	require.Len(t, result.Changes, 1)
	assert.True(t, result.Changes[0].Skip)
}

func TestMixedChangePriority(t *testing.T) {
	build := func() (*fakeVCS, *fakeTracker) {
		vcs := newFakeVCS().commit("fff666", "dev@example.com", "Handle timeouts (#610)", "Fixes #600", "src/Timeout.java")
		tracker := newFakeTracker().
			issue(600, "Timeouts are ignored", "").
			pr(610, "jetty-12.0.x", "Fixes #600 - Handle timeouts", "Fixes #600", "fff666")
		return vcs, tracker
	}

	vcs, tracker := build()
	opts := defaultOptions()
	result, err := NewOrchestrator(vcs, tracker, nil, opts, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, 600, result.Changes[0].RefNumber)
	assert.Equal(t, models.RefTypeIssue, result.Changes[0].RefType)
	assert.Empty(t, result.Changes[0].Associated)

	vcs, tracker = build()
	opts.TitlePriority = PriorityPullRequest
	result, err = NewOrchestrator(vcs, tracker, nil, opts, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	change := result.Changes[0]
	assert.Equal(t, 610, change.RefNumber)
	assert.Equal(t, models.RefTypePullRequest, change.RefType)
	assert.Equal(t, "Handle timeouts", change.RefTitle)
	assert.Equal(t, []int{600}, change.Associated.Sorted())
}

func TestMergeCommitsAreSkipped(t *testing.T) {
	vcs := newFakeVCS().
		commit("aaa111", "dev@example.com", "Fixes #100 - add feature", "", "src/Foo.java").
		merge("abc999", "Merge pull request #100 from dev/feature")
	tracker := newFakeTracker().issue(100, "Add feature", "", "aaa111")

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	merge, _ := result.Store.Commit("abc999")
	assert.True(t, merge.Merge)
	assert.True(t, merge.Skip.Has(models.SkipMergeCommit))
	assert.Zero(t, vcs.calls["paths:abc999"])

	require.Len(t, result.Changes, 1)
	assert.False(t, result.Changes[0].Skip)
	assert.Len(t, result.Changes[0].Commits, 2)
}

func TestAuthorsShareInstanceAndHandles(t *testing.T) {
	vcs := newFakeVCS().
		commit("aaa111", "Visitor@Example.com", "First (#100)", "", "src/A.java").
		commit("bbb222", "visitor@example.com", "Second (#100)", "", "src/B.java").
		commit("ccc333", "lead@example.com", "Third (#100)", "", "src/C.java")
	tracker := newFakeTracker().issue(100, "Feature", "")
	tracker.handles["aaa111"] = "visitor"

	registry := authors.NewRegistry()
	registry.Add(&models.Author{Handle: "lead", Emails: []string{"lead@example.com"}, Committer: true})

	result, err := NewOrchestrator(vcs, lookupTracker{tracker}, registry, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	a, _ := result.Store.Commit("aaa111")
	b, _ := result.Store.Commit("bbb222")
	assert.Same(t, a.Author, b.Author)
	assert.Equal(t, "@visitor", a.Author.DisplayName())

	require.Len(t, result.Changes, 1)
	contributors := result.Changes[0].Contributors()
	require.Len(t, contributors, 1)
	assert.Equal(t, "visitor", contributors[0].Handle)
	assert.Len(t, result.Changes[0].Authors(), 2)
}

func TestInvalidReference(t *testing.T) {
	vcs := newFakeVCS().commit("aaa111", "dev@example.com", "Tweak (#999)", "", "src/A.java")
	tracker := newFakeTracker()

	result, err := NewOrchestrator(vcs, tracker, nil, defaultOptions(), nil).Run(context.Background())
	require.NoError(t, err)

	rec, _ := result.Store.Issue(999)
	assert.Equal(t, models.RefTypeInvalid, rec.Kind())
	assert.True(t, rec.Skip.Has(models.SkipInvalidIssueRef))
	assert.Empty(t, result.Changes)
	assert.Equal(t, 1, result.Stats.Resolve.Invalid)
}

func TestOptionsValidate(t *testing.T) {
	err := Options{OldRef: "a", NewRef: "b"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.True(t, errors.IsFatal(err))

	_, err = NewOrchestrator(newFakeVCS(), newFakeTracker(), nil, Options{Branch: "main"}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "old ref")
}

func TestParseTitlePriority(t *testing.T) {
	p, err := ParseTitlePriority("PR")
	require.NoError(t, err)
	assert.Equal(t, PriorityPullRequest, p)

	p, err = ParseTitlePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityIssue, p)

	_, err = ParseTitlePriority("commit")
	assert.Error(t, err)
}
