package linking

import (
	"context"
	"fmt"

	"github.com/webtide/changelog-go/internal/models"
)

type fakeTracker struct {
	items       map[int]models.TrackerItem
	closeEvents map[int][]string
	prCommits   map[int][]string
	handles     map[string]string
	failures    map[int]int // remaining transient failures per number, -1 = forever
	fetches     map[int]int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		items:       make(map[int]models.TrackerItem),
		closeEvents: make(map[int][]string),
		prCommits:   make(map[int][]string),
		handles:     make(map[string]string),
		failures:    make(map[int]int),
		fetches:     make(map[int]int),
	}
}

func (f *fakeTracker) issue(n int, title, body string, commits ...string) *fakeTracker {
	f.items[n] = models.TrackerItem{Kind: models.ItemIssue, Number: n, Title: title, Body: body, State: "closed"}
	f.closeEvents[n] = commits
	return f
}

func (f *fakeTracker) pr(n int, base, title, body string, commits ...string) *fakeTracker {
	f.items[n] = models.TrackerItem{Kind: models.ItemPullRequest, Number: n, Title: title, Body: body, State: "closed", BaseRef: base}
	f.prCommits[n] = commits
	return f
}

func (f *fakeTracker) labels(n int, labels ...string) *fakeTracker {
	item := f.items[n]
	item.Labels = labels
	f.items[n] = item
	return f
}

func (f *fakeTracker) FetchIssueOrPR(_ context.Context, number int) (models.TrackerItem, error) {
	f.fetches[number]++
	if left := f.failures[number]; left != 0 {
		if left > 0 {
			f.failures[number] = left - 1
		}
		return models.TrackerItem{}, fmt.Errorf("502 bad gateway")
	}
	item, ok := f.items[number]
	if !ok {
		return models.TrackerItem{}, fmt.Errorf("issue #%d: %w", number, models.ErrNotFound)
	}
	return item, nil
}

func (f *fakeTracker) CloseEventCommits(_ context.Context, number int) ([]string, error) {
	return f.closeEvents[number], nil
}

func (f *fakeTracker) PullRequestCommits(_ context.Context, number int) ([]string, error) {
	return f.prCommits[number], nil
}

type lookupTracker struct {
	*fakeTracker
}

func (f lookupTracker) CommitAuthor(_ context.Context, sha string) (string, error) {
	return f.handles[sha], nil
}

type fakeVCS struct {
	log      []models.LogEntry
	paths    map[string][]string
	branches map[string][]string
	calls    map[string]int
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		paths:    make(map[string][]string),
		branches: make(map[string][]string),
		calls:    make(map[string]int),
	}
}

func (f *fakeVCS) commit(sha, email, title, body string, paths ...string) *fakeVCS {
	f.log = append(f.log, models.LogEntry{
		SHA:         sha,
		AuthorName:  email,
		AuthorEmail: email,
		Title:       title,
		Body:        body,
		ParentCount: 1,
	})
	key := models.NormalizeSHA(sha)
	f.paths[key] = paths
	f.branches[key] = []string{"refs/remotes/origin/jetty-12.0.x"}
	return f
}

func (f *fakeVCS) merge(sha, title string) *fakeVCS {
	f.log = append(f.log, models.LogEntry{SHA: sha, AuthorEmail: "merger@example.com", Title: title, ParentCount: 2})
	return f
}

func (f *fakeVCS) CommitsInRange(_ context.Context, _, _ string) ([]models.LogEntry, error) {
	return f.log, nil
}

func (f *fakeVCS) ChangedPaths(_ context.Context, sha string) ([]string, error) {
	f.calls["paths:"+sha]++
	return f.paths[sha], nil
}

func (f *fakeVCS) BranchesContaining(_ context.Context, sha string) ([]string, error) {
	f.calls["branches:"+sha]++
	return f.branches[sha], nil
}

func defaultOptions() Options {
	return Options{
		Branch:         "jetty-12.0.x",
		OldRef:         "jetty-12.0.0",
		NewRef:         "jetty-12.0.1",
		ExcludedLabels: []string{"dependencies"},
		PathExclusions: []func(string) bool{
			func(p string) bool { return len(p) > 3 && p[len(p)-3:] == ".md" },
		},
		BranchExclusions: []func(string) bool{
			func(b string) bool { return b == "refs/remotes/origin/jetty-9.4.x" },
		},
	}
}
