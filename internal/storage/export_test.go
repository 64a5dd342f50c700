package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtide/changelog-go/internal/models"
)

func sampleRun(t *testing.T) *Run {
	t.Helper()
	store := models.NewStore()

	visitor := &models.Author{Handle: "visitor", Emails: []string{"v@example.org"}}
	lead := &models.Author{Handle: "lead", Committer: true}

	feature, _ := store.AddCommit(models.NewCommitRecord(models.LogEntry{
		SHA: "AAA111", Title: "Fixes #100 - add feature", CommitTime: time.Unix(1700000000, 0).UTC(), ParentCount: 1,
	}))
	feature.Author = visitor
	feature.Paths = models.NewStringSet("src/Main.java", "src/Util.java")
	feature.IssueRefs = models.NewNumberSet(100)
	feature.ChangeID = 1

	docs, _ := store.AddCommit(models.NewCommitRecord(models.LogEntry{
		SHA: "bbb222", Title: "Docs", CommitTime: time.Unix(1700000100, 0).UTC(), ParentCount: 1,
	}))
	docs.Author = lead
	docs.Paths = models.NewStringSet("README.md")
	docs.Skip.Add(models.SkipNoInterestingPaths)

	issue, _ := store.EnsureIssue(100)
	issue.Resolve(models.ResolvedIssue{Title: "Add feature", State: "closed"})
	issue.AddLabel("Enhancement")
	issue.Commits.Add("aaa111")
	issue.ChangeID = 1

	change := models.NewChange(1)
	change.Issues = []*models.IssueRecord{issue}
	change.Commits = []*models.CommitRecord{feature}
	change.RefNumber = 100
	change.RefType = models.RefTypeIssue
	change.RefTitle = "Add feature"
	change.AddAuthor(visitor)

	run := NewRun(time.Unix(1700001000, 0))
	run.Project = "Jetty"
	run.Owner = "jetty"
	run.Repo = "jetty.project"
	run.Branch = "jetty-12.0.x"
	run.OldRef = "v1"
	run.NewRef = "v2"
	run.Store = store
	run.Authors = []*models.Author{lead, visitor}
	run.Changes = []*models.Change{change}
	return run
}

func TestNewRunHasUniqueID(t *testing.T) {
	a := NewRun(time.Now())
	b := NewRun(time.Now())
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestJSONExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	run := sampleRun(t)

	require.NoError(t, NewJSONExporter(dir).Export(context.Background(), run))

	for _, name := range []string{AuthorsFile, IssuesFile, CommitsFile, ChangeGroupFile, ChangePathsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	paths, err := os.ReadFile(filepath.Join(dir, ChangePathsFile))
	require.NoError(t, err)
	assert.Equal(t, "src/Main.java\nsrc/Util.java\n", string(paths), "skipped commits do not contribute paths")

	var commits []map[string]interface{}
	data, err := os.ReadFile(filepath.Join(dir, CommitsFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &commits))
	require.Len(t, commits, 2)
	assert.Equal(t, "aaa111", commits[0]["sha"])
	assert.Equal(t, "visitor", commits[0]["author"])
	assert.Equal(t, []interface{}{"no-interesting-paths-left"}, commits[1]["skip"])

	var groups []changeDump
	data, err = os.ReadFile(filepath.Join(dir, ChangeGroupFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, []int{100}, groups[0].Issues)
	assert.Equal(t, []string{"aaa111"}, groups[0].Commits)
	assert.Equal(t, []string{"visitor"}, groups[0].Authors)

	var issues []map[string]interface{}
	data, err = os.ReadFile(filepath.Join(dir, IssuesFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "issue", issues[0]["type"])
}

func TestSQLiteExporter(t *testing.T) {
	exporter, err := NewSQLiteExporter(filepath.Join(t.TempDir(), "db", "changelog.db"), nil)
	require.NoError(t, err)
	defer exporter.Close()

	ctx := context.Background()
	run := sampleRun(t)
	require.NoError(t, exporter.Export(ctx, run))

	runs, err := exporter.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 2, runs[0].CommitCount)
	assert.Equal(t, 1, runs[0].IssueCount)
	assert.Equal(t, 1, runs[0].ChangeCount)

	changes, err := exporter.Changes(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, 100, changes[0].RefNumber)
	assert.Equal(t, "issue", changes[0].RefType)
	assert.Equal(t, "visitor", changes[0].Authors)
	assert.False(t, changes[0].Skip)

	members, err := exporter.Members(ctx, run.ID, 1)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "commit", members[0].Kind)
	assert.Equal(t, "aaa111", members[0].Member)
	assert.Equal(t, "issue", members[1].Kind)
	assert.Equal(t, "100", members[1].Member)

	commits, err := exporter.Commits(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "no-interesting-paths-left", commits[1].Skip)
	assert.Equal(t, "lead", commits[1].Author)

	// a second run lands next to the first
	second := sampleRun(t)
	require.NoError(t, exporter.Export(ctx, second))
	runs, err = exporter.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestPostgresExporter(t *testing.T) {
	dsn := os.Getenv("CHANGELOG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHANGELOG_TEST_POSTGRES_DSN not set")
	}

	exporter, err := NewPostgresExporter(dsn, nil)
	require.NoError(t, err)
	defer exporter.Close()

	run := sampleRun(t)
	require.NoError(t, exporter.Export(context.Background(), run))

	changes, err := exporter.Changes(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

type stubExporter struct {
	name  string
	err   error
	calls *int32
}

func (s stubExporter) Name() string { return s.name }

func (s stubExporter) Export(ctx context.Context, run *Run) error {
	atomic.AddInt32(s.calls, 1)
	return s.err
}

func TestMultiExporter(t *testing.T) {
	var calls int32
	m := NewMultiExporter(nil,
		stubExporter{name: "a", calls: &calls},
		stubExporter{name: "b", calls: &calls},
	)
	require.NoError(t, m.Export(context.Background(), sampleRun(t)))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	boom := errors.New("boom")
	m = NewMultiExporter(nil,
		stubExporter{name: "ok", calls: &calls},
		stubExporter{name: "broken", err: boom, calls: &calls},
	)
	err := m.Export(context.Background(), sampleRun(t))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken export failed")
}
