package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/models"
)

// Dump file names
const (
	AuthorsFile     = "authors-scan.json"
	IssuesFile      = "change-issues.json"
	CommitsFile     = "change-commits.json"
	ChangeGroupFile = "change-groups.json"
	ChangePathsFile = "change-paths.log"
)

// JSONExporter writes the records of a run as JSON documents into a directory
type JSONExporter struct {
	dir string
}

// NewJSONExporter writes into dir, creating it when needed
func NewJSONExporter(dir string) *JSONExporter {
	return &JSONExporter{dir: dir}
}

func (e *JSONExporter) Name() string { return "json" }

type commitDump struct {
	*models.CommitRecord
	Author string `json:"author"`
}

type changeDump struct {
	ID           int            `json:"id"`
	Skip         bool           `json:"skip"`
	RefNumber    int            `json:"ref_number,omitempty"`
	RefType      models.RefType `json:"ref_type,omitempty"`
	RefTitle     string         `json:"ref_title,omitempty"`
	Associated   []int          `json:"associated,omitempty"`
	Issues       []int          `json:"issues"`
	PullRequests []int          `json:"pull_requests"`
	Commits      []string       `json:"commits"`
	Authors      []string       `json:"authors"`
}

func (e *JSONExporter) Export(ctx context.Context, run *Run) error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return errors.FileSystemErrorf(err, "create output directory %s", e.dir)
	}

	commits := make([]commitDump, 0, run.Store.CommitCount())
	for _, c := range run.Store.Commits() {
		d := commitDump{CommitRecord: c}
		if c.Author != nil {
			d.Author = c.Author.Key()
		}
		commits = append(commits, d)
	}

	changes := make([]changeDump, 0, len(run.Changes))
	for _, c := range run.Changes {
		changes = append(changes, dumpChange(c))
	}

	docs := []struct {
		name string
		v    interface{}
	}{
		{AuthorsFile, map[string]interface{}{"authors": run.Authors}},
		{IssuesFile, run.Store.Issues()},
		{CommitsFile, commits},
		{ChangeGroupFile, changes},
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.writeJSON(doc.name, doc.v); err != nil {
			return err
		}
	}

	return e.writePaths(run.Store)
}

func dumpChange(c *models.Change) changeDump {
	d := changeDump{
		ID:           c.ID,
		Skip:         c.Skip,
		RefNumber:    c.RefNumber,
		RefType:      c.RefType,
		RefTitle:     c.RefTitle,
		Associated:   c.Associated.Sorted(),
		Issues:       []int{},
		PullRequests: []int{},
		Commits:      []string{},
		Authors:      []string{},
	}
	for _, r := range c.Issues {
		d.Issues = append(d.Issues, r.Number)
	}
	for _, r := range c.PullRequests {
		d.PullRequests = append(d.PullRequests, r.Number)
	}
	for _, commit := range c.Commits {
		d.Commits = append(d.Commits, commit.SHA)
	}
	for _, a := range c.Authors() {
		d.Authors = append(d.Authors, a.Key())
	}
	return d
}

func (e *JSONExporter) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.InternalErrorf("marshal %s: %v", name, err)
	}

	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.FileSystemErrorf(err, "write %s", path)
	}
	return nil
}

// writePaths lists every path touched by a non-skipped commit
func (e *JSONExporter) writePaths(store *models.Store) error {
	paths := models.NewStringSet()
	for _, c := range store.Commits() {
		if c.Skipped() {
			continue
		}
		for _, p := range c.Paths.Sorted() {
			paths.Add(p)
		}
	}

	var sb strings.Builder
	for _, p := range paths.Sorted() {
		sb.WriteString(p)
		sb.WriteString("\n")
	}

	path := filepath.Join(e.dir, ChangePathsFile)
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return errors.FileSystemErrorf(err, "write %s", path)
	}
	return nil
}
