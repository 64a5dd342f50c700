package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/webtide/changelog-go/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	project TEXT,
	owner TEXT,
	repo TEXT,
	branch TEXT,
	old_ref TEXT,
	new_ref TEXT,
	started_at TIMESTAMP,
	commit_count INTEGER,
	issue_count INTEGER,
	change_count INTEGER
);

CREATE TABLE IF NOT EXISTS commits (
	run_id TEXT NOT NULL,
	sha TEXT NOT NULL,
	author TEXT,
	title TEXT,
	commit_time TIMESTAMP,
	is_merge BOOLEAN,
	skip TEXT,
	change_id INTEGER,
	PRIMARY KEY (run_id, sha),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS issues (
	run_id TEXT NOT NULL,
	number INTEGER NOT NULL,
	type TEXT,
	title TEXT,
	state TEXT,
	base_ref TEXT,
	labels TEXT,
	skip TEXT,
	change_id INTEGER,
	PRIMARY KEY (run_id, number),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS changes (
	run_id TEXT NOT NULL,
	id INTEGER NOT NULL,
	ref_number INTEGER,
	ref_type TEXT,
	ref_title TEXT,
	skip BOOLEAN,
	associated TEXT,
	authors TEXT,
	PRIMARY KEY (run_id, id),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS change_members (
	run_id TEXT NOT NULL,
	change_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	member TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_commits_run ON commits(run_id);
CREATE INDEX IF NOT EXISTS idx_issues_run ON issues(run_id);
CREATE INDEX IF NOT EXISTS idx_members_change ON change_members(run_id, change_id);
`

// RunRow is a stored run
type RunRow struct {
	ID          string    `db:"id"`
	Project     string    `db:"project"`
	Owner       string    `db:"owner"`
	Repo        string    `db:"repo"`
	Branch      string    `db:"branch"`
	OldRef      string    `db:"old_ref"`
	NewRef      string    `db:"new_ref"`
	StartedAt   time.Time `db:"started_at"`
	CommitCount int       `db:"commit_count"`
	IssueCount  int       `db:"issue_count"`
	ChangeCount int       `db:"change_count"`
}

// CommitRow is a stored commit
type CommitRow struct {
	RunID      string    `db:"run_id"`
	SHA        string    `db:"sha"`
	Author     string    `db:"author"`
	Title      string    `db:"title"`
	CommitTime time.Time `db:"commit_time"`
	Merge      bool      `db:"is_merge"`
	Skip       string    `db:"skip"`
	ChangeID   int       `db:"change_id"`
}

// IssueRow is a stored issue or pull request
type IssueRow struct {
	RunID    string `db:"run_id"`
	Number   int    `db:"number"`
	Type     string `db:"type"`
	Title    string `db:"title"`
	State    string `db:"state"`
	BaseRef  string `db:"base_ref"`
	Labels   string `db:"labels"`
	Skip     string `db:"skip"`
	ChangeID int    `db:"change_id"`
}

// ChangeRow is a stored change group
type ChangeRow struct {
	RunID      string `db:"run_id"`
	ID         int    `db:"id"`
	RefNumber  int    `db:"ref_number"`
	RefType    string `db:"ref_type"`
	RefTitle   string `db:"ref_title"`
	Skip       bool   `db:"skip"`
	Associated string `db:"associated"`
	Authors    string `db:"authors"`
}

// MemberRow links a commit, issue or pull request to its change
type MemberRow struct {
	RunID    string `db:"run_id"`
	ChangeID int    `db:"change_id"`
	Kind     string `db:"kind"`
	Member   string `db:"member"`
}

// SQLExporter stores runs in a relational database through sqlx
type SQLExporter struct {
	db     *sqlx.DB
	name   string
	logger logrus.FieldLogger
}

func newSQLExporter(db *sqlx.DB, name string, logger logrus.FieldLogger) (*SQLExporter, error) {
	e := &SQLExporter{db: db, name: name, logger: logging.OrDiscard(logger)}
	if err := e.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return e, nil
}

func (e *SQLExporter) initSchema() error {
	_, err := e.db.Exec(schema)
	return err
}

func (e *SQLExporter) Name() string { return e.name }

// Close closes the database connection
func (e *SQLExporter) Close() error {
	return e.db.Close()
}

// Export writes the run in a single transaction
func (e *SQLExporter) Export(ctx context.Context, run *Run) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs
		(id, project, owner, repo, branch, old_ref, new_ref, started_at, commit_count, issue_count, change_count)
		VALUES (:id, :project, :owner, :repo, :branch, :old_ref, :new_ref, :started_at, :commit_count, :issue_count, :change_count)
	`, RunRow{
		ID:          run.ID,
		Project:     run.Project,
		Owner:       run.Owner,
		Repo:        run.Repo,
		Branch:      run.Branch,
		OldRef:      run.OldRef,
		NewRef:      run.NewRef,
		StartedAt:   run.StartedAt,
		CommitCount: run.Store.CommitCount(),
		IssueCount:  run.Store.IssueCount(),
		ChangeCount: len(run.Changes),
	})
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	var commits []interface{}
	for _, c := range run.Store.Commits() {
		row := CommitRow{
			RunID:      run.ID,
			SHA:        c.SHA,
			Title:      c.Title,
			CommitTime: c.CommitTime,
			Merge:      c.Merge,
			Skip:       c.Skip.String(),
			ChangeID:   c.ChangeID,
		}
		if c.Author != nil {
			row.Author = c.Author.Key()
		}
		commits = append(commits, row)
	}
	if err := insertAll(ctx, tx, `
		INSERT INTO commits (run_id, sha, author, title, commit_time, is_merge, skip, change_id)
		VALUES (:run_id, :sha, :author, :title, :commit_time, :is_merge, :skip, :change_id)
	`, commits); err != nil {
		return fmt.Errorf("insert commits: %w", err)
	}

	var issues []interface{}
	for _, r := range run.Store.Issues() {
		issues = append(issues, IssueRow{
			RunID:    run.ID,
			Number:   r.Number,
			Type:     string(r.Kind()),
			Title:    r.Title(),
			State:    r.State(),
			BaseRef:  r.BaseRef(),
			Labels:   strings.Join(r.Labels.Sorted(), ","),
			Skip:     r.Skip.String(),
			ChangeID: r.ChangeID,
		})
	}
	if err := insertAll(ctx, tx, `
		INSERT INTO issues (run_id, number, type, title, state, base_ref, labels, skip, change_id)
		VALUES (:run_id, :number, :type, :title, :state, :base_ref, :labels, :skip, :change_id)
	`, issues); err != nil {
		return fmt.Errorf("insert issues: %w", err)
	}

	var changes, members []interface{}
	for _, c := range run.Changes {
		d := dumpChange(c)
		changes = append(changes, ChangeRow{
			RunID:      run.ID,
			ID:         c.ID,
			RefNumber:  c.RefNumber,
			RefType:    string(c.RefType),
			RefTitle:   c.RefTitle,
			Skip:       c.Skip,
			Associated: joinInts(d.Associated),
			Authors:    strings.Join(d.Authors, ","),
		})
		for _, n := range d.Issues {
			members = append(members, MemberRow{RunID: run.ID, ChangeID: c.ID, Kind: "issue", Member: strconv.Itoa(n)})
		}
		for _, n := range d.PullRequests {
			members = append(members, MemberRow{RunID: run.ID, ChangeID: c.ID, Kind: "pull-request", Member: strconv.Itoa(n)})
		}
		for _, sha := range d.Commits {
			members = append(members, MemberRow{RunID: run.ID, ChangeID: c.ID, Kind: "commit", Member: sha})
		}
	}
	if err := insertAll(ctx, tx, `
		INSERT INTO changes (run_id, id, ref_number, ref_type, ref_title, skip, associated, authors)
		VALUES (:run_id, :id, :ref_number, :ref_type, :ref_title, :skip, :associated, :authors)
	`, changes); err != nil {
		return fmt.Errorf("insert changes: %w", err)
	}
	if err := insertAll(ctx, tx, `
		INSERT INTO change_members (run_id, change_id, kind, member)
		VALUES (:run_id, :change_id, :kind, :member)
	`, members); err != nil {
		return fmt.Errorf("insert change members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"commits": len(commits),
		"issues":  len(issues),
		"changes": len(changes),
	}).Debug("Stored run")
	return nil
}

func insertAll(ctx context.Context, tx *sqlx.Tx, query string, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}

// Runs lists stored runs, newest first
func (e *SQLExporter) Runs(ctx context.Context) ([]RunRow, error) {
	var runs []RunRow
	err := e.db.SelectContext(ctx, &runs, `SELECT * FROM runs ORDER BY started_at DESC`)
	return runs, err
}

// Changes lists the changes of a run in id order
func (e *SQLExporter) Changes(ctx context.Context, runID string) ([]ChangeRow, error) {
	var changes []ChangeRow
	query := e.db.Rebind(`SELECT * FROM changes WHERE run_id = ? ORDER BY id`)
	err := e.db.SelectContext(ctx, &changes, query, runID)
	return changes, err
}

// Members lists the members of one change
func (e *SQLExporter) Members(ctx context.Context, runID string, changeID int) ([]MemberRow, error) {
	var members []MemberRow
	query := e.db.Rebind(`SELECT * FROM change_members WHERE run_id = ? AND change_id = ? ORDER BY kind, member`)
	err := e.db.SelectContext(ctx, &members, query, runID, changeID)
	return members, err
}

// Commits lists the commits of a run
func (e *SQLExporter) Commits(ctx context.Context, runID string) ([]CommitRow, error) {
	var commits []CommitRow
	query := e.db.Rebind(`SELECT * FROM commits WHERE run_id = ? ORDER BY sha`)
	err := e.db.SelectContext(ctx, &commits, query, runID)
	return commits, err
}
