package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/providentiaww/jira-connector/internal/models"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SyncRun records one complete issue fetch: which project, when, and how
// many issues it yielded. Runs are append-only; a re-sync is a new run.
type SyncRun struct {
	ID         string    `json:"id"`
	ProjectKey string    `json:"project_key"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	IssueCount int       `json:"issue_count"`
}

// SnapshotStore persists fetched issue snapshots to a relational
// database. It speaks Postgres ("postgres" driver) for deployments and
// SQLite ("sqlite") for local use; queries are written once with $n
// placeholders and rebound for SQLite.
type SnapshotStore struct {
	db     *sql.DB
	driver string
}

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	project_key TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	issue_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	run_id TEXT NOT NULL REFERENCES sync_runs(id),
	id INTEGER NOT NULL,
	issue_key TEXT NOT NULL,
	assignee TEXT,
	issuetype TEXT NOT NULL,
	description TEXT,
	summary TEXT,
	estimate TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	status TEXT NOT NULL,
	project_key TEXT,
	sprints TEXT,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS histories (
	run_id TEXT NOT NULL,
	issue_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	author TEXT NOT NULL,
	created_at TEXT NOT NULL,
	field TEXT NOT NULL,
	old_value TEXT,
	new_value TEXT,
	PRIMARY KEY (run_id, issue_id, seq)
);
`

// NewSnapshotStore opens the database, verifies connectivity and ensures
// the schema exists. driver is "postgres" or "sqlite".
func NewSnapshotStore(driver, dsn string) (*SnapshotStore, error) {
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", driver, err)
	}

	// Pool limits for cloud stability; harmless for sqlite.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("storage: pinging %s: %w", driver, err)
	}

	store := &SnapshotStore{db: db, driver: driver}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("storage: initializing schema: %w", err)
	}

	return store, nil
}

// rebind converts $n placeholders to ? for SQLite.
func (s *SnapshotStore) rebind(query string) string {
	if s.driver != "sqlite" {
		return query
	}
	for i := 20; i >= 1; i-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), "?")
	}
	return query
}

// SaveRun persists one sync run with its issues and flattened histories
// in a single transaction. Either everything lands or nothing does,
// matching the all-or-nothing fetch policy upstream.
func (s *SnapshotStore) SaveRun(ctx context.Context, run SyncRun, issues []models.Issue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO sync_runs (id, project_key, started_at, finished_at, issue_count)
		VALUES ($1, $2, $3, $4, $5)`),
		run.ID, run.ProjectKey,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		len(issues),
	)
	if err != nil {
		return fmt.Errorf("storage: inserting sync run: %w", err)
	}

	issueQuery := s.rebind(`
		INSERT INTO issues
			(run_id, id, issue_key, assignee, issuetype, description, summary, estimate,
			 created_at, updated_at, status, project_key, sprints)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	historyQuery := s.rebind(`
		INSERT INTO histories
			(run_id, issue_id, seq, author, created_at, field, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)

	for _, issue := range issues {
		sprints, err := json.Marshal(issue.Sprints)
		if err != nil {
			return fmt.Errorf("storage: encoding sprints for %s: %w", issue.Key, err)
		}
		_, err = tx.ExecContext(ctx, issueQuery,
			run.ID, issue.ID, issue.Key, issue.Assignee, issue.IssueType,
			issue.Description, issue.Summary, issue.Estimate,
			issue.Created.UTC().Format(time.RFC3339),
			issue.Updated.UTC().Format(time.RFC3339),
			issue.Status, issue.Project, string(sprints),
		)
		if err != nil {
			return fmt.Errorf("storage: inserting issue %s: %w", issue.Key, err)
		}

		for seq, h := range issue.Histories {
			_, err = tx.ExecContext(ctx, historyQuery,
				run.ID, issue.ID, seq, h.Author,
				h.Created.UTC().Format(time.RFC3339),
				h.Field, h.Old, h.New,
			)
			if err != nil {
				return fmt.Errorf("storage: inserting history for %s: %w", issue.Key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: committing run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns all sync runs for a project, newest first.
func (s *SnapshotStore) ListRuns(ctx context.Context, projectKey string) ([]SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, project_key, started_at, finished_at, issue_count
		FROM sync_runs
		WHERE project_key = $1
		ORDER BY started_at DESC`), projectKey)
	if err != nil {
		return nil, fmt.Errorf("storage: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		var started, finished string
		if err := rows.Scan(&run.ID, &run.ProjectKey, &started, &finished, &run.IssueCount); err != nil {
			return nil, fmt.Errorf("storage: scanning run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("storage: parsing started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
			return nil, fmt.Errorf("storage: parsing finished_at: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunIssues reads back the issues of one run, without histories.
func (s *SnapshotStore) RunIssues(ctx context.Context, runID string) ([]models.Issue, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, issue_key, assignee, issuetype, description, summary, estimate,
		       created_at, updated_at, status, project_key, sprints
		FROM issues
		WHERE run_id = $1
		ORDER BY id`), runID)
	if err != nil {
		return nil, fmt.Errorf("storage: listing issues: %w", err)
	}
	defer rows.Close()

	var issues []models.Issue
	for rows.Next() {
		var issue models.Issue
		var created, updated, sprints string
		err := rows.Scan(&issue.ID, &issue.Key, &issue.Assignee, &issue.IssueType,
			&issue.Description, &issue.Summary, &issue.Estimate,
			&created, &updated, &issue.Status, &issue.Project, &sprints)
		if err != nil {
			return nil, fmt.Errorf("storage: scanning issue: %w", err)
		}
		if issue.Created, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("storage: parsing created_at: %w", err)
		}
		if issue.Updated, err = time.Parse(time.RFC3339, updated); err != nil {
			return nil, fmt.Errorf("storage: parsing updated_at: %w", err)
		}
		if sprints != "" && sprints != "null" {
			if err := json.Unmarshal([]byte(sprints), &issue.Sprints); err != nil {
				return nil, fmt.Errorf("storage: decoding sprints: %w", err)
			}
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// Ping tests the database connection.
func (s *SnapshotStore) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
