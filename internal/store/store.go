package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/searchscroll/internal/params"
	"github.com/ibeckermayer/searchscroll/internal/types"
)

// Store archives runs and the records they scraped in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Run statuses
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is one archived scrape run
type Run struct {
	ID         string
	Mode       string
	Handle     string
	Since      string
	Until      string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Scrolls    int
	Truncated  bool
	Extracted  int
	Written    int
	OutputPath string
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		handle TEXT NOT NULL,
		since TEXT NOT NULL,
		until TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		scrolls INTEGER DEFAULT 0,
		truncated BOOLEAN DEFAULT 0,
		extracted INTEGER DEFAULT 0,
		written INTEGER DEFAULT 0,
		output_path TEXT
	);

	CREATE TABLE IF NOT EXISTS records (
		external_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id),
		text TEXT,
		author_id TEXT,
		author_handle TEXT,
		author_name TEXT,
		created_at_ms REAL,
		replies INTEGER,
		retweets INTEGER,
		likes INTEGER,
		scraped_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	CREATE INDEX IF NOT EXISTS idx_records_author ON records(author_handle);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// BeginRun records the start of a run and returns its id
func (s *Store) BeginRun(ctx context.Context, p *params.RunParameters) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, handle, since, until, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, p.Mode.String(), p.Handle, p.Since, p.Until, s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run successful and stores its counters
func (s *Store) FinishRun(ctx context.Context, runID string, stats types.RunStats) error {
	return s.closeRun(ctx, runID, StatusOK, nil, stats)
}

// FailRun marks a run failed with cause, keeping whatever counters it reached
func (s *Store) FailRun(ctx context.Context, runID string, cause error, stats types.RunStats) error {
	return s.closeRun(ctx, runID, StatusFailed, cause, stats)
}

func (s *Store) closeRun(ctx context.Context, runID, status string, cause error, stats types.RunStats) error {
	var msg sql.NullString
	if cause != nil {
		msg = sql.NullString{String: cause.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?,
			scrolls = ?, truncated = ?, extracted = ?, written = ?, output_path = ?
		WHERE id = ?
	`, status, msg, s.now().UTC(), stats.Scrolls, stats.Truncated, stats.Extracted, stats.Written,
		stats.Output, runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// SaveRecords inserts records, refreshing text and engagement counters of
// records already archived by an earlier run.
func (s *Store) SaveRecords(ctx context.Context, runID string, records []types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (external_id, run_id, text, author_id, author_handle, author_name,
			created_at_ms, replies, retweets, likes, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			run_id = excluded.run_id,
			text = COALESCE(excluded.text, records.text),
			replies = excluded.replies,
			retweets = excluded.retweets,
			likes = excluded.likes,
			scraped_at = excluded.scraped_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	scrapedAt := s.now().UTC()
	for _, r := range records {
		_, err := stmt.ExecContext(ctx, r.ExternalID, runID, nullString(r.Text),
			r.AuthorID, r.AuthorHandle, r.AuthorName, nullFloat(r.CreatedAt),
			r.Replies, r.Retweets, r.Likes, scrapedAt)
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.ExternalID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, handle, since, until, status, COALESCE(error, ''),
			started_at, finished_at, scrolls, truncated, extracted, written,
			COALESCE(output_path, '')
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Mode, &r.Handle, &r.Since, &r.Until, &r.Status, &r.Error,
			&r.StartedAt, &r.FinishedAt, &r.Scrolls, &r.Truncated, &r.Extracted, &r.Written,
			&r.OutputPath); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
