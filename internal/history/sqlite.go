// Package history records sync runs in SQLite.
package history

import (
	"database/sql"
	"errors"
	"fmt"

	"ronin-go/internal/history/migrations"
	"ronin-go/internal/ronin"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrUnknownRun is returned by FinishRun for an ID that was never started.
var ErrUnknownRun = errors.New("unknown sync run")

// SQLiteStore implements ronin.HistoryStore using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ ronin.HistoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path and migrates it to the
// current schema. path can be a file path or MemoryPath.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every new connection to :memory: is a fresh, empty database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure database (%s): %w", p, err)
		}
	}
	return db, nil
}

func (s *SQLiteStore) StartRun(run *ronin.SyncRun) error {
	if run.Status == "" {
		run.Status = ronin.StatusRunning
	}
	_, err := s.db.Exec(`
		INSERT INTO sync_runs (
			id, trigger_kind, strategy, source, target, started_at, status, error,
			created, deleted, modified, moved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Trigger), run.Strategy, run.Source, run.Target,
		run.StartedAt.UTC(), run.Status, run.Error,
		run.Changes.Created, run.Changes.Deleted, run.Changes.Modified, run.Changes.Moved,
	)
	if err != nil {
		return fmt.Errorf("recording start of run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(run *ronin.SyncRun) error {
	var finished any
	if run.FinishedAt.Valid {
		finished = run.FinishedAt.Time.UTC()
	}
	var exitCode any
	if run.ExitCode.Valid {
		exitCode = run.ExitCode.Int64
	}

	res, err := s.db.Exec(`
		UPDATE sync_runs
		SET finished_at = ?, exit_code = ?, status = ?, error = ?
		WHERE id = ?`,
		finished, exitCode, run.Status, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("recording outcome of run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording outcome of run %s: %w", run.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, run.ID)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(limit int) ([]*ronin.SyncRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, trigger_kind, strategy, source, target, started_at, finished_at,
			exit_code, status, error, created, deleted, modified, moved
		FROM sync_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*ronin.SyncRun
	for rows.Next() {
		var run ronin.SyncRun
		var trigger string
		if err := rows.Scan(
			&run.ID, &trigger, &run.Strategy, &run.Source, &run.Target,
			&run.StartedAt, &run.FinishedAt, &run.ExitCode, &run.Status, &run.Error,
			&run.Changes.Created, &run.Changes.Deleted, &run.Changes.Modified, &run.Changes.Moved,
		); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		run.Trigger = ronin.Trigger(trigger)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	return runs, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.Status(s.db)
}

// ExportTo writes a complete copy of the database to destPath.
func (s *SQLiteStore) ExportTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("exporting history: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
