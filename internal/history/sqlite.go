// Package history persists run outcomes to a local store. The store is
// append-only observability: the sync engine writes one row per run and the
// history command reads them back, but nothing in the pipeline ever consults
// past runs to decide what to process.
package history

import (
	"database/sql"
	"fmt"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
	"github.com/atulpatildbz/groq-speech-to-text/internal/history/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory implements the History interface using SQLite.
type SQLiteHistory struct {
	db   *sql.DB
	path string
}

var _ gdsync.History = (*SQLiteHistory)(nil)

// NewSQLiteHistory opens (or creates) the history database at path and runs
// any pending schema migrations. path can be ":memory:" for tests.
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	return &SQLiteHistory{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the schema depends on.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward
	// compatibility); run_failures rows cascade with their run.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// RecordRun appends a run and its failures in one transaction.
func (s *SQLiteHistory) RecordRun(run *gdsync.Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, finished_at, succeeded, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Succeeded, run.Failed, run.Skipped,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, f := range run.Failures {
		_, err = tx.Exec(
			`INSERT INTO run_failures (run_id, asset, stage, reason) VALUES (?, ?, ?, ?)`,
			run.ID, f.Asset, string(f.Stage), f.Reason,
		)
		if err != nil {
			return fmt.Errorf("inserting failure for %s: %w", f.Asset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs ordered newest first, each with its
// failures attached.
func (s *SQLiteHistory) ListRuns(limit int) ([]*gdsync.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, succeeded, failed, skipped
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*gdsync.Run
	for rows.Next() {
		var run gdsync.Run
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Succeeded, &run.Failed, &run.Skipped); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	for _, run := range runs {
		failures, err := s.listFailures(run.ID)
		if err != nil {
			return nil, err
		}
		run.Failures = failures
	}
	return runs, nil
}

func (s *SQLiteHistory) listFailures(runID string) ([]gdsync.RunFailure, error) {
	rows, err := s.db.Query(
		`SELECT asset, stage, reason FROM run_failures WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var failures []gdsync.RunFailure
	for rows.Next() {
		var f gdsync.RunFailure
		var stage string
		if err := rows.Scan(&f.Asset, &stage, &f.Reason); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		f.Stage = gdsync.Stage(stage)
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating failures: %w", err)
	}
	return failures, nil
}

// Path returns the database file path.
func (s *SQLiteHistory) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteHistory) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
