// Package history keeps a SQLite log of finished scan runs and their
// detections.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Run is one stored scan run.
type Run struct {
	ID         string
	StartedAt  time.Time
	Scanner    string
	Total      int
	Processed  int
	Infected   int
	Errors     int
	Cancelled  bool
	Elapsed    time.Duration
	Infections []Infection
}

type Infection struct {
	Path    string
	Message string
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.initDDL(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initDDL(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
		  id TEXT PRIMARY KEY,
		  started_at DATETIME NOT NULL,
		  scanner TEXT NOT NULL,
		  total INTEGER NOT NULL,
		  processed INTEGER NOT NULL,
		  infected INTEGER NOT NULL,
		  errors INTEGER NOT NULL,
		  cancelled BOOLEAN NOT NULL,
		  elapsed_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS infections (
		  id INTEGER PRIMARY KEY AUTOINCREMENT,
		  run_id TEXT NOT NULL,
		  path TEXT NOT NULL,
		  message TEXT NOT NULL,
		  FOREIGN KEY (run_id) REFERENCES scan_runs (id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_infections_run ON infections (run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record stores a run and its infections in one transaction.
func (s *Store) Record(ctx context.Context, r Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_runs (id, started_at, scanner, total, processed, infected, errors, cancelled, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.Scanner, r.Total, r.Processed, len(r.Infections), r.Errors, r.Cancelled, r.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO infections (run_id, path, message) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, inf := range r.Infections {
		if _, err := stmt.ExecContext(ctx, r.ID, inf.Path, inf.Message); err != nil {
			return fmt.Errorf("insert infection %s: %w", inf.Path, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit runs, newest first, with their infections.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, scanner, total, processed, infected, errors, cancelled, elapsed_ms
		FROM scan_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r  Run
			ms int64
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Scanner, &r.Total, &r.Processed, &r.Infected, &r.Errors, &r.Cancelled, &ms); err != nil {
			return nil, err
		}
		r.Elapsed = time.Duration(ms) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		infs, err := s.infections(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Infections = infs
	}
	return runs, nil
}

func (s *Store) infections(ctx context.Context, runID string) ([]Infection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, message FROM infections WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Infection
	for rows.Next() {
		var inf Infection
		if err := rows.Scan(&inf.Path, &inf.Message); err != nil {
			return nil, err
		}
		out = append(out, inf)
	}
	return out, rows.Err()
}
