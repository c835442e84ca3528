package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/projgen/internal/project"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		started INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		solution TEXT NOT NULL,
		platform TEXT NOT NULL,
		configuration TEXT NOT NULL,
		outcome TEXT NOT NULL,
		projects INTEGER NOT NULL,
		enabled INTEGER NOT NULL,
		artifacts INTEGER NOT NULL,
		rewritten INTEGER NOT NULL,
		passes INTEGER NOT NULL,
		cycles INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS exclusions (
		run_id TEXT NOT NULL,
		project TEXT NOT NULL,
		reason TEXT NOT NULL,
		detail TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	CREATE INDEX IF NOT EXISTS idx_exclusions_run ON exclusions(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores run and its exclusions in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started, duration_ms, solution, platform, configuration, outcome,
			projects, enabled, artifacts, rewritten, passes, cycles)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Started.UnixMilli(), run.Duration.Milliseconds(), run.Solution, run.Platform,
		run.Configuration, run.Outcome, run.Projects, run.Enabled, run.Artifacts, run.Rewritten,
		run.Passes, run.Cycles,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, e := range run.Exclusions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO exclusions (run_id, project, reason, detail) VALUES (?, ?, ?, ?)",
			run.RunID, e.Project, string(e.Reason), e.Detail,
		); err != nil {
			return fmt.Errorf("insert exclusion: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started, duration_ms, solution, platform, configuration, outcome,
			projects, enabled, artifacts, rewritten, passes, cycles
		FROM runs ORDER BY started DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, durationMS int64
		if err := rows.Scan(&r.RunID, &started, &durationMS, &r.Solution, &r.Platform, &r.Configuration,
			&r.Outcome, &r.Projects, &r.Enabled, &r.Artifacts, &r.Rewritten, &r.Passes, &r.Cycles); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMilli(started)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Exclusions returns the exclusions of runID sorted by project.
func (s *SQLiteStore) Exclusions(ctx context.Context, runID string) ([]project.Exclusion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT project, reason, detail FROM exclusions WHERE run_id = ? ORDER BY project", runID)
	if err != nil {
		return nil, fmt.Errorf("query exclusions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []project.Exclusion
	for rows.Next() {
		var e project.Exclusion
		var reason string
		if err := rows.Scan(&e.Project, &reason, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan exclusion: %w", err)
		}
		e.Reason = project.ExclusionReason(reason)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// NewlyExcluded returns the projects excluded in current but not in previous.
func NewlyExcluded(previous, current []project.Exclusion) []project.Exclusion {
	seen := make(map[string]struct{}, len(previous))
	for _, e := range previous {
		seen[e.Project] = struct{}{}
	}
	var out []project.Exclusion
	for _, e := range current {
		if _, ok := seen[e.Project]; !ok {
			out = append(out, e)
		}
	}
	return out
}
