package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// fixed-width so that text order is time order
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepo keeps runs in a single sqlite table. Times are stored as
// UTC text.
type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo opens or creates the database at path.
func NewSQLiteRepo(ctx context.Context, path string) (*SQLiteRepo, error) {
	if path == "" {
		path = "h2tea.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		model TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create analysis_runs table: %w", err)
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) SaveRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO analysis_runs (id, kind, model, started_at, finished_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			model = excluded.model,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			payload = excluded.payload`,
		run.ID, run.Kind, run.Model,
		run.StartedAt.UTC().Format(sqliteTime), run.FinishedAt.UTC().Format(sqliteTime),
		[]byte(run.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) LoadRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, model, started_at, finished_at, payload FROM analysis_runs WHERE id = ?`, id)

	var run Run
	var started, finished string
	var payload []byte
	if err := row.Scan(&run.ID, &run.Kind, &run.Model, &started, &finished, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	var err error
	if run.StartedAt, err = time.Parse(sqliteTime, started); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	if run.FinishedAt, err = time.Parse(sqliteTime, finished); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	run.Payload = payload
	return &run, nil
}

func (r *SQLiteRepo) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT id, kind, model, started_at, finished_at FROM analysis_runs ORDER BY started_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished string
		if err := rows.Scan(&s.ID, &s.Kind, &s.Model, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if s.StartedAt, err = time.Parse(sqliteTime, started); err != nil {
			return nil, fmt.Errorf("run %s: %w", s.ID, err)
		}
		if s.FinishedAt, err = time.Parse(sqliteTime, finished); err != nil {
			return nil, fmt.Errorf("run %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) Close() error { return r.db.Close() }
