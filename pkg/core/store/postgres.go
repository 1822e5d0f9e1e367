package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id          UUID PRIMARY KEY,
		kind        TEXT NOT NULL,
		model       TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		payload     JSONB NOT NULL
	);
`

// PostgresRepo keeps runs in a JSONB column.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRepo creates the runs table when missing.
func NewPostgresRepo(ctx context.Context, p *pgxpool.Pool) (*PostgresRepo, error) {
	if p == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if _, err := p.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create analysis_runs: %w", err)
	}
	return &PostgresRepo{pool: p}, nil
}

// SaveRun upserts a run by id.
func (r *PostgresRepo) SaveRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO analysis_runs (id, kind, model, started_at, finished_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			kind = EXCLUDED.kind,
			model = EXCLUDED.model,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			payload = EXCLUDED.payload;
	`
	_, err := r.pool.Exec(ctx, query, run.ID, run.Kind, run.Model, run.StartedAt, run.FinishedAt, []byte(run.Payload))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// LoadRun retrieves a run with its payload.
func (r *PostgresRepo) LoadRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT id::text, kind, model, started_at, finished_at, payload FROM analysis_runs WHERE id = $1`

	var run Run
	var payload []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&run.ID, &run.Kind, &run.Model, &run.StartedAt, &run.FinishedAt, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.Payload = payload
	return &run, nil
}

// ListRuns lists runs newest first.
func (r *PostgresRepo) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id::text, kind, model, started_at, finished_at
		FROM analysis_runs
		ORDER BY started_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Kind, &s.Model, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close releases the shared pool.
func (r *PostgresRepo) Close() error {
	Close()
	return nil
}
