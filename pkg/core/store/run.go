// Package store persists analysis runs. A run is the JSON payload of one
// analysis together with its identity and timing; drivers differ only in
// where that payload lives.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored analysis.
type Run struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Model      string          `json:"model"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Payload    json.RawMessage `json:"payload"`
}

// RunSummary is a run without its payload, for listings.
type RunSummary struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Model      string    `json:"model"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Summary drops the payload.
func (r *Run) Summary() RunSummary {
	return RunSummary{ID: r.ID, Kind: r.Kind, Model: r.Model, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt}
}

// Decode unmarshals the payload into v.
func (r *Run) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal run %s: %w", r.ID, err)
	}
	return nil
}

// NewRun marshals result into a run with a fresh id, finished now.
func NewRun(kind, model string, started time.Time, result interface{}) (*Run, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s result: %w", kind, err)
	}
	return &Run{
		ID:         uuid.NewString(),
		Kind:       kind,
		Model:      model,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}

// Repository stores and retrieves runs.
type Repository interface {
	SaveRun(ctx context.Context, run *Run) error
	LoadRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs first; limit <= 0 lists all.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	Close() error
}

// =============================================================================
// DRIVER SELECTION
// =============================================================================

// Driver names a repository backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverFile     Driver = "file"
	DriverMemory   Driver = "memory"
)

// Options selects and configures a repository.
type Options struct {
	Driver Driver
	// DSN is the postgres URL, the sqlite database path or the file directory.
	DSN string
}

// OptionsFromEnv reads H2_RESULTS_DRIVER and H2_RESULTS_DSN. Postgres falls
// back to DATABASE_URL.
func OptionsFromEnv() Options {
	o := Options{
		Driver: Driver(strings.ToLower(os.Getenv("H2_RESULTS_DRIVER"))),
		DSN:    os.Getenv("H2_RESULTS_DSN"),
	}
	if o.Driver == "" {
		o.Driver = DriverMemory
	}
	if o.Driver == DriverPostgres && o.DSN == "" {
		o.DSN = os.Getenv("DATABASE_URL")
	}
	return o
}

// Open builds the repository named by opts.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Driver {
	case DriverPostgres:
		if err := InitDB(ctx, opts.DSN); err != nil {
			return nil, err
		}
		return NewPostgresRepo(ctx, GetPool())
	case DriverSQLite:
		return NewSQLiteRepo(ctx, opts.DSN)
	case DriverFile:
		return NewFileRepo(opts.DSN)
	case DriverMemory, "":
		return NewMemoryRepo(), nil
	}
	return nil, fmt.Errorf("unknown results driver %q", opts.Driver)
}

func limitRuns(runs []RunSummary, limit int) []RunSummary {
	if limit > 0 && len(runs) > limit {
		return runs[:limit]
	}
	return runs
}
