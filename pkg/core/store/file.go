package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileRepo keeps one JSON file per run in a directory.
type FileRepo struct {
	dir string
	mu  sync.RWMutex
}

// NewFileRepo creates dir when missing. An empty dir defaults to
// .cache/runs.
func NewFileRepo(dir string) (*FileRepo, error) {
	if dir == "" {
		dir = filepath.Join(".cache", "runs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &FileRepo{dir: dir}, nil
}

func (r *FileRepo) runPath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid run id %q", id)
	}
	return filepath.Join(r.dir, id+".json"), nil
}

// SaveRun writes the run, replacing any file with the same id.
func (r *FileRepo) SaveRun(_ context.Context, run *Run) error {
	path, err := r.runPath(run.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadRun reads a run by id.
func (r *FileRepo) LoadRun(_ context.Context, id string) (*Run, error) {
	path, err := r.runPath(id)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, err := loadRunFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns scans the directory. Files that fail to parse are skipped.
func (r *FileRepo) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}
	var out []RunSummary
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		run, err := loadRunFile(filepath.Join(r.dir, f.Name()))
		if err != nil {
			continue
		}
		out = append(out, run.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return limitRuns(out, limit), nil
}

func (r *FileRepo) Close() error { return nil }

func loadRunFile(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return &run, nil
}
