package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepo keeps runs in process memory.
type MemoryRepo struct {
	runs map[string]*Run
	mu   sync.RWMutex
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{runs: make(map[string]*Run)}
}

func (r *MemoryRepo) SaveRun(_ context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}
	cp := *run
	cp.Payload = append([]byte(nil), run.Payload...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = &cp
	return nil
}

func (r *MemoryRepo) LoadRun(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	cp := *run
	cp.Payload = append([]byte(nil), run.Payload...)
	return &cp, nil
}

func (r *MemoryRepo) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RunSummary, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return limitRuns(out, limit), nil
}

func (r *MemoryRepo) Close() error { return nil }
