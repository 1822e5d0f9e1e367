package scenario

import (
	"context"
	"path/filepath"
	"strings"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/ingest"
)

// LoadModel reads a model file, fills gaps from the optional defaults file
// and prepares it. The analyses the model declares in its own tables are
// returned alongside.
func (e *Engine) LoadModel(ctx context.Context, path, defaults string) (*Model, *analysis.Config, error) {
	store, err := ingest.NewLoader(e.registry.Rules()).LoadWithDefaults(path, defaults)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := analysis.FromStore(store)
	if err != nil {
		return nil, nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := e.Prepare(ctx, name, store, cfg.OutputPaths())
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}
