package config

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"hydrogen_tea/pkg/core/logging"
	"hydrogen_tea/pkg/core/lookup"
	"hydrogen_tea/pkg/core/metrics"
	"hydrogen_tea/pkg/core/plugins"
	"hydrogen_tea/pkg/core/scenario"
	"hydrogen_tea/pkg/core/store"
)

// Runtime is everything a command needs to run analyses.
type Runtime struct {
	Settings *Settings
	Engine   *scenario.Engine
	Repo     store.Repository
}

// Close releases the results repository.
func (rt *Runtime) Close() error {
	if rt.Repo == nil {
		return nil
	}
	return rt.Repo.Close()
}

// Bootstrap configures logging and builds the engine over the built-in
// plugins together with the results repository. A nil registerer leaves
// the engine without Prometheus metrics.
func Bootstrap(ctx context.Context, s *Settings, reg prometheus.Registerer) (*Runtime, error) {
	logging.Setup(s.Logging.Level, s.Logging.Pretty)

	plugs, err := plugins.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to register plugins: %w", err)
	}
	src, err := lookup.Open(ctx, s.LookupOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open lookup tables: %w", err)
	}

	opts := []scenario.Option{
		scenario.WithSource(src),
		scenario.WithWorkers(s.Engine.Workers),
		scenario.WithTimeout(s.BatchTimeout()),
		scenario.WithReferenceCheck(s.Engine.ReferenceCheck),
	}
	if reg != nil {
		m, err := metrics.NewProm(s.Server.MetricsNamespace, reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		opts = append(opts, scenario.WithMetrics(m))
	}

	repo, err := store.Open(ctx, s.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open results store: %w", err)
	}

	logging.Info("config", "runtime ready",
		"workers", s.Engine.Workers, "results", s.Results.Driver, "lookup", s.Lookup.Driver)
	return &Runtime{Settings: s, Engine: scenario.New(plugs, opts...), Repo: repo}, nil
}
