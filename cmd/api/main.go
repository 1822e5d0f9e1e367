package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"hydrogen_tea/pkg/api/analysis"
	"hydrogen_tea/pkg/api/config"
	coreConfig "hydrogen_tea/pkg/core/config"
	"hydrogen_tea/pkg/core/logging"
	"hydrogen_tea/pkg/core/metrics"
)

func main() {
	// Load environment variables
	godotenv.Load()

	settings, err := coreConfig.Load(coreConfig.DefaultPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("[FATAL] Failed to load settings: %v\n", err)
		os.Exit(1)
	}

	modelDir := os.Getenv("H2_MODEL_DIR")
	if modelDir == "" {
		modelDir = "models"
	}

	rt, err := coreConfig.Bootstrap(context.Background(), settings, prometheus.DefaultRegisterer)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	mux := http.NewServeMux()

	// Config endpoints
	configHandler := config.NewHandler(rt.Engine, settings)
	mux.HandleFunc("GET /api/config", configHandler.HandleConfig)

	// Analysis endpoints
	analysisHandler := analysis.NewHandler(rt.Engine, rt.Repo, modelDir)
	analysisHandler.Defaults = os.Getenv("H2_MODEL_DEFAULTS")
	analysisHandler.Register(mux)

	mux.Handle("GET /metrics", metrics.Handler())

	logging.Info("api", "server starting", "addr", settings.Server.Addr, "models", modelDir)
	fmt.Printf("API server starting on %s...\n", settings.Server.Addr)
	fmt.Println("  - GET  /api/config")
	fmt.Println("  - POST /api/analysis/run")
	fmt.Println("  - GET  /api/analysis/runs")
	fmt.Println("  - GET  /api/analysis/runs/{id}")
	fmt.Println("  - GET  /metrics")

	if err := http.ListenAndServe(settings.Server.Addr, mux); err != nil {
		logging.Error("api", "server stopped", err)
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
