// Package analysis provides API handlers for running analyses on model
// files and fetching stored runs.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	coreAnalysis "hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/logging"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/scenario"
	"hydrogen_tea/pkg/core/store"
)

// OverrideRequest is one override in request form. Value is a configuration
// cell such as "304", "12%" or a path.
type OverrideRequest struct {
	Path  string `json:"path"`
	Value string `json:"value"`
	Mode  string `json:"mode,omitempty"`
}

// RunRequest asks for one analysis of a model file.
type RunRequest struct {
	// Model is relative to the model directory.
	Model string `json:"model"`
	// Kind is evaluate, monte_carlo, sensitivity, waterfall or comparative.
	Kind      string               `json:"kind"`
	Overrides []OverrideRequest    `json:"overrides,omitempty"`
	Analysis  *coreAnalysis.Config `json:"analysis,omitempty"`
}

// RunResponse is a stored run with its result.
type RunResponse struct {
	RunID  string      `json:"run_id"`
	Kind   string      `json:"kind"`
	Model  string      `json:"model"`
	Result interface{} `json:"result"`
	Error  string      `json:"error,omitempty"`
}

// Handler holds dependencies for analysis endpoints
type Handler struct {
	Engine   *scenario.Engine
	Repo     store.Repository
	ModelDir string
	Defaults string // optional defaults file, relative to ModelDir
}

// NewHandler creates a new analysis handler
func NewHandler(engine *scenario.Engine, repo store.Repository, modelDir string) *Handler {
	return &Handler{
		Engine:   engine,
		Repo:     repo,
		ModelDir: modelDir,
	}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/analysis/run", h.HandleRun)
	mux.HandleFunc("GET /api/analysis/runs", h.HandleListRuns)
	mux.HandleFunc("GET /api/analysis/runs/{id}", h.HandleGetRun)
}

func cors(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusOf maps engine errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrRunNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, params.ErrMalformedAnalysisConfig),
		errors.Is(err, params.ErrUnknownPlugin),
		errors.Is(err, params.ErrInvalidOverride),
		errors.Is(err, params.ErrNotFound),
		errors.Is(err, params.ErrCyclicReference),
		errors.Is(err, params.ErrPluginInput):
		return http.StatusBadRequest
	case errors.Is(err, scenario.ErrBatchTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// HandleRun loads the model, runs the analysis and stores the run. A batch
// timeout still stores and returns the partial result.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	cors(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = scenario.KindEvaluate
	}

	// 1. Locate and load the model
	if req.Model == "" || !filepath.IsLocal(req.Model) {
		http.Error(w, fmt.Sprintf("model must be a path inside the model directory, got %q", req.Model), http.StatusBadRequest)
		return
	}
	path := filepath.Join(h.ModelDir, req.Model)
	defaults := ""
	if h.Defaults != "" {
		defaults = filepath.Join(h.ModelDir, h.Defaults)
	}

	overrides, err := parseOverrides(req.Overrides)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	m, cfg, err := h.Engine.LoadModel(r.Context(), path, defaults)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	if req.Analysis != nil {
		req.Analysis.Merge(cfg)
		cfg = req.Analysis
	}

	// 2. Run
	result, runErr := h.Engine.Run(r.Context(), scenario.Request{
		Kind:      req.Kind,
		Model:     m,
		Config:    cfg,
		Overrides: overrides,
		ModelPath: path,
		Defaults:  defaults,
	})
	if runErr != nil && !errors.Is(runErr, scenario.ErrBatchTimeout) {
		http.Error(w, runErr.Error(), statusOf(runErr))
		return
	}

	// 3. Store
	run, err := store.NewRun(req.Kind, m.Name, start, result)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.Repo.SaveRun(r.Context(), run); err != nil {
		logging.Error("api", "failed to save run", err, "run", run.ID)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := RunResponse{RunID: run.ID, Kind: req.Kind, Model: m.Name, Result: result}
	status := http.StatusOK
	if runErr != nil {
		resp.Error = runErr.Error()
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, resp)
}

func parseOverrides(reqs []OverrideRequest) ([]params.Override, error) {
	out := make([]params.Override, 0, len(reqs))
	for _, o := range reqs {
		p, err := params.ParsePath(o.Path)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", o.Path, err)
		}
		mode, err := params.ParseOverrideMode(o.Mode)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", o.Path, err)
		}
		out = append(out, params.Override{Path: p, Value: params.ParseLiteral(o.Value), Mode: mode})
	}
	return out, nil
}

// HandleListRuns lists stored runs, newest first. ?limit=N bounds the list.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := h.Repo.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGetRun returns one stored run with its payload.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	run, err := h.Repo.LoadRun(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}
