package config

import (
	"encoding/json"
	"net/http"

	coreConfig "hydrogen_tea/pkg/core/config"
	"hydrogen_tea/pkg/core/scenario"
)

// Response describes the running engine.
type Response struct {
	Plugins        []string `json:"plugins"`
	Analyses       []string `json:"analyses"`
	Workers        int      `json:"workers"`
	TimeoutSeconds float64  `json:"timeout_seconds"`
	ResultsDriver  string   `json:"results_driver"`
	LookupDriver   string   `json:"lookup_driver"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	Engine   *scenario.Engine
	Settings *coreConfig.Settings
}

// NewHandler creates a new config handler
func NewHandler(engine *scenario.Engine, settings *coreConfig.Settings) *Handler {
	return &Handler{
		Engine:   engine,
		Settings: settings,
	}
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	resp := Response{
		Plugins:        h.Engine.Plugins(),
		Analyses:       scenario.Kinds,
		Workers:        h.Engine.Workers(),
		TimeoutSeconds: h.Engine.Timeout().Seconds(),
	}
	if h.Settings != nil {
		resp.ResultsDriver = h.Settings.Results.Driver
		resp.LookupDriver = h.Settings.Lookup.Driver
	}
	json.NewEncoder(w).Encode(resp)
}
