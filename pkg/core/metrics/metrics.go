// Package metrics instruments the scenario engine with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status labels for evaluated scenarios.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
)

// Metrics records analysis and scenario activity. Analysis labels are the
// analysis kinds: evaluate, monte_carlo, sensitivity, waterfall, comparative.
type Metrics interface {
	ObserveScenario(analysis, status string, d time.Duration)
	ObserveAnalysis(analysis string, d time.Duration)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) ObserveScenario(string, string, time.Duration) {}
func (Noop) ObserveAnalysis(string, time.Duration)         {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	scenarios        *prometheus.CounterVec
	scenarioDuration *prometheus.HistogramVec
	runs             *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
}

// NewProm builds the collectors and registers them with reg. A nil reg
// registers with the default registry.
func NewProm(namespace string, reg prometheus.Registerer) (*Prom, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Scenarios evaluated by analysis and status",
		}, []string{"analysis", "status"}),
		scenarioDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Time to apply overrides, run the pipeline and read outputs",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"analysis"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analyses run by kind",
		}, []string{"analysis"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a whole analysis",
			Buckets:   prometheus.DefBuckets,
		}, []string{"analysis"}),
	}
	for _, c := range []prometheus.Collector{p.scenarios, p.scenarioDuration, p.runs, p.runDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prom) ObserveScenario(analysis, status string, d time.Duration) {
	p.scenarios.WithLabelValues(analysis, status).Inc()
	p.scenarioDuration.WithLabelValues(analysis).Observe(d.Seconds())
}

func (p *Prom) ObserveAnalysis(analysis string, d time.Duration) {
	p.runs.WithLabelValues(analysis).Inc()
	p.runDuration.WithLabelValues(analysis).Observe(d.Seconds())
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
