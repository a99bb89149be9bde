// Package metrics exposes Prometheus counters for runs served over HTTP.
package metrics

import (
	"net/http"
	"time"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/simulation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run kinds used as the "kind" label
const (
	KindSimulation = "simulation"
	KindTest       = "test"
	KindPower      = "power"
)

// Metrics owns a private registry so several servers (and tests) can
// coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	replicatesTotal *prometheus.CounterVec
	excludedTotal   *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	lastCoverage    *prometheus.GaugeVec
	lastRejection   prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gocoalesce_runs_total",
			Help: "Completed runs by kind",
		}, []string{"kind"}),
		replicatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gocoalesce_replicates_total",
			Help: "Simulated replicates by kind",
		}, []string{"kind"}),
		excludedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gocoalesce_excluded_replicates_total",
			Help: "Replicates excluded from summaries by parameter",
		}, []string{"parameter"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gocoalesce_run_duration_seconds",
			Help:    "Run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~3min
		}, []string{"kind"}),
		lastCoverage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gocoalesce_last_coverage",
			Help: "Coverage frequency of the most recent simulation run",
		}, []string{"parameter"}),
		lastRejection: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gocoalesce_last_rejection_rate",
			Help: "Rejection rate of the most recent hypothesis test",
		}),
	}
}

// ObserveRun records a completed simulation run
func (m *Metrics) ObserveRun(s *simulation.RunSummary) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(KindSimulation).Inc()
	m.replicatesTotal.WithLabelValues(KindSimulation).Add(float64(s.Settings.Replicates))
	m.runDuration.WithLabelValues(KindSimulation).Observe(millis(s.RuntimeMs))
	for _, ps := range []simulation.ParameterSummary{s.Tau0, s.Tau1} {
		m.excludedTotal.WithLabelValues(string(ps.Parameter)).Add(float64(ps.Excluded))
		if ps.Usable > 0 {
			m.lastCoverage.WithLabelValues(string(ps.Parameter)).Set(ps.Coverage)
		}
	}
}

// ObserveTest records a completed hypothesis test
func (m *Metrics) ObserveTest(s *simulation.TestSummary) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(KindTest).Inc()
	m.replicatesTotal.WithLabelValues(KindTest).Add(float64(s.Settings.Replicates))
	m.runDuration.WithLabelValues(KindTest).Observe(millis(s.RuntimeMs))
	m.excludedTotal.WithLabelValues(string(coalescent.Tau1)).Add(float64(s.Excluded))
	if s.Usable > 0 {
		m.lastRejection.Set(s.RejectionRate)
	}
}

// ObservePowerCurve records a completed power curve
func (m *Metrics) ObservePowerCurve(c *simulation.PowerCurve, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(KindPower).Inc()
	m.replicatesTotal.WithLabelValues(KindPower).Add(float64(c.Replicates * len(c.Points)))
	m.runDuration.WithLabelValues(KindPower).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func millis(ms int64) float64 {
	return float64(ms) / 1000
}
