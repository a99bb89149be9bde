package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/simulation"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := New()
	s := &simulation.RunSummary{
		Settings:  simulation.Settings{Replicates: 200},
		Tau0:      simulation.ParameterSummary{Parameter: coalescent.Tau0, Usable: 200, Coverage: 0.95},
		Tau1:      simulation.ParameterSummary{Parameter: coalescent.Tau1, Usable: 197, Excluded: 3, Coverage: 0.94},
		RuntimeMs: 120,
	}
	m.ObserveRun(s)
	m.ObserveRun(s)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(KindSimulation)))
	assert.Equal(t, 400.0, testutil.ToFloat64(m.replicatesTotal.WithLabelValues(KindSimulation)))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.excludedTotal.WithLabelValues("tau1")))
	assert.Equal(t, 0.94, testutil.ToFloat64(m.lastCoverage.WithLabelValues("tau1")))
}

func TestObserveTestAndPower(t *testing.T) {
	m := New()
	m.ObserveTest(&simulation.TestSummary{
		Settings:      simulation.TestSettings{Replicates: 100},
		RejectionRate: 0.04,
		Usable:        99,
		Excluded:      1,
	})
	m.ObservePowerCurve(&simulation.PowerCurve{Replicates: 50, Points: make([]simulation.PowerPoint, 3)}, time.Second)

	assert.Equal(t, 0.04, testutil.ToFloat64(m.lastRejection))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(KindPower)))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.replicatesTotal.WithLabelValues(KindPower)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun(&simulation.RunSummary{})
	m.ObserveTest(&simulation.TestSummary{})
	m.ObservePowerCurve(&simulation.PowerCurve{}, 0)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveTest(&simulation.TestSummary{Settings: simulation.TestSettings{Replicates: 10}, Usable: 10})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gocoalesce_runs_total{kind="test"} 1`)
}
