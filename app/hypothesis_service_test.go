package app

import (
	"bytes"
	"context"
	"math"
	"testing"

	"gocoalesce/adapters/rng"
	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHypothesisService() *HypothesisService {
	return NewHypothesisService(rng.NewPCGAdapter(), quietLogger())
}

func nullSettings(replicates int) simulation.TestSettings {
	return simulation.TestSettings{
		Tau1:       0,
		Theta:      0.005,
		Trials:     100000,
		Replicates: replicates,
		Seed:       11,
	}
}

func TestHypothesisTestRecords(t *testing.T) {
	result, err := newHypothesisService().Test(context.Background(), nullSettings(100))
	require.NoError(t, err)

	require.Len(t, result.Records, 100)
	assert.Equal(t, 100, result.Usable+result.Excluded)
	assert.Len(t, result.Statistics(), result.Usable)
	assert.Equal(t, 0.001, result.Settings.Params().Tau0)

	rejections := 0
	for _, rec := range result.Records {
		if rec.Outcome != simulation.OutcomeOK {
			continue
		}
		assert.Equal(t, math.Abs(rec.Z) > 1.96, rec.Reject)
		assert.GreaterOrEqual(t, rec.PValue, 0.0)
		assert.LessOrEqual(t, rec.PValue, 1.0)
		if rec.Reject {
			rejections++
			assert.Less(t, rec.PValue, 0.05+1e-9)
		}
	}
	assert.Equal(t, rejections, result.Rejections)
}

func TestHypothesisTestReproducible(t *testing.T) {
	svc := newHypothesisService()
	a, err := svc.Test(context.Background(), nullSettings(30))
	require.NoError(t, err)
	b, err := svc.Test(context.Background(), nullSettings(30))
	require.NoError(t, err)
	assert.Equal(t, a.Records, b.Records)

	par := nullSettings(30)
	par.Workers = 3
	c, err := svc.Test(context.Background(), par)
	require.NoError(t, err)
	par.Workers = 6
	d, err := svc.Test(context.Background(), par)
	require.NoError(t, err)
	assert.Equal(t, c.Records, d.Records)
}

func TestHypothesisTestExcludesDegenerateReplicates(t *testing.T) {
	settings := nullSettings(25)
	settings.Trials = 1

	result, err := newHypothesisService().Test(context.Background(), settings)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Usable)
	assert.Equal(t, 25, result.Excluded)
	assert.Equal(t, 25, result.Exclusions[simulation.OutcomeDegenerateVariance]+
		result.Exclusions[simulation.OutcomeUndefinedEstimate])
	assert.True(t, math.IsNaN(result.RejectionRate()))
}

func TestHypothesisAccumulateCountsClampedVariance(t *testing.T) {
	var logs bytes.Buffer
	h := NewHypothesisService(rng.NewPCGAdapter(), internal.NewLoggerTo(&logs, internal.LogLevelWarn))
	result := &simulation.TestResult{}

	h.accumulate(result, simulation.TestStatisticRecord{Replicate: 0, Z: 0.4, Outcome: simulation.OutcomeOK})
	h.accumulate(result, simulation.TestStatisticRecord{Replicate: 1, Clamped: true, Outcome: simulation.OutcomeDegenerateVariance})
	h.accumulate(result, simulation.TestStatisticRecord{Replicate: 2, Z: 2.5, Reject: true, Clamped: true, Outcome: simulation.OutcomeOK})

	assert.Equal(t, 2, result.DegenerateVariances)
	assert.Equal(t, 2, result.Usable)
	assert.Equal(t, 1, result.Excluded)
	assert.Contains(t, logs.String(), "replicate 1: negative delta variance clamped to zero")
	assert.Contains(t, logs.String(), "replicate 2: negative delta variance clamped to zero")
}

func TestHypothesisTestRejectsInvalidSettings(t *testing.T) {
	settings := nullSettings(10)
	settings.Theta = -1
	_, err := newHypothesisService().Test(context.Background(), settings)
	require.Error(t, err)
	assert.True(t, core.IsInvalidParameter(err))
}

func TestPowerCurveOrderedAndMonotone(t *testing.T) {
	base := nullSettings(500)
	base.Workers = 4

	curve, err := newHypothesisService().PowerCurve(context.Background(), base, []float64{0.0004, 0, 0.001, 0.0001})
	require.NoError(t, err)

	require.Len(t, curve.Points, 4)
	assert.Equal(t, []float64{0, 0.0001, 0.0004, 0.001},
		[]float64{curve.Points[0].Tau1, curve.Points[1].Tau1, curve.Points[2].Tau1, curve.Points[3].Tau1})
	for _, p := range curve.Points {
		assert.Equal(t, 500, p.Usable+p.Excluded)
		assert.NotEmpty(t, p.RunID)
	}
	assert.True(t, curve.Monotone(0.05), "power curve %+v", curve.Points)
	assert.Less(t, curve.Points[0].Power, 0.12)
	assert.Greater(t, curve.Points[3].Power, 0.9)
	assert.Equal(t, 0.001, curve.Tau0)
	assert.Equal(t, 0.005, curve.Theta)
}

func TestPowerCurveRejectsEmptyGrid(t *testing.T) {
	_, err := newHypothesisService().PowerCurve(context.Background(), nullSettings(10), nil)
	require.Error(t, err)
	assert.True(t, core.IsInvalidParameter(err))
}

func TestTypeIErrorNearNominal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10k-replicate type-I study in short mode")
	}

	settings := nullSettings(10000)
	settings.Seed = 20240101
	settings.Workers = 8
	result, err := newHypothesisService().Test(context.Background(), settings)
	require.NoError(t, err)

	t.Logf("type-I error %.4f (usable %d, excluded %d)", result.RejectionRate(), result.Usable, result.Excluded)
	assert.InDelta(t, 0.05, result.RejectionRate(), 0.02)
}
