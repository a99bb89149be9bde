package summary

import (
	"math"
	"testing"
	"time"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okEstimate(tau, stat, variance, lower, upper float64, covered bool) simulation.ParameterEstimate {
	return simulation.ParameterEstimate{
		Estimate:  tau,
		Statistic: stat,
		Variance:  variance,
		Interval:  simulation.Interval{Lower: lower, Upper: upper},
		Covered:   covered,
		Outcome:   simulation.OutcomeOK,
	}
}

func fixture() *simulation.Result {
	started := core.NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result := &simulation.Result{
		RunID: core.NewRunID(),
		Settings: simulation.Settings{
			Params:     coalescent.Parameters{Tau0: 2, Tau1: 1, Theta: 0.001},
			Trials:     100,
			Replicates: 4,
		},
		StartedAt:  started,
		FinishedAt: core.NewTimestamp(started.Time().Add(1500 * time.Millisecond)),
	}
	tau0 := []simulation.ParameterEstimate{
		okEstimate(1, 0.5, 0.01, 0.5, 1.5, false),
		okEstimate(2, 0.6, 0.03, 1.0, 3.0, true),
		okEstimate(3, 0.7, 0.02, 2.5, 3.5, false),
		{Outcome: simulation.OutcomeUndefinedEstimate, Reason: "log argument -0.01"},
	}
	tau1 := []simulation.ParameterEstimate{
		okEstimate(1, 0.9, 0.04, 0.5, 1.5, true),
		{Outcome: simulation.OutcomeUndefinedInterval},
		{Outcome: simulation.OutcomeUndefinedInterval},
		{Outcome: simulation.OutcomeUndefinedEstimate},
	}
	for i := range tau0 {
		rec := simulation.EstimateRecord{Replicate: i, Tau0: tau0[i], Tau1: tau1[i]}
		result.Records = append(result.Records, rec)
		result.Tau0Coverage.Add(rec.Tau0)
		result.Tau1Coverage.Add(rec.Tau1)
	}
	return result
}

func TestParameterSummary(t *testing.T) {
	s, err := Parameter(fixture(), coalescent.Tau0)
	require.NoError(t, err)

	assert.Equal(t, coalescent.Tau0, s.Parameter)
	assert.Equal(t, 2.0, s.True)
	assert.Equal(t, 3, s.Usable)
	assert.Equal(t, 1, s.Excluded)
	assert.InDelta(t, 2.0, s.Mean, 1e-12)
	assert.InDelta(t, 0.0, s.Bias, 1e-12)
	assert.InDelta(t, 1.0, s.Variance, 1e-12)
	assert.InDelta(t, 1.0, s.StdDev, 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3.0), s.RMSE, 1e-12)
	assert.InDelta(t, 2.0, s.Median, 1e-12)
	assert.LessOrEqual(t, s.Q025, s.Median)
	assert.GreaterOrEqual(t, s.Q975, s.Median)

	assert.InDelta(t, 0.02, s.MeanDeltaVariance, 1e-12)
	assert.InDelta(t, 0.01, s.EmpiricalStatisticVariance, 1e-12)
	assert.InDelta(t, 2.0, s.CalibrationRatio, 1e-9)
	assert.InDelta(t, 4.0/3.0, s.MeanIntervalWidth, 1e-12)
	assert.InDelta(t, 1.0/3.0, s.Coverage, 1e-12)
}

func TestParameterSummarySingleReplicate(t *testing.T) {
	s, err := Parameter(fixture(), coalescent.Tau1)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Usable)
	assert.Equal(t, 3, s.Excluded)
	assert.Equal(t, 0.0, s.Variance)
	assert.Equal(t, 0.0, s.CalibrationRatio)
	assert.Equal(t, 1.0, s.Coverage)
}

func TestParameterSummaryNothingUsable(t *testing.T) {
	result := fixture()
	for i := range result.Records {
		result.Records[i].Tau1 = simulation.ParameterEstimate{Outcome: simulation.OutcomeUndefinedEstimate}
	}
	result.Tau1Coverage = simulation.Coverage{}
	for _, rec := range result.Records {
		result.Tau1Coverage.Add(rec.Tau1)
	}

	s, err := Parameter(result, coalescent.Tau1)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Usable)
	assert.Equal(t, 4, s.Excluded)
	assert.Equal(t, 0.0, s.Mean)
	assert.Equal(t, 0.0, s.Coverage)
	assert.False(t, math.IsNaN(s.Coverage))
}

func TestSummarize(t *testing.T) {
	result := fixture()
	s, err := Summarize(result)
	require.NoError(t, err)

	assert.Equal(t, result.RunID, s.RunID)
	assert.Equal(t, int64(1500), s.RuntimeMs)
	assert.Equal(t, coalescent.Tau0, s.For(coalescent.Tau0).Parameter)
	assert.Equal(t, coalescent.Tau1, s.For(coalescent.Tau1).Parameter)
}

func TestSummarizeTest(t *testing.T) {
	result := &simulation.TestResult{
		RunID: core.NewRunID(),
		Records: []simulation.TestStatisticRecord{
			{Replicate: 0, Z: -1, Outcome: simulation.OutcomeOK},
			{Replicate: 1, Z: 3, Reject: true, Outcome: simulation.OutcomeOK},
			{Replicate: 2, Clamped: true, Outcome: simulation.OutcomeDegenerateVariance},
		},
		Rejections:          1,
		Usable:              2,
		Excluded:            1,
		DegenerateVariances: 1,
	}

	s, err := SummarizeTest(result)
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.RejectionRate)
	assert.InDelta(t, 1.0, s.MeanZ, 1e-12)
	assert.InDelta(t, math.Sqrt(8), s.StdDevZ, 1e-12)
	assert.Equal(t, 1, s.Excluded)
	assert.Equal(t, 1, s.DegenerateVariances)

	empty, err := SummarizeTest(&simulation.TestResult{Excluded: 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.RejectionRate)
}
