// Package summary condenses simulation and hypothesis-test results into the
// Monte Carlo statistics that are reported, exported and stored.
package summary

import (
	"math"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"

	"github.com/montanaflynn/stats"
)

// Summarize digests a simulation result. Statistics over an empty set of
// usable replicates are reported as zero; Usable tells them apart.
func Summarize(result *simulation.Result) (*simulation.RunSummary, error) {
	tau0, err := Parameter(result, coalescent.Tau0)
	if err != nil {
		return nil, err
	}
	tau1, err := Parameter(result, coalescent.Tau1)
	if err != nil {
		return nil, err
	}
	return &simulation.RunSummary{
		RunID:               result.RunID,
		Settings:            result.Settings,
		Tau0:                tau0,
		Tau1:                tau1,
		DegenerateVariances: result.DegenerateVariances,
		Fingerprint:         result.Fingerprint,
		RuntimeMs:           result.FinishedAt.Since(result.StartedAt).Milliseconds(),
		CreatedAt:           core.Now(),
	}, nil
}

// Parameter digests the usable replicates of one parameter.
func Parameter(result *simulation.Result, param coalescent.Parameter) (simulation.ParameterSummary, error) {
	coverage := result.Coverage(param)
	truth := result.Settings.Params.Value(param)
	out := simulation.ParameterSummary{
		Parameter: param,
		True:      truth,
		Usable:    coverage.Usable,
		Excluded:  coverage.Excluded,
	}
	estimates := result.Estimates(param)
	if len(estimates) == 0 {
		return out, nil
	}

	var err error
	if out.Mean, err = stats.Mean(estimates); err != nil {
		return out, err
	}
	out.Bias = out.Mean - truth
	if out.Median, err = stats.Median(estimates); err != nil {
		return out, err
	}
	if out.Q025, err = percentile(estimates, 2.5); err != nil {
		return out, err
	}
	if out.Q975, err = percentile(estimates, 97.5); err != nil {
		return out, err
	}
	if out.Variance, err = sampleVariance(estimates); err != nil {
		return out, err
	}
	out.StdDev = math.Sqrt(out.Variance)
	if out.RMSE, err = rmse(estimates, truth); err != nil {
		return out, err
	}

	if out.MeanDeltaVariance, err = stats.Mean(result.Variances(param)); err != nil {
		return out, err
	}
	if out.EmpiricalStatisticVariance, err = sampleVariance(result.Statistics(param)); err != nil {
		return out, err
	}
	if out.EmpiricalStatisticVariance > 0 {
		out.CalibrationRatio = out.MeanDeltaVariance / out.EmpiricalStatisticVariance
	}

	widths := make([]float64, 0, len(estimates))
	for _, iv := range result.Intervals(param) {
		widths = append(widths, iv[1]-iv[0])
	}
	if out.MeanIntervalWidth, err = stats.Mean(widths); err != nil {
		return out, err
	}
	out.Coverage = coverage.Frequency()
	return out, nil
}

// SummarizeTest digests a hypothesis-test result.
func SummarizeTest(result *simulation.TestResult) (*simulation.TestSummary, error) {
	out := &simulation.TestSummary{
		RunID:               result.RunID,
		Settings:            result.Settings,
		Usable:              result.Usable,
		Excluded:            result.Excluded,
		DegenerateVariances: result.DegenerateVariances,
		Fingerprint:         result.Fingerprint,
		RuntimeMs:           result.FinishedAt.Since(result.StartedAt).Milliseconds(),
		CreatedAt:           core.Now(),
	}
	z := result.Statistics()
	if len(z) == 0 {
		return out, nil
	}
	out.RejectionRate = result.RejectionRate()

	var err error
	if out.MeanZ, err = stats.Mean(z); err != nil {
		return nil, err
	}
	variance, err := sampleVariance(z)
	if err != nil {
		return nil, err
	}
	out.StdDevZ = math.Sqrt(variance)
	return out, nil
}

// percentile falls back to the minimum when the rank p*len/100 is below one,
// where stats.Percentile reports a bounds error.
func percentile(data []float64, p float64) (float64, error) {
	if p/100*float64(len(data)) < 1 {
		return stats.Min(data)
	}
	return stats.Percentile(data, p)
}

// sampleVariance is zero for a single observation instead of 0/0.
func sampleVariance(data []float64) (float64, error) {
	if len(data) < 2 {
		return 0, nil
	}
	return stats.SampleVariance(data)
}

func rmse(estimates []float64, truth float64) (float64, error) {
	sq := make([]float64, len(estimates))
	for i, v := range estimates {
		d := v - truth
		sq[i] = d * d
	}
	mse, err := stats.Mean(sq)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}
