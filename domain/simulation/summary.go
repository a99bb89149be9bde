package simulation

import (
	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
)

// ParameterSummary describes the Monte Carlo behaviour of one estimator
// over the usable replicates of a run.
type ParameterSummary struct {
	Parameter coalescent.Parameter `json:"parameter" db:"parameter"`
	True      float64              `json:"true" db:"true_value"`
	Usable    int                  `json:"usable" db:"usable"`
	Excluded  int                  `json:"excluded" db:"excluded"`

	Mean     float64 `json:"mean" db:"mean"`
	Bias     float64 `json:"bias" db:"bias"`
	Variance float64 `json:"variance" db:"variance"` // sample variance of the estimates
	StdDev   float64 `json:"std_dev" db:"std_dev"`
	RMSE     float64 `json:"rmse" db:"rmse"`
	Median   float64 `json:"median" db:"median"`
	Q025     float64 `json:"q025" db:"q025"`
	Q975     float64 `json:"q975" db:"q975"`

	// MeanDeltaVariance is the average delta-method variance of the
	// exp(-8τ/3) statistic; EmpiricalStatisticVariance is the sample variance
	// of that statistic. Their ratio is near 1 when the variance formula is
	// calibrated.
	MeanDeltaVariance          float64 `json:"mean_delta_variance" db:"mean_delta_variance"`
	EmpiricalStatisticVariance float64 `json:"empirical_statistic_variance" db:"empirical_statistic_variance"`
	CalibrationRatio           float64 `json:"calibration_ratio" db:"calibration_ratio"`

	MeanIntervalWidth float64 `json:"mean_interval_width" db:"mean_interval_width"`
	Coverage          float64 `json:"coverage" db:"coverage"`
}

// RunSummary is the reportable digest of one simulation setting.
type RunSummary struct {
	RunID               core.RunID       `json:"run_id"`
	Settings            Settings         `json:"settings"`
	Tau0                ParameterSummary `json:"tau0"`
	Tau1                ParameterSummary `json:"tau1"`
	DegenerateVariances int              `json:"degenerate_variances"`
	Fingerprint         core.Hash        `json:"fingerprint"`
	RuntimeMs           int64            `json:"runtime_ms"`
	CreatedAt           core.Timestamp   `json:"created_at"`
}

// For returns the summary of the selected parameter.
func (s *RunSummary) For(param coalescent.Parameter) ParameterSummary {
	if param == coalescent.Tau1 {
		return s.Tau1
	}
	return s.Tau0
}

// TestSummary is the reportable digest of one hypothesis-test setting.
type TestSummary struct {
	RunID               core.RunID     `json:"run_id"`
	Settings            TestSettings   `json:"settings"`
	RejectionRate       float64        `json:"rejection_rate"`
	Usable              int            `json:"usable"`
	Excluded            int            `json:"excluded"`
	DegenerateVariances int            `json:"degenerate_variances"`
	MeanZ               float64        `json:"mean_z"`
	StdDevZ             float64        `json:"std_dev_z"`
	Fingerprint         core.Hash      `json:"fingerprint"`
	RuntimeMs           int64          `json:"runtime_ms"`
	CreatedAt           core.Timestamp `json:"created_at"`
}
