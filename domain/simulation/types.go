package simulation

import (
	"fmt"
	"math"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
)

// Stage is the replicate-loop state of a simulation run.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageSampling         Stage = "sampling"
	StageEstimating       Stage = "estimating"
	StageIntervalBuilding Stage = "interval_building"
	StageAccumulating     Stage = "accumulating"
	StageDone             Stage = "done"
)

// Outcome tags how a single parameter fared in one replicate.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeUndefinedEstimate  Outcome = "undefined_estimate"
	OutcomeUndefinedInterval  Outcome = "undefined_interval"
	OutcomeDegenerateVariance Outcome = "degenerate_variance"
)

// Defaults shared by the drivers and the outer layers.
const (
	DefaultConfidence    = 0.95
	DefaultReferenceTau0 = 0.001
)

// Interval is a confidence interval on the tau scale.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies strictly inside the interval.
func (i Interval) Contains(v float64) bool {
	return i.Lower < v && v < i.Upper
}

// Width returns Upper - Lower.
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}

// ParameterEstimate is the per-replicate result for one speciation time.
// Statistic is exp(-8*tau/3) as estimated from the frequencies and Variance
// its delta-method variance. Estimate and Interval are only meaningful when
// Outcome is OutcomeOK.
type ParameterEstimate struct {
	Estimate  float64  `json:"estimate"`
	Statistic float64  `json:"statistic"`
	Variance  float64  `json:"variance"`
	Interval  Interval `json:"interval"`
	Covered   bool     `json:"covered"`
	Clamped   bool     `json:"clamped,omitempty"`
	Outcome   Outcome  `json:"outcome"`
	Reason    string   `json:"reason,omitempty"`
}

// Usable reports whether the estimate may enter means and coverage.
func (e ParameterEstimate) Usable() bool {
	return e.Outcome == OutcomeOK
}

// EstimateRecord bundles everything computed for one replicate.
type EstimateRecord struct {
	Replicate   int                        `json:"replicate"`
	Frequencies coalescent.SiteFrequencies `json:"frequencies"`
	Tau0        ParameterEstimate          `json:"tau0"`
	Tau1        ParameterEstimate          `json:"tau1"`
}

// For returns the estimate of the selected parameter.
func (r EstimateRecord) For(param coalescent.Parameter) ParameterEstimate {
	if param == coalescent.Tau1 {
		return r.Tau1
	}
	return r.Tau0
}

// Settings describe one simulation setting.
type Settings struct {
	Params     coalescent.Parameters `json:"params"`
	Trials     int                   `json:"trials"`     // sites per replicate (n)
	Replicates int                   `json:"replicates"` // number of replicates
	Seed       uint64                `json:"seed"`
	Workers    int                   `json:"workers"`    // <= 1 runs on a single stream
	Confidence float64               `json:"confidence"` // 0 means DefaultConfidence
}

// Validate rejects settings that cannot be simulated.
func (s Settings) Validate() error {
	if err := s.Params.Validate(); err != nil {
		return err
	}
	return validateCounts(s.Trials, s.Replicates, s.Confidence)
}

// ConfidenceLevel returns the configured level or the default.
func (s Settings) ConfidenceLevel() float64 {
	if s.Confidence == 0 {
		return DefaultConfidence
	}
	return s.Confidence
}

// Coverage counts how often intervals for one parameter contained the truth.
type Coverage struct {
	Covered    int             `json:"covered"`
	Usable     int             `json:"usable"`
	Excluded   int             `json:"excluded"`
	Exclusions map[Outcome]int `json:"exclusions,omitempty"`
}

// Add accumulates one replicate.
func (c *Coverage) Add(e ParameterEstimate) {
	if !e.Usable() {
		c.Excluded++
		if c.Exclusions == nil {
			c.Exclusions = make(map[Outcome]int)
		}
		c.Exclusions[e.Outcome]++
		return
	}
	c.Usable++
	if e.Covered {
		c.Covered++
	}
}

// Frequency is Covered / Usable; NaN when no replicate was usable.
func (c Coverage) Frequency() float64 {
	if c.Usable == 0 {
		return math.NaN()
	}
	return float64(c.Covered) / float64(c.Usable)
}

// Result holds the complete output of one simulation setting.
type Result struct {
	RunID               core.RunID                   `json:"run_id"`
	Settings            Settings                     `json:"settings"`
	Probabilities       coalescent.SiteProbabilities `json:"probabilities"`
	Records             []EstimateRecord             `json:"records"`
	Tau0Coverage        Coverage                     `json:"tau0_coverage"`
	Tau1Coverage        Coverage                     `json:"tau1_coverage"`
	DegenerateVariances int                          `json:"degenerate_variances"`
	Fingerprint         core.Hash                    `json:"fingerprint"`
	StartedAt           core.Timestamp               `json:"started_at"`
	FinishedAt          core.Timestamp               `json:"finished_at"`
}

// Coverage returns the coverage tally of the selected parameter.
func (r *Result) Coverage(param coalescent.Parameter) Coverage {
	if param == coalescent.Tau1 {
		return r.Tau1Coverage
	}
	return r.Tau0Coverage
}

// Estimates returns the point estimates of usable replicates, in replicate order.
func (r *Result) Estimates(param coalescent.Parameter) []float64 {
	return r.collect(param, func(e ParameterEstimate) float64 { return e.Estimate })
}

// Statistics returns the exp(-8*tau/3) statistics of usable replicates.
func (r *Result) Statistics(param coalescent.Parameter) []float64 {
	return r.collect(param, func(e ParameterEstimate) float64 { return e.Statistic })
}

// Variances returns the delta-method variances of usable replicates.
func (r *Result) Variances(param coalescent.Parameter) []float64 {
	return r.collect(param, func(e ParameterEstimate) float64 { return e.Variance })
}

// Intervals returns the usable intervals as a 2-column array.
func (r *Result) Intervals(param coalescent.Parameter) [][2]float64 {
	out := make([][2]float64, 0, len(r.Records))
	for _, rec := range r.Records {
		e := rec.For(param)
		if e.Usable() {
			out = append(out, [2]float64{e.Interval.Lower, e.Interval.Upper})
		}
	}
	return out
}

func (r *Result) collect(param coalescent.Parameter, get func(ParameterEstimate) float64) []float64 {
	out := make([]float64, 0, len(r.Records))
	for _, rec := range r.Records {
		e := rec.For(param)
		if e.Usable() {
			out = append(out, get(e))
		}
	}
	return out
}

// TestSettings describe one hypothesis-test setting for H0: tau1 = 0.
type TestSettings struct {
	Tau0       float64 `json:"tau0"` // reference depth, DefaultReferenceTau0 when zero
	Tau1       float64 `json:"tau1"` // true generating value
	Theta      float64 `json:"theta"`
	Trials     int     `json:"trials"`
	Replicates int     `json:"replicates"`
	Seed       uint64  `json:"seed"`
	Workers    int     `json:"workers"`
	Confidence float64 `json:"confidence"`
}

// Params returns the generating parameter triple.
func (s TestSettings) Params() coalescent.Parameters {
	tau0 := s.Tau0
	if tau0 == 0 {
		tau0 = DefaultReferenceTau0
	}
	return coalescent.Parameters{Tau0: tau0, Tau1: s.Tau1, Theta: s.Theta}
}

// ConfidenceLevel returns the configured level or the default.
func (s TestSettings) ConfidenceLevel() float64 {
	if s.Confidence == 0 {
		return DefaultConfidence
	}
	return s.Confidence
}

// Validate rejects settings that cannot be simulated.
func (s TestSettings) Validate() error {
	if err := s.Params().Validate(); err != nil {
		return err
	}
	return validateCounts(s.Trials, s.Replicates, s.Confidence)
}

// TestStatisticRecord is the Wald test outcome of one replicate.
type TestStatisticRecord struct {
	Replicate int     `json:"replicate"`
	Z         float64 `json:"z"`
	PValue    float64 `json:"p_value"`
	Reject    bool    `json:"reject"`
	Clamped   bool    `json:"clamped,omitempty"` // negative delta variance clamped to zero
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`
}

// TestResult holds the complete output of one hypothesis-test setting.
type TestResult struct {
	RunID               core.RunID            `json:"run_id"`
	Settings            TestSettings          `json:"settings"`
	Records             []TestStatisticRecord `json:"records"`
	Rejections          int                   `json:"rejections"`
	Usable              int                   `json:"usable"`
	Excluded            int                   `json:"excluded"`
	Exclusions          map[Outcome]int       `json:"exclusions,omitempty"`
	DegenerateVariances int                   `json:"degenerate_variances"`
	Fingerprint         core.Hash             `json:"fingerprint"`
	StartedAt           core.Timestamp        `json:"started_at"`
	FinishedAt          core.Timestamp        `json:"finished_at"`
}

// RejectionRate is the power (or type-I error rate when tau1 = 0).
func (r *TestResult) RejectionRate() float64 {
	if r.Usable == 0 {
		return math.NaN()
	}
	return float64(r.Rejections) / float64(r.Usable)
}

// Statistics returns the Z statistics of usable replicates.
func (r *TestResult) Statistics() []float64 {
	out := make([]float64, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.Outcome == OutcomeOK {
			out = append(out, rec.Z)
		}
	}
	return out
}

// PowerPoint is one point of a power curve.
type PowerPoint struct {
	Tau1     float64    `json:"tau1"`
	Power    float64    `json:"power"`
	Usable   int        `json:"usable"`
	Excluded int        `json:"excluded"`
	RunID    core.RunID `json:"run_id"`
}

// PowerCurve is the rejection rate of H0: tau1 = 0 across true tau1 values.
type PowerCurve struct {
	Tau0       float64      `json:"tau0"`
	Theta      float64      `json:"theta"`
	Trials     int          `json:"trials"`
	Replicates int          `json:"replicates"`
	Points     []PowerPoint `json:"points"`
}

// Monotone reports whether power never drops by more than tol as tau1 moves
// away from zero. Points must be ordered by increasing |tau1|.
func (c PowerCurve) Monotone(tol float64) bool {
	for i := 1; i < len(c.Points); i++ {
		if c.Points[i].Power < c.Points[i-1].Power-tol {
			return false
		}
	}
	return true
}

func validateCounts(trials, replicates int, confidence float64) error {
	if trials <= 0 {
		return core.NewInvalidParameterError("trials", fmt.Sprintf("must be positive, got %d", trials))
	}
	if replicates <= 0 {
		return core.NewInvalidParameterError("replicates", fmt.Sprintf("must be positive, got %d", replicates))
	}
	if confidence != 0 && (confidence <= 0 || confidence >= 1 || math.IsNaN(confidence)) {
		return core.NewInvalidParameterError("confidence", fmt.Sprintf("must lie in (0, 1), got %g", confidence))
	}
	return nil
}
