package app

import (
	"errors"
	"math"

	"gocoalesce/adapters/stats/sitepattern"
	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"
)

// ProgressObserver receives replicate stage transitions. Run-level
// transitions (idle, done) are reported with replicate -1. With more than
// one worker, calls for different replicates interleave.
type ProgressObserver func(replicate int, stage simulation.Stage)

// StageRunner executes the per-replicate stages of a run for one parameter
// setting. It owns no random stream: callers pass the sampler so sequential
// and parallel runs go through the same code.
type StageRunner struct {
	params    coalescent.Parameters
	probs     coalescent.SiteProbabilities
	trials    int
	estimator *sitepattern.Estimator
	builder   *sitepattern.IntervalBuilder
	observer  ProgressObserver
}

// NewStageRunner prepares the model, estimator and interval builder for one
// setting. Invalid parameters fail here, before any replicate runs.
func NewStageRunner(params coalescent.Parameters, trials int, confidence float64, observer ProgressObserver) (*StageRunner, error) {
	probs, err := sitepattern.Probabilities(params)
	if err != nil {
		return nil, err
	}
	estimator, err := sitepattern.NewEstimator(params.Theta)
	if err != nil {
		return nil, err
	}
	builder, err := sitepattern.NewIntervalBuilder(confidence)
	if err != nil {
		return nil, err
	}
	return &StageRunner{
		params:    params,
		probs:     probs,
		trials:    trials,
		estimator: estimator,
		builder:   builder,
		observer:  observer,
	}, nil
}

// Probabilities returns the true site-pattern probabilities of the setting
func (r *StageRunner) Probabilities() coalescent.SiteProbabilities {
	return r.probs
}

// RunReplicate samples one replicate and estimates both speciation times
// with their intervals. Undefined estimates and intervals are recorded on
// the affected parameter; only invalid inputs are returned as errors.
func (r *StageRunner) RunReplicate(replicate int, sampler *sitepattern.Sampler) (simulation.EstimateRecord, error) {
	r.notify(replicate, simulation.StageSampling)
	freqs, err := sampler.Sample(r.probs, r.trials)
	if err != nil {
		return simulation.EstimateRecord{}, err
	}

	r.notify(replicate, simulation.StageEstimating)
	tau0, err := r.estimate(freqs, coalescent.Tau0)
	if err != nil {
		return simulation.EstimateRecord{}, err
	}
	tau1, err := r.estimate(freqs, coalescent.Tau1)
	if err != nil {
		return simulation.EstimateRecord{}, err
	}

	r.notify(replicate, simulation.StageIntervalBuilding)
	if err := r.interval(&tau0, r.params.Tau0); err != nil {
		return simulation.EstimateRecord{}, err
	}
	if err := r.interval(&tau1, r.params.Tau1); err != nil {
		return simulation.EstimateRecord{}, err
	}

	return simulation.EstimateRecord{
		Replicate:   replicate,
		Frequencies: freqs,
		Tau0:        tau0,
		Tau1:        tau1,
	}, nil
}

// TestReplicate samples one replicate and computes the Wald statistic for
// H0: τ1 = 0, i.e. exp(-8τ1/3) = 1. Replicates whose τ1 estimate is
// undefined, or whose variance is zero, are recorded as excluded.
func (r *StageRunner) TestReplicate(replicate int, sampler *sitepattern.Sampler) (simulation.TestStatisticRecord, error) {
	r.notify(replicate, simulation.StageSampling)
	freqs, err := sampler.Sample(r.probs, r.trials)
	if err != nil {
		return simulation.TestStatisticRecord{}, err
	}

	r.notify(replicate, simulation.StageEstimating)
	rec := simulation.TestStatisticRecord{Replicate: replicate, Outcome: simulation.OutcomeOK}
	est, err := r.estimate(freqs, coalescent.Tau1)
	if err != nil {
		return rec, err
	}
	rec.Clamped = est.Clamped
	if !est.Usable() {
		rec.Outcome = est.Outcome
		rec.Reason = est.Reason
		return rec, nil
	}

	z, pValue, err := sitepattern.WaldStatistic(est.Statistic, 1, est.Variance)
	switch {
	case errors.Is(err, core.ErrDegenerateVariance):
		rec.Outcome = simulation.OutcomeDegenerateVariance
		rec.Reason = err.Error()
		return rec, nil
	case err != nil:
		return rec, err
	}
	rec.Z = z
	rec.PValue = pValue
	rec.Reject = math.Abs(z) > r.builder.CriticalValue()
	return rec, nil
}

func (r *StageRunner) estimate(freqs coalescent.SiteFrequencies, param coalescent.Parameter) (simulation.ParameterEstimate, error) {
	variance, err := sitepattern.DeltaVariance(freqs, r.trials, r.estimator.Theta(), param)
	if err != nil {
		return simulation.ParameterEstimate{}, err
	}
	est := simulation.ParameterEstimate{
		Statistic: r.estimator.Statistic(freqs, param),
		Variance:  variance.Value,
		Clamped:   variance.Clamped,
		Outcome:   simulation.OutcomeOK,
	}

	tau, err := r.estimator.Estimate(freqs, param)
	switch {
	case errors.Is(err, core.ErrUndefinedEstimate):
		est.Outcome = simulation.OutcomeUndefinedEstimate
		est.Reason = err.Error()
		return est, nil
	case err != nil:
		return est, err
	}
	est.Estimate = tau
	return est, nil
}

func (r *StageRunner) interval(est *simulation.ParameterEstimate, truth float64) error {
	if !est.Usable() {
		return nil
	}
	iv, err := r.builder.Build(est.Estimate, est.Variance)
	switch {
	case errors.Is(err, core.ErrUndefinedInterval):
		est.Outcome = simulation.OutcomeUndefinedInterval
		est.Reason = err.Error()
		return nil
	case err != nil:
		return err
	}
	est.Interval = iv
	est.Covered = iv.Contains(truth)
	return nil
}

func (r *StageRunner) notify(replicate int, stage simulation.Stage) {
	if r.observer != nil {
		r.observer(replicate, stage)
	}
}
