package sitepattern

import (
	"fmt"
	"math"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
)

// Estimator inverts the site-pattern model for the two speciation times
// given a known θ:
//
//	exp(-8τ0/3) = (3+4θ)(4f0+2f2+2f3-1)/9
//	exp(-8τ1/3) = (3+4θ)(4f0+4f1-1)/9
type Estimator struct {
	theta float64
}

// NewEstimator creates an estimator for a known θ
func NewEstimator(theta float64) (*Estimator, error) {
	if math.IsNaN(theta) || math.IsInf(theta, 0) || theta <= 0 {
		return nil, core.NewInvalidParameterError("theta", fmt.Sprintf("must be a positive real, got %g", theta))
	}
	return &Estimator{theta: theta}, nil
}

// Theta returns the θ the estimator was built for
func (e *Estimator) Theta() float64 {
	return e.theta
}

// Statistic returns the moment estimate of exp(-8τ/3) for the selected
// parameter. It is defined for every frequency vector, including those for
// which the τ estimate is not.
func (e *Estimator) Statistic(f coalescent.SiteFrequencies, param coalescent.Parameter) float64 {
	var contrast float64
	if param == coalescent.Tau1 {
		contrast = 4*f[0] + 4*f[1] - 1
	} else {
		contrast = 4*f[0] + 2*f[2] + 2*f[3] - 1
	}
	return ScaleFactor(e.theta) * contrast / 9
}

// Estimate returns the moment estimate of the selected speciation time.
// Sampling noise can push the log argument to zero or below; that case is
// reported as core.ErrUndefinedEstimate rather than a non-finite value.
func (e *Estimator) Estimate(f coalescent.SiteFrequencies, param coalescent.Parameter) (float64, error) {
	x := e.Statistic(f, param)
	if !(x > 0) || math.IsInf(x, 0) {
		return 0, core.NewUndefinedEstimateError(string(param), x)
	}
	return TauFromStatistic(x), nil
}

// EstimateBoth returns (τ0, τ1). The first undefined estimate is returned as
// the error; use Estimate to recover the other one independently.
func (e *Estimator) EstimateBoth(f coalescent.SiteFrequencies) (float64, float64, error) {
	tau0, err := e.Estimate(f, coalescent.Tau0)
	if err != nil {
		return 0, 0, err
	}
	tau1, err := e.Estimate(f, coalescent.Tau1)
	if err != nil {
		return 0, 0, err
	}
	return tau0, tau1, nil
}
