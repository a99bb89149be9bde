package sitepattern

import (
	"fmt"
	"math"

	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultCriticalValue is the two-sided 95% normal critical value.
const DefaultCriticalValue = 1.96

// CriticalValue returns the two-sided normal critical value for a
// confidence level. 0.95 maps to exactly 1.96.
func CriticalValue(confidence float64) (float64, error) {
	if math.IsNaN(confidence) || confidence <= 0 || confidence >= 1 {
		return 0, core.NewInvalidParameterError("confidence", fmt.Sprintf("must lie in (0, 1), got %g", confidence))
	}
	if confidence == simulation.DefaultConfidence {
		return DefaultCriticalValue, nil
	}
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2), nil
}

// IntervalBuilder constructs Wald intervals on the exp(-8τ/3) scale and
// maps them back to τ.
type IntervalBuilder struct {
	z float64
}

// NewIntervalBuilder creates a builder for the given confidence level
func NewIntervalBuilder(confidence float64) (*IntervalBuilder, error) {
	z, err := CriticalValue(confidence)
	if err != nil {
		return nil, err
	}
	return &IntervalBuilder{z: z}, nil
}

// CriticalValue returns the builder's z
func (b *IntervalBuilder) CriticalValue() float64 {
	return b.z
}

// Build returns the interval for a τ estimate whose exp(-8τ/3) statistic
// has the given variance. The back-transform is decreasing, so the τ lower
// bound comes from the upper exp-scale endpoint and the τ upper bound from
// the lower one. A non-positive exp-scale endpoint yields
// core.ErrUndefinedInterval.
func (b *IntervalBuilder) Build(tauEstimate, variance float64) (simulation.Interval, error) {
	if math.IsNaN(tauEstimate) || math.IsInf(tauEstimate, 0) {
		return simulation.Interval{}, core.NewUndefinedEstimateError("tau", tauEstimate)
	}
	if math.IsNaN(variance) || variance < 0 {
		return simulation.Interval{}, core.NewInvalidParameterError("variance", fmt.Sprintf("must be non-negative, got %g", variance))
	}

	center := StatisticFromTau(tauEstimate)
	half := b.z * math.Sqrt(variance)
	expLower, expUpper := center-half, center+half
	if expLower <= 0 || expUpper <= 0 {
		return simulation.Interval{}, core.NewUndefinedIntervalError(expLower, expUpper)
	}

	return simulation.Interval{
		Lower: TauFromStatistic(expUpper),
		Upper: TauFromStatistic(expLower),
	}, nil
}

// WaldStatistic returns (statistic - null) / sqrt(variance) and its
// two-sided normal p-value. A zero variance leaves the statistic undefined
// and is reported as core.ErrDegenerateVariance.
func WaldStatistic(statistic, null, variance float64) (z float64, pValue float64, err error) {
	if math.IsNaN(variance) || variance < 0 {
		return 0, 0, core.NewInvalidParameterError("variance", fmt.Sprintf("must be non-negative, got %g", variance))
	}
	if variance == 0 {
		return 0, 0, fmt.Errorf("%w: zero variance in Wald statistic", core.ErrDegenerateVariance)
	}
	z = (statistic - null) / math.Sqrt(variance)
	pValue = 2 * distuv.UnitNormal.Survival(math.Abs(z))
	return z, pValue, nil
}
