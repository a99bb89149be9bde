// Package sitepattern implements the closed-form site-pattern model of a
// 3-taxon species tree under the multispecies coalescent, together with the
// moment estimators, delta-method variances and Wald intervals built on it.
package sitepattern

import (
	"math"

	"gocoalesce/domain/coalescent"
)

// Transform holds the three quantities every site-pattern probability is
// built from:
//
//	a0 = exp(-8τ0/3) / (3+4θ)
//	a1 = exp(-8τ1/3) / (3+4θ)
//	b  = exp(-4τ1/3) / (3+2θ)
//
// The estimators invert the same relations, so both directions go through
// StatisticFromTau, TauFromStatistic and ScaleFactor.
type Transform struct {
	A0 float64
	A1 float64
	B  float64
}

// ScaleFactor returns 3+4θ, the denominator of a0 and a1.
func ScaleFactor(theta float64) float64 {
	return 3 + 4*theta
}

// StatisticFromTau maps a speciation time to exp(-8τ/3).
func StatisticFromTau(tau float64) float64 {
	return math.Exp(-8 * tau / 3)
}

// TauFromStatistic maps exp(-8τ/3) back to τ. The caller must ensure x > 0.
func TauFromStatistic(x float64) float64 {
	return -3 * math.Log(x) / 8
}

// NewTransform evaluates (a0, a1, b) for a parameter triple.
func NewTransform(p coalescent.Parameters) Transform {
	scale := ScaleFactor(p.Theta)
	return Transform{
		A0: StatisticFromTau(p.Tau0) / scale,
		A1: StatisticFromTau(p.Tau1) / scale,
		B:  math.Exp(-4*p.Tau1/3) / (3 + 2*p.Theta),
	}
}

// Probabilities returns the five site-pattern probabilities.
func (t Transform) Probabilities() coalescent.SiteProbabilities {
	a0b := t.A0 * t.B

	var p coalescent.SiteProbabilities
	p[0] = (1 + 18*t.A0 + 54*a0b + 9*t.A1) / 16
	p[1] = 3 * (1 - 6*t.A0 - 18*a0b + 9*t.A1) / 16
	p[2] = 3 * (1 + 6*t.A0 - 18*a0b - 3*t.A1) / 16
	p[3] = p[2]
	p[4] = 6 * (1 - 6*t.A0 + 18*a0b - 3*t.A1) / 16
	return p
}

// Probabilities maps model parameters to the true site-pattern probability
// vector. Entries lie in [0,1] and sum to 1 whenever Tau0 >= Tau1 >= 0 and
// Theta > 0; outside that domain the vector may not be a distribution.
func Probabilities(p coalescent.Parameters) (coalescent.SiteProbabilities, error) {
	if err := p.Validate(); err != nil {
		return coalescent.SiteProbabilities{}, err
	}
	return NewTransform(p).Probabilities(), nil
}
