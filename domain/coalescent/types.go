package coalescent

import (
	"fmt"
	"math"

	"gocoalesce/domain/core"

	"gonum.org/v1/gonum/floats"
)

// NumPatterns is the number of aggregated site-pattern categories for a
// 3-taxon tree.
const NumPatterns = 5

// SumTolerance bounds how far a probability or frequency vector may drift
// from 1.
const SumTolerance = 1e-9

// Parameter selects one of the two speciation times.
type Parameter string

const (
	Tau0 Parameter = "tau0" // deeper internal node
	Tau1 Parameter = "tau1" // shallower internal node
)

// Parameters are the species-tree model parameters in coalescent units.
// INVARIANTS:
// - Tau0, Tau1 >= 0 (Tau1 = 0 is the null of the shallow-split test)
// - Theta > 0
// - Tau0 >= Tau1 for an evolutionarily meaningful tree (checked by Ordered)
type Parameters struct {
	Tau0  float64 `json:"tau0"`
	Tau1  float64 `json:"tau1"`
	Theta float64 `json:"theta"`
}

// Validate rejects parameter triples the model cannot be evaluated on.
func (p Parameters) Validate() error {
	if !isFinite(p.Tau0) || p.Tau0 < 0 {
		return core.NewInvalidParameterError("tau0", fmt.Sprintf("must be a non-negative real, got %g", p.Tau0))
	}
	if !isFinite(p.Tau1) || p.Tau1 < 0 {
		return core.NewInvalidParameterError("tau1", fmt.Sprintf("must be a non-negative real, got %g", p.Tau1))
	}
	if !isFinite(p.Theta) || p.Theta <= 0 {
		return core.NewInvalidParameterError("theta", fmt.Sprintf("must be a positive real, got %g", p.Theta))
	}
	return nil
}

// Ordered reports whether the deeper split is not more recent than the
// shallower one.
func (p Parameters) Ordered() bool {
	return p.Tau0 >= p.Tau1
}

// Value returns the true value of the selected speciation time.
func (p Parameters) Value(param Parameter) float64 {
	if param == Tau1 {
		return p.Tau1
	}
	return p.Tau0
}

func (p Parameters) String() string {
	return fmt.Sprintf("tau0=%g tau1=%g theta=%g", p.Tau0, p.Tau1, p.Theta)
}

// SiteProbabilities are the true site-pattern probabilities p0..p4.
// p2 and p3 are equal by model symmetry.
type SiteProbabilities [NumPatterns]float64

// Validate checks that the vector is a probability distribution.
func (p SiteProbabilities) Validate() error {
	for i, v := range p {
		if !isFinite(v) || v < 0 {
			return core.NewInvalidParameterError(fmt.Sprintf("p%d", i), fmt.Sprintf("must be a non-negative probability, got %g", v))
		}
	}
	if sum := floats.Sum(p[:]); math.Abs(sum-1) > SumTolerance {
		return core.NewInvalidParameterError("site probabilities", fmt.Sprintf("must sum to 1, got %.12f", sum))
	}
	return nil
}

// SiteFrequencies are the observed pattern counts of one multinomial draw
// divided by the number of sites.
type SiteFrequencies [NumPatterns]float64

// Sum returns the total mass, 1 up to rounding for a valid draw.
func (f SiteFrequencies) Sum() float64 {
	return floats.Sum(f[:])
}

// FromCounts normalizes multinomial counts into frequencies.
func FromCounts(counts [NumPatterns]int, n int) SiteFrequencies {
	var f SiteFrequencies
	for i, c := range counts {
		f[i] = float64(c) / float64(n)
	}
	return f
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
