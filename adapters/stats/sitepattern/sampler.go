package sitepattern

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws multinomial site-pattern counts from an explicit random
// stream. Each draw advances the stream; nothing is reset between calls.
type Sampler struct {
	src rand.Source
}

// NewSampler creates a sampler over src
func NewSampler(src rand.Source) *Sampler {
	return &Sampler{src: src}
}

// Counts draws one multinomial sample of n sites. The draw is a chain of
// conditional binomials: category i receives Binomial(remaining, p_i / mass
// left) and the last category takes whatever is left.
func (s *Sampler) Counts(p coalescent.SiteProbabilities, n int) ([coalescent.NumPatterns]int, error) {
	var counts [coalescent.NumPatterns]int
	if n <= 0 {
		return counts, core.NewInvalidParameterError("trials", fmt.Sprintf("must be positive, got %d", n))
	}
	if err := p.Validate(); err != nil {
		return counts, err
	}

	remaining := n
	mass := 1.0
	for i := 0; i < coalescent.NumPatterns-1 && remaining > 0; i++ {
		prob := 0.0
		if mass > 0 {
			prob = math.Min(math.Max(p[i]/mass, 0), 1)
		}
		counts[i] = s.binomial(remaining, prob)
		remaining -= counts[i]
		mass -= p[i]
	}
	counts[coalescent.NumPatterns-1] = remaining

	return counts, nil
}

// Sample draws one multinomial sample and returns it as frequencies.
func (s *Sampler) Sample(p coalescent.SiteProbabilities, n int) (coalescent.SiteFrequencies, error) {
	counts, err := s.Counts(p, n)
	if err != nil {
		return coalescent.SiteFrequencies{}, err
	}
	return coalescent.FromCounts(counts, n), nil
}

func (s *Sampler) binomial(n int, p float64) int {
	switch {
	case p <= 0:
		return 0
	case p >= 1:
		return n
	}
	draw := distuv.Binomial{N: float64(n), P: p, Src: s.src}.Rand()
	k := int(math.Round(draw))
	if k > n {
		k = n
	}
	return k
}
