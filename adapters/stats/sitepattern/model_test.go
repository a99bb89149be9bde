package sitepattern

import (
	"math"
	"testing"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validGrid spans the model's valid domain tau0 >= tau1 >= 0, theta > 0.
func validGrid() []coalescent.Parameters {
	var grid []coalescent.Parameters
	for _, theta := range []float64{1e-4, 0.001, 0.005, 0.1, 1, 10} {
		for _, tau0 := range []float64{0, 1e-4, 0.001, 0.002, 0.05, 0.5, 3} {
			for _, frac := range []float64{0, 0.25, 0.5, 1} {
				grid = append(grid, coalescent.Parameters{Tau0: tau0, Tau1: tau0 * frac, Theta: theta})
			}
		}
	}
	return grid
}

func TestProbabilities_IsDistributionOnValidDomain(t *testing.T) {
	for _, params := range validGrid() {
		p, err := Probabilities(params)
		require.NoError(t, err, params.String())

		sum := 0.0
		for i, v := range p {
			if v < 0 || v > 1 {
				t.Errorf("%s: p%d = %g outside [0,1]", params, i, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("%s: probabilities sum to %.15f", params, sum)
		}
		if p[2] != p[3] {
			t.Errorf("%s: p2 (%g) != p3 (%g)", params, p[2], p[3])
		}
		require.NoError(t, p.Validate(), params.String())
	}
}

func TestProbabilities_FirstPatternDominatesShallowTree(t *testing.T) {
	p, err := Probabilities(coalescent.Parameters{Tau0: 0.002, Tau1: 0.001, Theta: 0.001})
	require.NoError(t, err)

	for i := 1; i < coalescent.NumPatterns; i++ {
		assert.Greater(t, p[0], p[i], "p0 should be strictly largest, p%d=%g", i, p[i])
	}
	t.Logf("probabilities: %v", p)
}

func TestProbabilities_RejectsInvalidParameters(t *testing.T) {
	tests := []coalescent.Parameters{
		{Tau0: -0.1, Tau1: 0, Theta: 0.01},
		{Tau0: 0.1, Tau1: -0.01, Theta: 0.01},
		{Tau0: 0.1, Tau1: 0.01, Theta: 0},
		{Tau0: math.NaN(), Tau1: 0.01, Theta: 0.01},
		{Tau0: 0.1, Tau1: 0.01, Theta: math.Inf(1)},
	}
	for _, params := range tests {
		_, err := Probabilities(params)
		require.Error(t, err, params.String())
		assert.True(t, core.IsInvalidParameter(err))
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	for _, tau := range []float64{0, 1e-5, 0.001, 0.3, 2} {
		assert.InDelta(t, tau, TauFromStatistic(StatisticFromTau(tau)), 1e-12)
	}

	params := coalescent.Parameters{Tau0: 0.01, Tau1: 0.004, Theta: 0.02}
	tr := NewTransform(params)
	assert.InDelta(t, StatisticFromTau(params.Tau0), tr.A0*ScaleFactor(params.Theta), 1e-15)
	assert.InDelta(t, StatisticFromTau(params.Tau1), tr.A1*ScaleFactor(params.Theta), 1e-15)
	assert.InDelta(t, math.Exp(-4*params.Tau1/3)/(3+2*params.Theta), tr.B, 1e-15)
}
