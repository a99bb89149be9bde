package sitepattern

import (
	"errors"
	"testing"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator_InvertsModelWithoutNoise(t *testing.T) {
	for _, params := range validGrid() {
		p, err := Probabilities(params)
		require.NoError(t, err)

		est, err := NewEstimator(params.Theta)
		require.NoError(t, err)

		tau0, tau1, err := est.EstimateBoth(coalescent.SiteFrequencies(p))
		require.NoError(t, err, params.String())
		assert.InDelta(t, params.Tau0, tau0, 1e-6, "tau0 for %s", params)
		assert.InDelta(t, params.Tau1, tau1, 1e-6, "tau1 for %s", params)
	}
}

func TestEstimator_StatisticMatchesTransform(t *testing.T) {
	params := coalescent.Parameters{Tau0: 0.002, Tau1: 0.001, Theta: 0.001}
	p, err := Probabilities(params)
	require.NoError(t, err)

	est, err := NewEstimator(params.Theta)
	require.NoError(t, err)

	f := coalescent.SiteFrequencies(p)
	assert.InDelta(t, StatisticFromTau(params.Tau0), est.Statistic(f, coalescent.Tau0), 1e-12)
	assert.InDelta(t, StatisticFromTau(params.Tau1), est.Statistic(f, coalescent.Tau1), 1e-12)
}

func TestEstimator_UndefinedEstimateIsExplicit(t *testing.T) {
	est, err := NewEstimator(0.01)
	require.NoError(t, err)

	tests := []struct {
		name  string
		freqs coalescent.SiteFrequencies
		param coalescent.Parameter
	}{
		{"all mass on last pattern tau0", coalescent.SiteFrequencies{0, 0, 0, 0, 1}, coalescent.Tau0},
		{"all mass on last pattern tau1", coalescent.SiteFrequencies{0, 0, 0, 0, 1}, coalescent.Tau1},
		{"contrast exactly zero", coalescent.SiteFrequencies{0.25, 0, 0, 0, 0.75}, coalescent.Tau0},
		{"tau1 contrast negative", coalescent.SiteFrequencies{0.1, 0.1, 0.4, 0.4, 0}, coalescent.Tau1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := est.Estimate(tt.freqs, tt.param)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrUndefinedEstimate), "got %v", err)

			// The exp-scale statistic stays finite and available.
			assert.LessOrEqual(t, est.Statistic(tt.freqs, tt.param), 0.0)
		})
	}

	// tau0 may still be defined when tau1 is not.
	f := coalescent.SiteFrequencies{0.1, 0.1, 0.4, 0.4, 0}
	_, err = est.Estimate(f, coalescent.Tau0)
	assert.NoError(t, err)
	_, _, err = est.EstimateBoth(f)
	assert.ErrorIs(t, err, core.ErrUndefinedEstimate)
}

func TestNewEstimator_RejectsBadTheta(t *testing.T) {
	for _, theta := range []float64{0, -1} {
		_, err := NewEstimator(theta)
		assert.ErrorIs(t, err, core.ErrInvalidParameter)
	}
}
