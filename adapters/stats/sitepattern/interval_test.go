package sitepattern

import (
	"errors"
	"math"
	"testing"

	"gocoalesce/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriticalValue(t *testing.T) {
	z, err := CriticalValue(0.95)
	require.NoError(t, err)
	assert.Equal(t, 1.96, z)

	z, err = CriticalValue(0.90)
	require.NoError(t, err)
	assert.InDelta(t, 1.6448536, z, 1e-6)

	z, err = CriticalValue(0.99)
	require.NoError(t, err)
	assert.InDelta(t, 2.5758293, z, 1e-6)

	for _, bad := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err := CriticalValue(bad)
		assert.ErrorIs(t, err, core.ErrInvalidParameter, "confidence %g", bad)
	}
}

func TestIntervalBuilder_OrderIsInvertedByBackTransform(t *testing.T) {
	b, err := NewIntervalBuilder(0.95)
	require.NoError(t, err)

	tau := 0.002
	variance := 1e-6
	iv, err := b.Build(tau, variance)
	require.NoError(t, err)

	center := StatisticFromTau(tau)
	half := 1.96 * math.Sqrt(variance)
	assert.InDelta(t, TauFromStatistic(center+half), iv.Lower, 1e-15)
	assert.InDelta(t, TauFromStatistic(center-half), iv.Upper, 1e-15)
	assert.Less(t, iv.Lower, iv.Upper)
	assert.True(t, iv.Contains(tau))
}

func TestIntervalBuilder_LowerBelowUpperWheneverDefined(t *testing.T) {
	b, err := NewIntervalBuilder(0.95)
	require.NoError(t, err)

	for _, tau := range []float64{0, 1e-5, 0.001, 0.1, 1} {
		for _, variance := range []float64{1e-14, 1e-10, 1e-6, 1e-3, 0.01} {
			iv, err := b.Build(tau, variance)
			if err != nil {
				assert.True(t, errors.Is(err, core.ErrUndefinedInterval), "tau=%g var=%g: %v", tau, variance, err)
				continue
			}
			assert.Less(t, iv.Lower, iv.Upper, "tau=%g var=%g", tau, variance)
		}
	}
}

func TestIntervalBuilder_UndefinedWhenLowerEndpointNotPositive(t *testing.T) {
	b, err := NewIntervalBuilder(0.95)
	require.NoError(t, err)

	// exp(-8*1/3) ~ 0.0695; a standard deviation of 0.1 pushes the lower
	// exp-scale endpoint below zero.
	_, err = b.Build(1, 0.01)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUndefinedInterval)

	_, err = b.Build(math.NaN(), 0.01)
	assert.ErrorIs(t, err, core.ErrUndefinedEstimate)

	_, err = b.Build(0.1, -1)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestIntervalBuilder_ZeroVarianceCollapses(t *testing.T) {
	b, err := NewIntervalBuilder(0.95)
	require.NoError(t, err)

	iv, err := b.Build(0.003, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.003, iv.Lower, 1e-15)
	assert.InDelta(t, 0.003, iv.Upper, 1e-15)
	assert.False(t, iv.Contains(0.003))
}

func TestWaldStatistic(t *testing.T) {
	z, p, err := WaldStatistic(1.0196, 1, 1e-4)
	require.NoError(t, err)
	assert.InDelta(t, 1.96, z, 1e-9)
	assert.InDelta(t, 0.05, p, 1e-3)

	z, _, err = WaldStatistic(0.99, 1, 1e-4)
	require.NoError(t, err)
	assert.InDelta(t, -1, z, 1e-9)

	_, _, err = WaldStatistic(0.9, 1, 0)
	assert.ErrorIs(t, err, core.ErrDegenerateVariance)
}
