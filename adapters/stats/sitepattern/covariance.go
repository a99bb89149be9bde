package sitepattern

import (
	"fmt"

	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Covariance builds the multinomial sampling covariance of the observed
// frequencies: f_i(1-f_i)/n on the diagonal and -f_i f_j/n elsewhere.
// Rows and columns sum to zero because the frequencies sum to one, so the
// matrix is only meaningful through the estimator contrasts below.
func Covariance(f coalescent.SiteFrequencies, n int) (*mat.SymDense, error) {
	if n <= 0 {
		return nil, core.NewInvalidParameterError("trials", fmt.Sprintf("must be positive, got %d", n))
	}

	size := coalescent.NumPatterns
	cov := mat.NewSymDense(size, nil)
	scale := 1 / float64(n)
	for i := 0; i < size; i++ {
		cov.SetSym(i, i, f[i]*(1-f[i])*scale)
		for j := i + 1; j < size; j++ {
			cov.SetSym(i, j, -f[i]*f[j]*scale)
		}
	}
	return cov, nil
}

// Contrast returns the gradient of the exp(-8τ/3) estimator with respect to
// the frequencies, k = 4/3 + 16θ/9:
//
//	τ0: (k, 0, k/2, k/2, 0)
//	τ1: (k, k, 0, 0, 0)
func Contrast(theta float64, param coalescent.Parameter) *mat.VecDense {
	k := 4.0/3 + 16*theta/9
	if param == coalescent.Tau1 {
		return mat.NewVecDense(coalescent.NumPatterns, []float64{k, k, 0, 0, 0})
	}
	return mat.NewVecDense(coalescent.NumPatterns, []float64{k, 0, k / 2, k / 2, 0})
}

// QuadraticForm returns vᵗMv. Rounding can make the result slightly
// negative; it is then clamped to zero and clamped is true.
func QuadraticForm(m mat.Symmetric, v mat.Vector) (value float64, clamped bool) {
	value = mat.Inner(v, m, v)
	if value < 0 {
		return 0, true
	}
	return value, false
}

// Variance is the delta-method variance of the exp(-8τ/3) estimate for one
// parameter.
type Variance struct {
	Value   float64
	Clamped bool
}

// DeltaVariance propagates the multinomial covariance of f through the
// estimator contrast of the selected parameter.
func DeltaVariance(f coalescent.SiteFrequencies, n int, theta float64, param coalescent.Parameter) (Variance, error) {
	cov, err := Covariance(f, n)
	if err != nil {
		return Variance{}, err
	}
	value, clamped := QuadraticForm(cov, Contrast(theta, param))
	return Variance{Value: value, Clamped: clamped}, nil
}
