package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// ErrInvalidParameter is fatal to the call that raised it.
	ErrInvalidParameter = errors.New("invalid parameter")

	// Per-replicate outcomes. These never abort a run; the replicate is
	// recorded as excluded for the affected parameter.
	ErrUndefinedEstimate = errors.New("undefined estimate: log argument is not positive")
	ErrUndefinedInterval = errors.New("undefined interval: exp-scale endpoint is not positive")

	// ErrDegenerateVariance marks a delta-method variance that came out
	// negative (clamped to zero) or is zero where a division needs it.
	ErrDegenerateVariance = errors.New("degenerate variance")
)

// Error constructors with context
func NewInvalidParameterError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidParameter, field, reason)
}

func NewUndefinedEstimateError(parameter string, argument float64) error {
	return fmt.Errorf("%w (%s, argument %g)", ErrUndefinedEstimate, parameter, argument)
}

func NewUndefinedIntervalError(lower, upper float64) error {
	return fmt.Errorf("%w (exp-scale [%g, %g])", ErrUndefinedInterval, lower, upper)
}

// Error checking helpers
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// IsReplicateError reports whether err only invalidates a single replicate.
func IsReplicateError(err error) bool {
	return errors.Is(err, ErrUndefinedEstimate) ||
		errors.Is(err, ErrUndefinedInterval) ||
		errors.Is(err, ErrDegenerateVariance)
}
