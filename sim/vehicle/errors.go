package vehicle

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfiguration is returned when a mass category or tire type
	// is outside the defined enumerations.
	ErrInvalidConfiguration = errors.New("invalid vehicle configuration")

	// ErrInvalidInput is returned when a control call is rejected. The
	// vehicle state is left untouched.
	ErrInvalidInput = errors.New("invalid control input")

	// ErrInvalidState is returned by SetState when a state breaks a vehicle
	// invariant. The current state is kept.
	ErrInvalidState = errors.New("invalid vehicle state")
)

// validateDt rejects non-positive and non-finite time deltas
func validateDt(dt float64) error {
	if !isFinite(dt) {
		return fmt.Errorf("%w: dt must be finite, got %v", ErrInvalidInput, dt)
	}
	if dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %v", ErrInvalidInput, dt)
	}
	return nil
}

// validateRange rejects non-finite values and values outside [lo, hi]
func validateRange(name string, value, lo, hi float64) error {
	if !isFinite(value) {
		return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidInput, name, value)
	}
	if value < lo || value > hi {
		return fmt.Errorf("%w: %s must be within [%g, %g], got %v", ErrInvalidInput, name, lo, hi, value)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
