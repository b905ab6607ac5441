package kinetics

import (
	"errors"
	"fmt"
)

// Domain errors for path integration.
var (
	// ErrNoPartition indicates Initialize, Step or Solve before SetPartition.
	ErrNoPartition = errors.New("kinetics: no partition set")

	// ErrNotInitialized indicates Step before Initialize.
	ErrNotInitialized = errors.New("kinetics: path not initialized")

	// ErrStateMismatch indicates Step or Solve called with a state other
	// than the one bound at Initialize.
	ErrStateMismatch = errors.New("kinetics: state differs from the one bound at Initialize")

	// ErrEquilibriumFailed indicates the nested equilibrium resolve failed;
	// there is no reduced-step remedy at this level, so it is fatal.
	ErrEquilibriumFailed = errors.New("kinetics: equilibrium resolve failed")
)

// PathError wraps an error with the integration time at which it occurred.
type PathError struct {
	Time    float64
	Op      string
	Wrapped error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("kinetics: %s at t=%g: %v", e.Op, e.Time, e.Wrapped)
}

func (e *PathError) Unwrap() error {
	return e.Wrapped
}
