package eqsys

import (
	"errors"
	"fmt"
)

// Configuration and scheduling errors.
var (
	// ErrUnknownSystem indicates a physics block tag with no registered factory.
	ErrUnknownSystem = errors.New("eqsys: unknown equation system type")

	// ErrMissingSolverBlock indicates a dof with no solver block mapping.
	ErrMissingSolverBlock = errors.New("issue with solver name mapping; none supplied")

	// ErrUndefinedNorm indicates the mean norm was requested while the
	// summed norm increment is zero.
	ErrUndefinedNorm = errors.New("eqsys: mean system norm undefined (zero norm increment)")

	// ErrFrozen indicates a side task was added after the iteration loop began.
	ErrFrozen = errors.New("eqsys: side-task lists are fixed once iteration starts")

	// ErrUnsupported indicates a system that cannot run under the realm settings.
	ErrUnsupported = errors.New("eqsys: unsupported for this realm")
)

// ConfigError wraps a fatal configuration or topology error with the
// operation and target that raised it.
type ConfigError struct {
	Op     string
	Target string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Target, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(op, target string, err error) error {
	return &ConfigError{Op: op, Target: target, Err: err}
}
