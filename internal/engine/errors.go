package engine

import (
	"errors"
	"fmt"
)

// Failure taxonomy of a step attempt. Everything here is retried locally
// (next chain entry, then a smaller step) before anything reaches a caller.
var (
	// ErrChainExhausted reports that every solver in the fallback chain
	// failed to converge for the attempted step.
	ErrChainExhausted = errors.New("engine: solver chain exhausted")

	// ErrPreconditionerBuild reports that the configured preconditioner
	// could not be built for the assembled matrix.
	ErrPreconditionerBuild = errors.New("engine: preconditioner build failed")

	// ErrStreamClosed reports use of a stream after Close or after a
	// terminal failure.
	ErrStreamClosed = errors.New("engine: stream closed")

	// ErrDone reports normal completion: the simulated time reached the
	// configured horizon.
	ErrDone = errors.New("engine: simulation horizon reached")
)

// StabilityError reports a step that solved fine but produced an unstable
// or unphysical result.
type StabilityError struct {
	Kind  string // "cfl", "saturation-bounds", "saturation-sum", "pressure"
	Value float64
	Limit float64
	Cell  int // offending cell index, -1 when not cell-specific
}

func (e *StabilityError) Error() string {
	if e.Cell >= 0 {
		return fmt.Sprintf("engine: %s violation at cell %d: %g (limit %g)", e.Kind, e.Cell, e.Value, e.Limit)
	}
	return fmt.Sprintf("engine: %s violation: %g (limit %g)", e.Kind, e.Value, e.Limit)
}
