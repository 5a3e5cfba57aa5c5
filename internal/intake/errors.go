package intake

import "errors"

// Error kinds surfaced by the stores and the turn processor.  The phase
// machine itself never returns partial state alongside an error; the
// processor can always discard an attempt and retry from a fresh load.
var (
	// ErrNotFound indicates the requested session or EMR does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an optimistic write lost against a concurrent
	// mutation of the same session.  The turn must be retried from a
	// freshly loaded snapshot.
	ErrConflict = errors.New("version conflict")

	// ErrInvariant indicates a defect: a state the machine should never
	// reach.  The turn fails closed and prior persisted state stays
	// authoritative.
	ErrInvariant = errors.New("invariant violation")
)
