package disbursement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when an operation is not legal in
	// the order's current lifecycle state. This is a caller error.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrUnknownLedger is returned when a confirmation references a
	// fagsystem id that belongs to neither sub-ledger.
	ErrUnknownLedger = errors.New("confirmation references unknown ledger")

	// ErrRevisionNotFound is returned by order stores when no revision
	// exists for a correlation id.
	ErrRevisionNotFound = errors.New("order revision not found")
)

// TransitionError carries the operation and the state that refused it.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
