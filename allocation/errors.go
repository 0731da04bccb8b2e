package allocation

import (
	"errors"
	"fmt"

	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnbalancedAllocation is returned when the distributed shares do
	// not sum exactly to the capped total. This is a computation bug, not
	// a business condition: the case must abort rather than pay out an
	// incorrect amount.
	ErrUnbalancedAllocation = errors.New("allocation shares do not sum to capped total")

	// ErrNegativeShare is returned when any computed share is negative.
	ErrNegativeShare = errors.New("negative allocation share")
)

// InvariantError carries the day and amounts of a violated allocation
// invariant.
type InvariantError struct {
	Date     timeline.Date
	Expected int64
	Actual   int64
	Cause    error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("allocation invariant violated at %s: expected %d, got %d: %v",
		e.Date, e.Expected, e.Actual, e.Cause)
}

func (e *InvariantError) Unwrap() error { return e.Cause }
