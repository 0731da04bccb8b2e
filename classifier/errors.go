package classifier

import (
	"errors"
	"fmt"

	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTimelineForeclosed is returned when the automaton reached its
	// Invalid sink state. This indicates a precondition violation by the
	// caller, not a recoverable business condition: the case must be
	// aborted, never retried automatically.
	ErrTimelineForeclosed = errors.New("illness timeline foreclosed")
)

// ForeclosureError carries the first offending day and why it was illegal.
type ForeclosureError struct {
	Employer timeline.EmployerID
	Date     timeline.Date
	Cause    string
}

func (e *ForeclosureError) Error() string {
	return fmt.Sprintf("timeline foreclosed for employer %s at %s: %s",
		e.Employer, e.Date, e.Cause)
}

func (e *ForeclosureError) Unwrap() error { return ErrTimelineForeclosed }
