/*
tracker.go - Employer-period qualifying threshold accounting

PURPOSE:
  Accumulates qualifying sick days toward the statutory employer-liability
  threshold for one employer. The tracker is owned exclusively by that
  employer's DayClassifier, which mutates it as a byproduct of
  classification. Downstream period-type classification (first-time vs.
  continuation) reads the accumulated ranges.

INVARIANTS:
  - Ranges are ordered and non-overlapping; a counted day either extends
    the last range or starts a new one
  - The counter grows monotonically until the threshold is reached, then
    freezes; further counting is a no-op
  - Reset discards all ranges and requires a fresh qualifying run

SEE ALSO:
  - classifier.go: drives the tracker while classifying
*/
package classifier

import (
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// EMPLOYER PERIOD TRACKER
// =============================================================================

// EmployerPeriodTracker accumulates qualifying days toward the statutory
// employer-liability threshold.
type EmployerPeriodTracker struct {
	threshold    int
	ranges       []timeline.Period
	counted      int
	continuation bool
}

// NewEmployerPeriodTracker creates an empty tracker with the given
// qualifying-day threshold.
func NewEmployerPeriodTracker(threshold int) *EmployerPeriodTracker {
	return &EmployerPeriodTracker{threshold: threshold}
}

// NewEmployerPeriodTrackerWithHistory seeds the tracker with already-known
// employer-period boundaries from an earlier computation of the same
// running illness. The resulting tracker reports Continuation() == true.
func NewEmployerPeriodTrackerWithHistory(threshold int, history []timeline.Period) *EmployerPeriodTracker {
	t := NewEmployerPeriodTracker(threshold)
	for _, p := range history {
		for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
			t.CountDay(d)
		}
	}
	t.continuation = len(history) > 0
	return t
}

// CountDay records one qualifying sick day. Days arriving after the
// threshold is reached are ignored: the period is frozen and liability
// has shifted to the payer.
func (t *EmployerPeriodTracker) CountDay(d timeline.Date) {
	if t.Complete() {
		return
	}
	if n := len(t.ranges); n > 0 && t.ranges[n-1].End.AddDays(1).Equal(d) {
		t.ranges[n-1].End = d
	} else {
		t.ranges = append(t.ranges, timeline.NewPeriod(d, d))
	}
	t.counted++
}

// Complete reports whether the qualifying threshold has been reached.
func (t *EmployerPeriodTracker) Complete() bool { return t.counted >= t.threshold }

// Counted returns the qualifying days accumulated so far.
func (t *EmployerPeriodTracker) Counted() int { return t.counted }

// Continuation reports whether the tracker was seeded from an earlier
// computation.
func (t *EmployerPeriodTracker) Continuation() bool { return t.continuation }

// Ranges returns a copy of the accumulated date ranges.
func (t *EmployerPeriodTracker) Ranges() []timeline.Period {
	out := make([]timeline.Period, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// Reset discards all accumulated state. A fresh qualifying run is required
// before payer liability can begin again.
func (t *EmployerPeriodTracker) Reset() {
	t.ranges = nil
	t.counted = 0
	t.continuation = false
}
