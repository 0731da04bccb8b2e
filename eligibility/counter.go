/*
counter.go - Rolling entitlement accounting

PURPOSE:
  The Counter is the per-case rolling state of the maximum-entitlement
  filter: which dates have consumed a benefit day inside the lookback
  window, how long the current non-benefit gap is, and the last day that
  consumed. It is threaded through the chronological fold as an explicit
  accumulator and returned, never shared.

RESET SEMANTICS:
  - The lookback window silently drops counted days older than the
    configured number of years relative to the day under evaluation
  - The full reset (consumed back to zero, fresh cycle) happens only when
    the gap reaches the healthy-weeks threshold (182 days)

SEE ALSO:
  - maximum.go: the filter that mutates the counter
*/
package eligibility

import (
	"github.com/warp/sickpay-engine/timeline"
)

// Counter is the rolling entitlement state for one case.
type Counter struct {
	counted        []timeline.Date // consumed benefit days, chronological
	GapDays        int             // consecutive non-benefit days
	LastBenefitDay *timeline.Date
}

// Consumed returns the number of benefit days inside the lookback window.
func (c *Counter) Consumed() int { return len(c.counted) }

// Remaining returns the entitlement left under the given ceiling.
func (c *Counter) Remaining(ceiling int) int {
	if left := ceiling - len(c.counted); left > 0 {
		return left
	}
	return 0
}

// CountedDays returns a copy of the counted dates.
func (c *Counter) CountedDays() []timeline.Date {
	out := make([]timeline.Date, len(c.counted))
	copy(out, c.counted)
	return out
}

// Seed pre-loads counted days from an earlier computation of the same
// case (continuation).
func (c *Counter) Seed(days []timeline.Date) {
	c.counted = append(c.counted[:0], days...)
	if n := len(c.counted); n > 0 {
		last := c.counted[n-1]
		c.LastBenefitDay = &last
	}
}

// consume records one benefit day and closes any gap.
func (c *Counter) consume(d timeline.Date) {
	c.counted = append(c.counted, d)
	c.GapDays = 0
	c.LastBenefitDay = &d
}

// gap records one non-benefit day.
func (c *Counter) gap() { c.GapDays++ }

// trimLookback drops counted days that have fallen out of the rolling
// window relative to the day under evaluation.
func (c *Counter) trimLookback(at timeline.Date, lookbackYears int) {
	cutoff := at.AddYears(-lookbackYears)
	i := 0
	for i < len(c.counted) && c.counted[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		c.counted = c.counted[i:]
	}
}

// reset starts a fresh entitlement cycle.
func (c *Counter) reset() {
	c.counted = nil
	c.GapDays = 0
}
