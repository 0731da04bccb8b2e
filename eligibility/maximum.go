/*
maximum.go - Maximum-entitlement filter

PURPOSE:
  Folds chronologically over the combined, already-filtered day sequence
  and enforces the age-dependent entitlement ceilings. One calendar day
  consumes at most one entitlement day no matter how many employers are
  concurrently sick.

STATES:
  Initial      nothing consumed yet in the current cycle
  Sick         the previous evaluated date consumed a benefit day
  Opphold      a non-benefit gap is running
  Quarantined  the ceiling is reached; payer days are rejected
  TooOld       the person has reached the cutoff age; permanent

REJECTION REASONS:
  - Ordinary exhaustion / post-67 exhaustion, chosen by age at the day
    the ceiling is crossed
  - NewDeterminationRequired when a run crosses the ceiling again while a
    previous exhaustion's reset window has not yet expired (the lookback
    window let days fall out, but no 182-day gap legitimized a fresh
    ceiling)
  - Over70 unconditionally from the cutoff age

RESET:
  When the gap reaches the healthy-weeks threshold, the counter resets
  before the day is evaluated, so a fresh cycle begins with zero consumed.

SEE ALSO:
  - counter.go: the accumulator threaded through the fold
*/
package eligibility

import (
	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

type entitlementState int

const (
	entitlementInitial entitlementState = iota
	entitlementSick
	entitlementOpphold
	entitlementQuarantined
	entitlementTooOld
)

// MaximumEntitlementFilter enforces the rolling entitlement ceilings.
type MaximumEntitlementFilter struct {
	pol    *policy.Snapshot
	person Person

	counter          Counter
	state            entitlementState
	quarantineReason timeline.RejectionReason
	everQuarantined  bool // an exhaustion happened and no 182-day reset since
}

// NewMaximumEntitlementFilter creates the filter. A non-nil seed carries
// the counter state of an earlier computation of the same case.
func NewMaximumEntitlementFilter(pol *policy.Snapshot, person Person, seed *Counter) *MaximumEntitlementFilter {
	f := &MaximumEntitlementFilter{pol: pol, person: person}
	if seed != nil {
		f.counter = *seed
	}
	return f
}

func (f *MaximumEntitlementFilter) Name() string { return "maximum_entitlement" }

// Counter returns the accumulator after the fold.
func (f *MaximumEntitlementFilter) Counter() Counter { return f.counter }

// Apply folds over every date of the window.
func (f *MaximumEntitlementFilter) Apply(w *Window) error {
	return w.EachDate(func(d timeline.Date) error {
		f.evaluate(w, d)
		return nil
	})
}

func (f *MaximumEntitlementFilter) evaluate(w *Window, d timeline.Date) {
	age := f.person.AgeAt(d)

	// Candidates: payer-liability weekdays not rejected by earlier filters.
	var candidates []*timeline.Day
	for _, day := range w.DaysAt(d) {
		if day.Kind == timeline.PayerLiabilityDay {
			candidates = append(candidates, day)
		}
	}

	if age >= f.pol.CutoffAge {
		f.state = entitlementTooOld
	}
	if f.state == entitlementTooOld {
		for _, day := range candidates {
			day.Reject(timeline.ReasonOver70)
		}
		f.counter.gap()
		return
	}

	if len(candidates) == 0 {
		if f.state != entitlementInitial {
			if f.state == entitlementSick {
				f.state = entitlementOpphold
			}
			f.counter.gap()
		}
		return
	}

	// A full healthy-weeks gap legitimizes a fresh cycle before the day
	// is evaluated.
	if f.counter.GapDays >= f.pol.ResetGapDays {
		f.counter.reset()
		f.state = entitlementInitial
		f.everQuarantined = false
		f.quarantineReason = ""
	}

	f.counter.trimLookback(d, f.pol.LookbackYears)
	ceiling := f.pol.CeilingFor(age)

	if f.counter.Consumed() >= ceiling {
		reason := f.crossingReason(age)
		for _, day := range candidates {
			day.Reject(reason)
		}
		// Rejected days are non-benefit days: they advance the gap
		// toward the reset threshold.
		f.counter.gap()
		return
	}

	f.state = entitlementSick
	f.quarantineReason = ""
	f.counter.consume(d)
}

// crossingReason picks the rejection reason when the ceiling blocks a day.
func (f *MaximumEntitlementFilter) crossingReason(age int) timeline.RejectionReason {
	if f.state == entitlementQuarantined {
		// Continuing an established quarantine keeps its reason.
		return f.quarantineReason
	}
	reason := timeline.ReasonCeilingExhausted
	if age >= f.pol.ReducedCeilingAge {
		reason = timeline.ReasonCeilingExhaustedOver67
	}
	if f.everQuarantined {
		// Crossing again inside an unexpired reset window: the lookback
		// let days fall out, but no reset legitimized a fresh ceiling.
		reason = timeline.ReasonNewDeterminationRequired
	}
	f.state = entitlementQuarantined
	f.quarantineReason = reason
	f.everQuarantined = true
	return reason
}
