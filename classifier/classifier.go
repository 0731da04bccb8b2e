/*
Package classifier turns one employer's illness timeline into a sequence of
payment-relevant days.

PURPOSE:
  The DayClassifier is a per-employer automaton. It walks the merged
  illness timeline chronologically, accumulates qualifying days in its
  EmployerPeriodTracker, and emits employer-liability days until the
  statutory threshold is reached, payer-liability days after.

STATES:
  Initial             nothing observed yet (or tracker freshly reset)
  EmployerSick        inside an open employer period, sick
  EmployerFree        inside an open employer period, vacation/holiday
  EmployerGap         inside an open employer period, implicitly at work
  PayerSick           threshold reached, sick
  PayerFree           threshold reached, vacation/holiday
  PayerGap            threshold reached, implicitly at work
  Invalid             sink: every further day is foreclosed

KEY RULES:
  1. Vacation/holiday days neither advance nor reset the qualifying
     counter. Vacation immediately followed by resumed sickness is not a
     gap.
  2. A work day closing a run of at least the configured number of
     consecutive non-sick days resets the tracker: a fresh qualifying run
     is required.
  3. Illegal input (gaps, out-of-order dates, weekend-kind mismatches,
     grades outside (0, 100]) drives the automaton to Invalid. All
     subsequent days classify as ForeclosedDay and Classify returns a
     fatal error wrapping ErrTimelineForeclosed.

SEE ALSO:
  - tracker.go: the qualifying-day accounting
  - eligibility: cross-employer filtering of the produced days
*/
package classifier

import (
	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// STATES
// =============================================================================

type state int

const (
	stateInitial state = iota
	stateEmployerSick
	stateEmployerFree
	stateEmployerGap
	statePayerSick
	statePayerFree
	statePayerGap
	stateInvalid
)

// =============================================================================
// ECONOMIC BASIS - Stamped onto payer-liability days
// =============================================================================

// EconomicBasis is the per-employer money input the classifier stamps onto
// every payer-liability day. The allocation engine finalizes it later.
type EconomicBasis struct {
	DailyIncome  int64
	RefundClaim  int64
	CoverageBase int64
}

// =============================================================================
// DAY CLASSIFIER
// =============================================================================

// DayClassifier classifies one employer's illness timeline. It owns its
// EmployerPeriodTracker and mutates it as a byproduct of classification.
type DayClassifier struct {
	employer timeline.EmployerID
	pol      *policy.Snapshot
	tracker  *EmployerPeriodTracker
	basis    EconomicBasis

	state      state
	nonSickRun int
}

// New creates a classifier with a fresh tracker.
func New(employer timeline.EmployerID, pol *policy.Snapshot, basis EconomicBasis) *DayClassifier {
	return NewWithTracker(employer, pol, basis, NewEmployerPeriodTracker(pol.QualifyingDays))
}

// NewWithTracker creates a classifier around a pre-seeded tracker
// (continuation of a running illness).
func NewWithTracker(employer timeline.EmployerID, pol *policy.Snapshot, basis EconomicBasis, tracker *EmployerPeriodTracker) *DayClassifier {
	return &DayClassifier{
		employer: employer,
		pol:      pol,
		tracker:  tracker,
		basis:    basis,
	}
}

// Tracker exposes the owned tracker for downstream period-type
// classification.
func (c *DayClassifier) Tracker() *EmployerPeriodTracker { return c.tracker }

// Classify walks the timeline and produces one Day per input day. On an
// illegal sequence it classifies the remainder as ForeclosedDay and
// returns a fatal error alongside the (complete) day slice.
func (c *DayClassifier) Classify(tl timeline.EmployerTimeline) ([]timeline.Day, error) {
	days := make([]timeline.Day, 0, len(tl.Days))
	var foreclosure *ForeclosureError

	for i, in := range tl.Days {
		if c.state == stateInvalid {
			days = append(days, timeline.Day{Date: in.Date, Kind: timeline.ForeclosedDay})
			continue
		}

		if cause := c.validate(tl, i); cause != "" {
			c.state = stateInvalid
			foreclosure = &ForeclosureError{Employer: c.employer, Date: in.Date, Cause: cause}
			days = append(days, timeline.Day{Date: in.Date, Kind: timeline.ForeclosedDay})
			continue
		}

		days = append(days, c.next(in))
	}

	if foreclosure != nil {
		return days, foreclosure
	}
	return days, nil
}

// validate checks the input-contract preconditions for day i.
func (c *DayClassifier) validate(tl timeline.EmployerTimeline, i int) string {
	in := tl.Days[i]
	if i > 0 && !tl.Days[i-1].Date.AddDays(1).Equal(in.Date) {
		return "timeline not gap-free and chronological"
	}
	switch in.Kind {
	case timeline.IllnessSick:
		if in.Date.IsWeekend() {
			return "weekday sick kind on a weekend date"
		}
	case timeline.IllnessSickWeekend:
		if in.Date.IsWorkday() {
			return "weekend sick kind on a workday date"
		}
	case timeline.IllnessVacation, timeline.IllnessHoliday, timeline.IllnessWork:
		return ""
	default:
		return "unknown illness day kind"
	}
	if !in.Grade.IsPositive() || in.Grade.GreaterThan(decimal.NewFromInt(100)) {
		return "sickness grade outside (0, 100]"
	}
	return ""
}

// next performs one transition and returns the classified day.
func (c *DayClassifier) next(in timeline.IllnessDay) timeline.Day {
	switch in.Kind {
	case timeline.IllnessSick, timeline.IllnessSickWeekend:
		return c.sickDay(in)
	case timeline.IllnessVacation, timeline.IllnessHoliday:
		return c.freeDay(in)
	default: // timeline.IllnessWork
		return c.workDay(in)
	}
}

func (c *DayClassifier) sickDay(in timeline.IllnessDay) timeline.Day {
	c.nonSickRun = 0

	if !c.tracker.Complete() {
		c.tracker.CountDay(in.Date)
		c.state = stateEmployerSick
		kind := timeline.EmployerLiabilityDay
		if in.Kind == timeline.IllnessSickWeekend {
			kind = timeline.EmployerLiabilityWeekendDay
		}
		return timeline.Day{Date: in.Date, Kind: kind}
	}

	c.state = statePayerSick
	kind := timeline.PayerLiabilityDay
	if in.Kind == timeline.IllnessSickWeekend {
		kind = timeline.PayerLiabilityWeekendDay
	}
	return timeline.Day{
		Date: in.Date,
		Kind: kind,
		Economics: timeline.Economics{
			Grade:        in.Grade,
			DailyIncome:  c.basis.DailyIncome,
			RefundClaim:  c.basis.RefundClaim,
			CoverageBase: c.basis.CoverageBase,
		},
	}
}

func (c *DayClassifier) freeDay(in timeline.IllnessDay) timeline.Day {
	// Free days extend the non-sick run but never trigger a reset on
	// their own: vacation followed by resumed sickness is not a gap.
	c.nonSickRun++
	if c.tracker.Complete() {
		c.state = statePayerFree
	} else {
		c.state = stateEmployerFree
	}
	return timeline.Day{Date: in.Date, Kind: timeline.HolidayDay}
}

func (c *DayClassifier) workDay(in timeline.IllnessDay) timeline.Day {
	c.nonSickRun++
	if c.nonSickRun >= c.pol.EmployerResetGap {
		c.tracker.Reset()
		c.state = stateInitial
	} else if c.tracker.Complete() {
		c.state = statePayerGap
	} else {
		c.state = stateEmployerGap
	}
	return timeline.Day{Date: in.Date, Kind: timeline.ImplicitWorkDay}
}
