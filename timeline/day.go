/*
Package timeline provides the day-by-day data model for sick-pay computation.

PURPOSE:
  Every downstream stage (classification, eligibility filtering, money
  allocation, disbursement) operates on sequences of Day values. This package
  defines the Day tagged union, the illness input kinds it is derived from,
  and the per-day economic payload that the allocation engine finalizes.

KEY CONCEPTS IN THIS FILE (day.go):
  - IllnessKind: The validated input classification of a calendar day
    (sick, sick on a weekend, vacation/leave, holiday, implicitly at work)
  - Day: The payment-relevant classification produced by the classifier
    and refined by the eligibility filters
  - RejectionReason: Why a day was denied benefit (ordered, append-only set)
  - Economics: Graded percentage, incomes and the finalized allocation

DESIGN PRINCIPLES:
  1. Closed union: Day.Kind is exhaustive; consumers switch over it
  2. One-way refinement: a Day only ever moves TOWARD RejectedDay, and a
     RejectedDay's reason set only grows
  3. Precision: grades and ratios are decimal.Decimal; settled amounts are
     whole kroner (int64)

SEE ALSO:
  - date.go: Date and Period primitives
  - classifier: produces Day sequences from illness timelines
  - eligibility: appends rejection reasons
  - allocation: fills in Economics
*/
package timeline

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EmployerID identifies one employer within a case.
type EmployerID string

// =============================================================================
// ILLNESS INPUT - What the case workflow hands us
// =============================================================================

// IllnessKind classifies an input calendar day, as merged and validated by
// the case-workflow collaborator from notices, applications and employer
// notifications. The classifier turns these into payment-relevant Days.
type IllnessKind int

const (
	IllnessUnknown IllnessKind = iota
	IllnessSick
	IllnessSickWeekend
	IllnessVacation // reported vacation or leave during the illness
	IllnessHoliday
	IllnessWork // implicit work day: no illness reported
)

func (k IllnessKind) String() string {
	switch k {
	case IllnessSick:
		return "sick"
	case IllnessSickWeekend:
		return "sick_weekend"
	case IllnessVacation:
		return "vacation"
	case IllnessHoliday:
		return "holiday"
	case IllnessWork:
		return "work"
	default:
		return "unknown"
	}
}

// IllnessDay is one input day for one employer.
type IllnessDay struct {
	Date  Date
	Kind  IllnessKind
	Grade decimal.Decimal // percent 0-100, meaningful on sick days only
}

// EmployerTimeline is the ordered, gap-free illness timeline for one
// employer. The input contract guarantees ordering and gap-freeness;
// the classifier verifies both and forecloses on violation.
type EmployerTimeline struct {
	Employer EmployerID
	Days     []IllnessDay
}

// Period returns the date range covered by the timeline.
func (et EmployerTimeline) Period() Period {
	if len(et.Days) == 0 {
		return Period{}
	}
	return Period{Start: et.Days[0].Date, End: et.Days[len(et.Days)-1].Date}
}

// =============================================================================
// DAY - Payment-relevant classification (tagged union)
// =============================================================================

type DayKind int

const (
	// EmployerLiabilityDay: inside the employer period, employer pays.
	EmployerLiabilityDay DayKind = iota
	// EmployerLiabilityWeekendDay: weekend day counting toward the
	// employer-period qualifying threshold.
	EmployerLiabilityWeekendDay
	// PayerLiabilityDay: the external payer is liable, subject to
	// entitlement ceilings and the income cap.
	PayerLiabilityDay
	// PayerLiabilityWeekendDay: sick weekend after the employer period.
	// Carries economics but allocates zero and consumes no entitlement.
	PayerLiabilityWeekendDay
	// HolidayDay: vacation or public holiday inside the illness.
	HolidayDay
	// ImplicitWorkDay: no illness reported; assumed at work.
	ImplicitWorkDay
	// RejectedDay: denied benefit by one or more eligibility filters.
	RejectedDay
	// ForeclosedDay: produced after the classifier hit an illegal
	// sequence; the whole case must be aborted.
	ForeclosedDay
)

func (k DayKind) String() string {
	switch k {
	case EmployerLiabilityDay:
		return "employer_day"
	case EmployerLiabilityWeekendDay:
		return "employer_weekend_day"
	case PayerLiabilityDay:
		return "payer_day"
	case PayerLiabilityWeekendDay:
		return "payer_weekend_day"
	case HolidayDay:
		return "holiday_day"
	case ImplicitWorkDay:
		return "work_day"
	case RejectedDay:
		return "rejected_day"
	case ForeclosedDay:
		return "foreclosed_day"
	default:
		return fmt.Sprintf("day_kind(%d)", int(k))
	}
}

// =============================================================================
// REJECTION REASONS - Functional denials, never Go errors
// =============================================================================

type RejectionReason string

const (
	// ReasonMinimumDegree: income-weighted sickness degree below the
	// statutory floor on this day.
	ReasonMinimumDegree RejectionReason = "minimum_degree"
	// ReasonAfterDeath: day falls strictly after the registered death date.
	ReasonAfterDeath RejectionReason = "after_death"
	// ReasonMinimumIncome: total coverage base below the statutory
	// minimum-income fraction of the basic amount.
	ReasonMinimumIncome RejectionReason = "minimum_income"
	// ReasonCeilingExhausted: ordinary entitlement ceiling reached.
	ReasonCeilingExhausted RejectionReason = "ceiling_exhausted"
	// ReasonCeilingExhaustedOver67: reduced post-67 ceiling reached.
	ReasonCeilingExhaustedOver67 RejectionReason = "ceiling_exhausted_over_67"
	// ReasonOver70: person is 70 or older; no entitlement regardless of
	// counters.
	ReasonOver70 RejectionReason = "over_70"
	// ReasonNewDeterminationRequired: the ceiling was crossed after a gap
	// that had not yet reached the healthy-weeks reset threshold, so a
	// fresh determination is required before any new entitlement cycle.
	ReasonNewDeterminationRequired RejectionReason = "new_determination_required"
)

// =============================================================================
// ECONOMICS - Per-day money facts, finalized by the allocation engine
// =============================================================================

// Economics carries the per-employer economic facts for a payer-liability
// day. Incomes and claims are daily whole-krone amounts; the allocation
// fields are zero until the allocation engine has run.
type Economics struct {
	Grade        decimal.Decimal // percent 0-100
	DailyIncome  int64           // base daily income
	RefundClaim  int64           // daily refund claim ceiling
	CoverageBase int64           // dekningsgrunnlag, daily

	// Finalized by the allocation engine.
	RefundAmount   int64
	EmployeeAmount int64
	TotalAmount    int64
	IncomeCapped   bool // er6GBegrenset: audit signal, never changes arithmetic
	Allocated      bool
}

// =============================================================================
// DAY
// =============================================================================

// Day is one classified calendar day for one employer.
type Day struct {
	Date      Date
	Kind      DayKind
	Economics Economics

	// Rejections is the ordered, append-only reason set. Non-empty only
	// when Kind == RejectedDay.
	Rejections []RejectionReason
}

// Reject converts the day to a RejectedDay, appending the reason if it is
// not already present. Reasons never shrink.
func (d *Day) Reject(reason RejectionReason) {
	d.Kind = RejectedDay
	for _, r := range d.Rejections {
		if r == reason {
			return
		}
	}
	d.Rejections = append(d.Rejections, reason)
}

// IsPayerLiability reports whether the payer is (still) liable for this day.
func (d *Day) IsPayerLiability() bool {
	return d.Kind == PayerLiabilityDay || d.Kind == PayerLiabilityWeekendDay
}

// CountsTowardEntitlement reports whether the day consumes one entitlement
// day if paid. Weekends never consume.
func (d *Day) CountsTowardEntitlement() bool {
	return d.Kind == PayerLiabilityDay
}

// RejectedWith reports whether the day carries the given reason.
func (d *Day) RejectedWith(reason RejectionReason) bool {
	for _, r := range d.Rejections {
		if r == reason {
			return true
		}
	}
	return false
}
