/*
Package policy holds the injected statutory parameter snapshot.

PURPOSE:
  The engine never hard-codes statutory tables. Basic amounts, age
  thresholds, qualifying-day counts and ceilings are supplied as versioned
  data, constructed once at process start (see factory) and passed
  explicitly to every component that needs them. There is no process-wide
  mutable singleton.

KEY CONCEPTS:
  - BasicAmount: the periodically-updated base figure (G), keyed by
    effective date
  - Snapshot: the full parameter set effective for a case computation
  - Daily cap: the income cap is a multiple of G expressed per annual
    income, converted to a daily figure over the statutory 260 workdays

SEE ALSO:
  - factory: parses snapshots from JSON and ships the current defaults
  - eligibility, allocation: consumers of the thresholds
*/
package policy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/timeline"
)

// ErrNoBasicAmount is returned when no basic amount is effective for a
// requested date. This is a configuration error, treated as fatal.
var ErrNoBasicAmount = errors.New("no basic amount effective for date")

// workdaysPerYear is the statutory divisor converting annual amounts to
// daily rates.
const workdaysPerYear = 260

// =============================================================================
// BASIC AMOUNT TABLE
// =============================================================================

// BasicAmount is one revision of the basic amount (G), annual whole kroner.
type BasicAmount struct {
	EffectiveFrom timeline.Date
	Amount        int64
}

// =============================================================================
// SNAPSHOT - The complete statutory parameter set
// =============================================================================

// Snapshot is an immutable statutory parameter set. Zero values are not
// usable; construct via New or the factory package.
type Snapshot struct {
	// Basic amounts sorted ascending by effective date.
	basicAmounts []BasicAmount

	// CapMultiple caps the coverage base at CapMultiple * G.
	CapMultiple int64

	// QualifyingDays is the employer-period threshold (days the employer
	// alone is liable for before payer liability begins).
	QualifyingDays int

	// EmployerResetGap: a run of at least this many consecutive non-sick
	// days containing a work day resets the employer-period counter.
	EmployerResetGap int

	// DegreeFloor is the minimum income-weighted sickness degree
	// (percent) for a day to be payable.
	DegreeFloor decimal.Decimal

	// MinimumIncomeFraction of G the annualized coverage base must reach.
	MinimumIncomeFraction decimal.Decimal

	// StandardCeiling is the ordinary entitlement in payer-liability days.
	StandardCeiling int

	// ReducedCeiling applies from ReducedCeilingAge (inclusive) until
	// CutoffAge.
	ReducedCeiling    int
	ReducedCeilingAge int

	// CutoffAge: no entitlement from this age, regardless of counters.
	CutoffAge int

	// ResetGapDays: consecutive non-benefit days required before the
	// consumed-days counter resets (26 healthy weeks).
	ResetGapDays int

	// LookbackYears bounds the rolling window for consumed-days.
	LookbackYears int
}

// New constructs a Snapshot, sorting the basic amount table.
func New(basicAmounts []BasicAmount, capMultiple int64, qualifyingDays, employerResetGap int,
	degreeFloor, minimumIncomeFraction decimal.Decimal,
	standardCeiling, reducedCeiling, reducedCeilingAge, cutoffAge, resetGapDays, lookbackYears int,
) (*Snapshot, error) {
	if len(basicAmounts) == 0 {
		return nil, fmt.Errorf("policy: %w", ErrNoBasicAmount)
	}
	sorted := make([]BasicAmount, len(basicAmounts))
	copy(sorted, basicAmounts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom)
	})
	return &Snapshot{
		basicAmounts:          sorted,
		CapMultiple:           capMultiple,
		QualifyingDays:        qualifyingDays,
		EmployerResetGap:      employerResetGap,
		DegreeFloor:           degreeFloor,
		MinimumIncomeFraction: minimumIncomeFraction,
		StandardCeiling:       standardCeiling,
		ReducedCeiling:        reducedCeiling,
		ReducedCeilingAge:     reducedCeilingAge,
		CutoffAge:             cutoffAge,
		ResetGapDays:          resetGapDays,
		LookbackYears:         lookbackYears,
	}, nil
}

// BasicAmountAt returns the basic amount effective on the given date.
func (s *Snapshot) BasicAmountAt(d timeline.Date) (int64, error) {
	var found *BasicAmount
	for i := range s.basicAmounts {
		if s.basicAmounts[i].EffectiveFrom.BeforeOrEqual(d) {
			found = &s.basicAmounts[i]
		} else {
			break
		}
	}
	if found == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoBasicAmount, d)
	}
	return found.Amount, nil
}

// DailyIncomeCapAt returns the daily income cap effective on the date:
// CapMultiple * G spread over the statutory workdays of a year.
func (s *Snapshot) DailyIncomeCapAt(d timeline.Date) (decimal.Decimal, error) {
	g, err := s.BasicAmountAt(d)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(g * s.CapMultiple).
		Div(decimal.NewFromInt(workdaysPerYear)), nil
}

// MinimumDailyIncomeAt returns the daily equivalent of the minimum-income
// threshold effective on the date.
func (s *Snapshot) MinimumDailyIncomeAt(d timeline.Date) (decimal.Decimal, error) {
	g, err := s.BasicAmountAt(d)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(g).
		Mul(s.MinimumIncomeFraction).
		Div(decimal.NewFromInt(workdaysPerYear)), nil
}

// CeilingFor returns the entitlement ceiling for the given age in years.
// An age at or above CutoffAge has no entitlement at all.
func (s *Snapshot) CeilingFor(age int) int {
	switch {
	case age >= s.CutoffAge:
		return 0
	case age >= s.ReducedCeilingAge:
		return s.ReducedCeiling
	default:
		return s.StandardCeiling
	}
}
