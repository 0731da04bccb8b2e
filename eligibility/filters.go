/*
filters.go - Degree, death and minimum-income filters

PURPOSE:
  The leading links of the filter chain. Each one visits the window
  date by date and appends rejection reasons; none of them aborts the
  pipeline. Functional denials are RejectedDay reasons, never Go errors.

SEE ALSO:
  - maximum.go: the entitlement-ceiling filter that runs after these
  - chain.go: fixed ordering
*/
package eligibility

import (
	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/allocation"
	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

// Filter is one link of the chain. Apply mutates the window's days.
type Filter interface {
	Name() string
	Apply(w *Window) error
}

// =============================================================================
// SICKNESS-DEGREE FILTER
// =============================================================================

// DegreeFilter rejects every payer-liability day on dates where the
// income-weighted average sickness grade across all concurrently sick
// employers is below the statutory floor.
type DegreeFilter struct {
	pol *policy.Snapshot
}

func NewDegreeFilter(pol *policy.Snapshot) *DegreeFilter { return &DegreeFilter{pol: pol} }

func (f *DegreeFilter) Name() string { return "minimum_degree" }

func (f *DegreeFilter) Apply(w *Window) error {
	return w.EachDate(func(d timeline.Date) error {
		var payerDays []*timeline.Day
		var facts []allocation.Fact
		for _, day := range w.DaysAt(d) {
			if day.IsPayerLiability() {
				payerDays = append(payerDays, day)
				facts = append(facts, allocation.Fact{
					Grade:        day.Economics.Grade,
					DailyIncome:  day.Economics.DailyIncome,
					CoverageBase: day.Economics.CoverageBase,
				})
			}
		}
		if len(payerDays) == 0 {
			return nil
		}
		if allocation.AggregateGrade(facts).LessThan(f.pol.DegreeFloor) {
			for _, day := range payerDays {
				day.Reject(timeline.ReasonMinimumDegree)
			}
		}
		return nil
	})
}

// =============================================================================
// DEATH-DATE FILTER
// =============================================================================

// DeathFilter rejects every day strictly after the registered death date,
// regardless of prior classification.
type DeathFilter struct {
	person Person
}

func NewDeathFilter(person Person) *DeathFilter { return &DeathFilter{person: person} }

func (f *DeathFilter) Name() string { return "after_death" }

func (f *DeathFilter) Apply(w *Window) error {
	if f.person.DeathDate == nil {
		return nil
	}
	death := *f.person.DeathDate
	return w.EachDate(func(d timeline.Date) error {
		if !d.After(death) {
			return nil
		}
		for _, day := range w.DaysAt(d) {
			day.Reject(timeline.ReasonAfterDeath)
		}
		return nil
	})
}

// =============================================================================
// MINIMUM-INCOME FILTER
// =============================================================================

// MinimumIncomeFilter rejects payer-liability days on dates where the
// combined coverage base stays below the statutory minimum-income fraction
// of the basic amount.
type MinimumIncomeFilter struct {
	pol *policy.Snapshot
}

func NewMinimumIncomeFilter(pol *policy.Snapshot) *MinimumIncomeFilter {
	return &MinimumIncomeFilter{pol: pol}
}

func (f *MinimumIncomeFilter) Name() string { return "minimum_income" }

func (f *MinimumIncomeFilter) Apply(w *Window) error {
	return w.EachDate(func(d timeline.Date) error {
		var payerDays []*timeline.Day
		var coverage int64
		for _, day := range w.DaysAt(d) {
			if day.IsPayerLiability() {
				payerDays = append(payerDays, day)
				coverage += day.Economics.CoverageBase
			}
		}
		if len(payerDays) == 0 {
			return nil
		}
		floor, err := f.pol.MinimumDailyIncomeAt(d)
		if err != nil {
			return err
		}
		if decimal.NewFromInt(coverage).LessThan(floor) {
			for _, day := range payerDays {
				day.Reject(timeline.ReasonMinimumIncome)
			}
		}
		return nil
	})
}
