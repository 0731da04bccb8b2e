/*
Package eligibility runs the ordered filter chain over the merged
multi-employer day sequence.

PURPOSE:
  After classification, every day is either a payer-liability economic
  candidate or already settled (employer-liability, holiday, work). The
  chain finalizes the candidates in statutory priority order:

    1. Sickness-degree filter       (income-weighted grade below floor)
    2. Death-date filter            (days strictly after death)
    3. Minimum-income filter        (coverage base below 0.5 G)
    4. Maximum-entitlement filter   (rolling ceilings, 182-day reset)
    5. Allocation                   (income cap, refund/employee split)

  Filters append rejection reasons; the final link invokes the allocation
  engine for every date that still has eligible payer days and writes the
  finalized amounts back onto the days.

ERROR MODEL:
  Functional denials are day-level rejection reasons. A returned error is
  fatal (policy misconfiguration or an allocation invariant violation)
  and aborts the case.

SEE ALSO:
  - filters.go, maximum.go: the individual links
  - allocation: the money engine behind the final link
*/
package eligibility

import (
	"github.com/warp/sickpay-engine/allocation"
	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// CHAIN
// =============================================================================

// Outcome is what the chain hands to the disbursement builder.
type Outcome struct {
	Counter Counter
	// DailyTotals are the allocation results for every date that paid,
	// chronologically.
	DailyTotals []allocation.Result
}

// Chain runs the filters in fixed statutory order.
type Chain struct {
	pol     *policy.Snapshot
	person  Person
	maximum *MaximumEntitlementFilter
	engine  *allocation.Engine
}

// NewChain wires the chain for one case. A non-nil counterSeed continues
// an earlier computation's entitlement accounting.
func NewChain(pol *policy.Snapshot, person Person, counterSeed *Counter) *Chain {
	return &Chain{
		pol:     pol,
		person:  person,
		maximum: NewMaximumEntitlementFilter(pol, person, counterSeed),
		engine:  allocation.NewEngine(pol),
	}
}

// Run applies every filter, then allocates. The window's days are
// finalized in place.
func (c *Chain) Run(w *Window) (*Outcome, error) {
	filters := []Filter{
		NewDegreeFilter(c.pol),
		NewDeathFilter(c.person),
		NewMinimumIncomeFilter(c.pol),
		c.maximum,
	}
	for _, f := range filters {
		if err := f.Apply(w); err != nil {
			return nil, err
		}
	}

	outcome := &Outcome{Counter: c.maximum.Counter()}
	err := w.EachDate(func(d timeline.Date) error {
		return c.allocate(w, d, outcome)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// allocate runs the money engine for one date and writes the shares back.
func (c *Chain) allocate(w *Window, d timeline.Date, outcome *Outcome) error {
	var days []*timeline.Day
	var facts []allocation.Fact
	for _, emp := range w.Employers() {
		day := w.At(emp, d)
		if day == nil {
			continue
		}
		switch day.Kind {
		case timeline.PayerLiabilityDay:
			days = append(days, day)
			facts = append(facts, allocation.Fact{
				Employer:     emp,
				Grade:        day.Economics.Grade,
				DailyIncome:  day.Economics.DailyIncome,
				RefundClaim:  day.Economics.RefundClaim,
				CoverageBase: day.Economics.CoverageBase,
			})
		case timeline.PayerLiabilityWeekendDay:
			// Weekends carry economics but never allocate.
			day.Economics.Allocated = true
		}
	}
	if len(days) == 0 {
		return nil
	}

	result, err := c.engine.Allocate(d, facts)
	if err != nil {
		return err
	}
	for i, day := range days {
		share := result.Shares[i]
		day.Economics.RefundAmount = share.Refund
		day.Economics.EmployeeAmount = share.Employee
		day.Economics.TotalAmount = share.Refund + share.Employee
		day.Economics.IncomeCapped = result.IncomeCapped
		day.Economics.Allocated = true
	}
	if result.Total > 0 {
		outcome.DailyTotals = append(outcome.DailyTotals, *result)
	}
	return nil
}
