/*
Package allocation computes the capped daily benefit and splits it between
employer refunds and the employee.

PURPOSE:
  Given one calendar day and the economic facts of every employer still
  eligible on that day, the engine:
  1. Sums the coverage bases and caps the total at the statutory multiple
     of the basic amount effective for the day
  2. Computes the income-weighted aggregate sickness grade
  3. Derives the capped total benefit = min(coverage, cap) * grade
  4. Splits it into employer-refund shares (proportional to refund claims,
     scaled down when they exceed the capped total) and employee shares
  5. Distributes whole-krone rounding residuals by largest fractional
     remainder, ties broken by stable input order

INVARIANTS:
  - sum(refund shares) + sum(employee shares) == capped total, exactly
  - no share is negative
  - a zero coverage base short-circuits to an all-zero allocation
  - the income-capped flag is true iff coverage strictly exceeds the cap;
    it is an audit signal and never changes the arithmetic

PRECISION:
  All intermediate arithmetic uses decimal.Decimal. Only the final
  largest-remainder step produces whole-krone int64 amounts.

SEE ALSO:
  - eligibility: invokes the engine as the final link of the filter chain
  - policy: supplies the basic-amount table and cap multiple
*/
package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// Fact is the economic input for one employer on one day.
type Fact struct {
	Employer     timeline.EmployerID
	Grade        decimal.Decimal // percent 0-100
	DailyIncome  int64
	RefundClaim  int64
	CoverageBase int64
}

// Share is the finalized whole-krone split for one employer.
type Share struct {
	Employer timeline.EmployerID
	Refund   int64
	Employee int64
}

// Result is the allocation for one day across all employers.
type Result struct {
	Date           timeline.Date
	Total          int64
	AggregateGrade decimal.Decimal
	IncomeCapped   bool
	Shares         []Share
}

// RefundTotal sums the employer-refund shares.
func (r *Result) RefundTotal() int64 {
	var sum int64
	for _, s := range r.Shares {
		sum += s.Refund
	}
	return sum
}

// EmployeeTotal sums the employee-payment shares.
func (r *Result) EmployeeTotal() int64 {
	var sum int64
	for _, s := range r.Shares {
		sum += s.Employee
	}
	return sum
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Policy *policy.Snapshot
}

func NewEngine(pol *policy.Snapshot) *Engine { return &Engine{Policy: pol} }

// AggregateGrade computes the income-weighted average grade across the
// facts. Employers without income fall back to coverage-base weighting.
func AggregateGrade(facts []Fact) decimal.Decimal {
	weights := make([]decimal.Decimal, len(facts))
	sumW := decimal.Zero
	for i, f := range facts {
		weights[i] = decimal.NewFromInt(f.DailyIncome)
		sumW = sumW.Add(weights[i])
	}
	if sumW.IsZero() {
		for i, f := range facts {
			weights[i] = decimal.NewFromInt(f.CoverageBase)
			sumW = sumW.Add(weights[i])
		}
	}
	if sumW.IsZero() {
		return decimal.Zero
	}
	weighted := decimal.Zero
	for i, f := range facts {
		weighted = weighted.Add(f.Grade.Mul(weights[i]))
	}
	return weighted.Div(sumW)
}

// Allocate computes the capped total for the day and its exact whole-krone
// split. The returned error is fatal: it means the engine violated its own
// invariant and the case must not proceed to payment.
func (e *Engine) Allocate(date timeline.Date, facts []Fact) (*Result, error) {
	result := &Result{Date: date, Shares: make([]Share, len(facts))}
	for i, f := range facts {
		result.Shares[i].Employer = f.Employer
	}

	var coverage int64
	for _, f := range facts {
		coverage += f.CoverageBase
	}
	if coverage == 0 {
		// Short-circuit: no ratio arithmetic on a zero base.
		return result, nil
	}

	dailyCap, err := e.Policy.DailyIncomeCapAt(date)
	if err != nil {
		return nil, err
	}
	coverageD := decimal.NewFromInt(coverage)
	result.IncomeCapped = coverageD.GreaterThan(dailyCap)

	base := coverageD
	if result.IncomeCapped {
		base = dailyCap
	}

	grade := AggregateGrade(facts)
	result.AggregateGrade = grade

	cappedTotalD := base.Mul(grade).Div(hundred)
	total := cappedTotalD.Round(0).IntPart()
	result.Total = total
	if total == 0 {
		return result, nil
	}

	// Uncapped refund entitlements, proportional to each refund claim and
	// the aggregate grade.
	refundTargets := make([]decimal.Decimal, len(facts))
	sumRefund := decimal.Zero
	for i, f := range facts {
		refundTargets[i] = decimal.NewFromInt(f.RefundClaim).Mul(grade).Div(hundred)
		sumRefund = sumRefund.Add(refundTargets[i])
	}

	// Reduksjon: scale refunds down when they exceed the capped total.
	refundTotalD := sumRefund
	if sumRefund.GreaterThan(cappedTotalD) {
		ratio := cappedTotalD.Div(sumRefund)
		for i := range refundTargets {
			refundTargets[i] = refundTargets[i].Mul(ratio)
		}
		refundTotalD = cappedTotalD
	}
	refundTotal := refundTotalD.Round(0).IntPart()
	if refundTotal > total {
		refundTotal = total
	}

	refunds := distributeWhole(refundTargets, refundTotal)

	// Employee shares cover the rest of the capped total, split by each
	// employer's benefit-weighted slice net of its refund.
	employeeTotal := total - refundTotal
	grossTargets := make([]decimal.Decimal, len(facts))
	sumGross := decimal.Zero
	for i, f := range facts {
		grossTargets[i] = decimal.NewFromInt(f.DailyIncome).Mul(f.Grade)
		sumGross = sumGross.Add(grossTargets[i])
	}
	employeeTargets := make([]decimal.Decimal, len(facts))
	anyPositive := false
	for i := range facts {
		gross := decimal.Zero
		if !sumGross.IsZero() {
			gross = cappedTotalD.Mul(grossTargets[i]).Div(sumGross)
		}
		net := gross.Sub(refundTargets[i])
		if net.IsNegative() {
			net = decimal.Zero
		}
		employeeTargets[i] = net
		if net.IsPositive() {
			anyPositive = true
		}
	}
	if !anyPositive && employeeTotal > 0 {
		employeeTargets = grossTargets
	}

	employees := distributeWhole(employeeTargets, employeeTotal)

	var check int64
	for i := range result.Shares {
		result.Shares[i].Refund = refunds[i]
		result.Shares[i].Employee = employees[i]
		if refunds[i] < 0 || employees[i] < 0 {
			return nil, &InvariantError{Date: date, Expected: total, Actual: check, Cause: ErrNegativeShare}
		}
		check += refunds[i] + employees[i]
	}
	if check != total {
		return nil, &InvariantError{Date: date, Expected: total, Actual: check, Cause: ErrUnbalancedAllocation}
	}
	return result, nil
}

// =============================================================================
// LARGEST-REMAINDER DISTRIBUTION
// =============================================================================

// distributeWhole splits total whole units across the targets
// proportionally: floor every scaled target, then hand out the residual
// one unit at a time to the largest fractional remainders, ties broken by
// stable input order.
func distributeWhole(targets []decimal.Decimal, total int64) []int64 {
	out := make([]int64, len(targets))
	if total <= 0 || len(targets) == 0 {
		return out
	}

	sum := decimal.Zero
	for _, t := range targets {
		sum = sum.Add(t)
	}
	totalD := decimal.NewFromInt(total)

	if sum.IsZero() {
		// Nothing to weight by: hand out units round-robin.
		for i := int64(0); i < total; i++ {
			out[i%int64(len(targets))]++
		}
		return out
	}

	type remainder struct {
		index int
		frac  decimal.Decimal
	}
	remainders := make([]remainder, len(targets))
	var floored int64
	for i, t := range targets {
		scaled := t.Mul(totalD).Div(sum)
		fl := scaled.Floor()
		out[i] = fl.IntPart()
		floored += out[i]
		remainders[i] = remainder{index: i, frac: scaled.Sub(fl)}
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		return remainders[i].frac.GreaterThan(remainders[j].frac)
	})

	residual := total - floored
	for i := int64(0); i < residual; i++ {
		out[remainders[i%int64(len(remainders))].index]++
	}
	return out
}
