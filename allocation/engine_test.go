package allocation_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sickpay-engine/allocation"
	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(y int, m time.Month, d int) timeline.Date {
	return timeline.NewDate(y, m, d)
}

// testEngine uses G=260000: daily cap 6000.
func testEngine(t *testing.T) *allocation.Engine {
	t.Helper()
	s, err := policy.New(
		[]policy.BasicAmount{{EffectiveFrom: date(2020, time.January, 1), Amount: 260000}},
		6, 16, 16,
		decimal.NewFromInt(20), decimal.NewFromFloat(0.5),
		248, 60, 67, 70, 182, 3,
	)
	require.NoError(t, err)
	return allocation.NewEngine(s)
}

func fact(emp string, grade, income, claim, coverage int64) allocation.Fact {
	return allocation.Fact{
		Employer:     timeline.EmployerID(emp),
		Grade:        decimal.NewFromInt(grade),
		DailyIncome:  income,
		RefundClaim:  claim,
		CoverageBase: coverage,
	}
}

// checkBalance asserts the core invariant: shares sum exactly to the total.
func checkBalance(t *testing.T, r *allocation.Result) {
	t.Helper()
	assert.Equal(t, r.Total, r.RefundTotal()+r.EmployeeTotal(),
		"refund + employee shares must equal the capped total")
	for _, s := range r.Shares {
		assert.GreaterOrEqual(t, s.Refund, int64(0))
		assert.GreaterOrEqual(t, s.Employee, int64(0))
	}
}

// =============================================================================
// SINGLE EMPLOYER
// =============================================================================

func TestAllocate_FullRefundSingleEmployer(t *testing.T) {
	// GIVEN: One employer, full grade, claim equal to coverage, below cap
	// THEN: The whole benefit is an employer refund

	r, err := testEngine(t).Allocate(date(2025, time.June, 2),
		[]allocation.Fact{fact("a", 100, 1200, 1200, 1200)})
	require.NoError(t, err)

	assert.Equal(t, int64(1200), r.Total)
	assert.Equal(t, int64(1200), r.RefundTotal())
	assert.Zero(t, r.EmployeeTotal())
	assert.False(t, r.IncomeCapped)
	checkBalance(t, r)
}

func TestAllocate_GradedFiftyPercent(t *testing.T) {
	// 50% grade halves the benefit.
	r, err := testEngine(t).Allocate(date(2025, time.June, 2),
		[]allocation.Fact{fact("a", 50, 1200, 1200, 1200)})
	require.NoError(t, err)

	assert.Equal(t, int64(600), r.Total)
	assert.True(t, r.AggregateGrade.Equal(decimal.NewFromInt(50)))
	checkBalance(t, r)
}

func TestAllocate_ZeroCoverageShortCircuits(t *testing.T) {
	r, err := testEngine(t).Allocate(date(2025, time.June, 2),
		[]allocation.Fact{fact("a", 100, 0, 0, 0)})
	require.NoError(t, err)

	assert.Zero(t, r.Total)
	assert.False(t, r.IncomeCapped)
	checkBalance(t, r)
}

func TestAllocate_NoRefundClaimGoesToEmployee(t *testing.T) {
	// GIVEN: No employer refund claim
	// THEN: The whole benefit is paid to the employee

	r, err := testEngine(t).Allocate(date(2025, time.June, 2),
		[]allocation.Fact{fact("a", 100, 1000, 0, 1000)})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), r.Total)
	assert.Zero(t, r.RefundTotal())
	assert.Equal(t, int64(1000), r.EmployeeTotal())
	checkBalance(t, r)
}

// =============================================================================
// INCOME CAP
// =============================================================================

func TestAllocate_CapsAtSixG(t *testing.T) {
	// GIVEN: Coverage of 8000 against the 6000 daily cap
	// THEN: The total is capped and the flag is set

	r, err := testEngine(t).Allocate(date(2025, time.June, 2),
		[]allocation.Fact{fact("a", 100, 8000, 8000, 8000)})
	require.NoError(t, err)

	assert.Equal(t, int64(6000), r.Total)
	assert.True(t, r.IncomeCapped)
	checkBalance(t, r)
}

func TestAllocate_ExactlyAtCapNotFlagged(t *testing.T) {
	// The flag means strictly above the cap.
	r, err := testEngine(t).Allocate(date(2025, time.June, 2),
		[]allocation.Fact{fact("a", 100, 6000, 6000, 6000)})
	require.NoError(t, err)

	assert.Equal(t, int64(6000), r.Total)
	assert.False(t, r.IncomeCapped)
}

// =============================================================================
// MULTIPLE EMPLOYERS
// =============================================================================

func TestAllocate_RefundsScaledWhenClaimsExceedCap(t *testing.T) {
	// GIVEN: Two employers whose combined claims (9000) exceed the capped
	//        total (6000)
	// THEN: Refunds are scaled proportionally; the sum still balances

	r, err := testEngine(t).Allocate(date(2025, time.June, 2), []allocation.Fact{
		fact("a", 100, 6000, 6000, 6000),
		fact("b", 100, 3000, 3000, 3000),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(6000), r.Total)
	assert.True(t, r.IncomeCapped)
	assert.Equal(t, int64(6000), r.RefundTotal())
	assert.Equal(t, int64(4000), r.Shares[0].Refund, "two thirds of the capped total")
	assert.Equal(t, int64(2000), r.Shares[1].Refund)
	checkBalance(t, r)
}

func TestAllocate_AggregateGradeWeightsByIncome(t *testing.T) {
	// 100% at income 900 and 10% at income 100 average to 91%.
	facts := []allocation.Fact{
		fact("a", 100, 900, 0, 900),
		fact("b", 10, 100, 0, 100),
	}
	grade := allocation.AggregateGrade(facts)
	assert.True(t, grade.Equal(decimal.NewFromInt(91)), "got %s", grade)
}

func TestAllocate_MixedRefundAndEmployee(t *testing.T) {
	// GIVEN: Employer a claims a refund, employer b does not
	// THEN: a's slice is refunded, b's slice goes to the employee

	r, err := testEngine(t).Allocate(date(2025, time.June, 2), []allocation.Fact{
		fact("a", 100, 1000, 1000, 1000),
		fact("b", 100, 1000, 0, 1000),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2000), r.Total)
	assert.Equal(t, int64(1000), r.Shares[0].Refund)
	assert.Zero(t, r.Shares[0].Employee)
	assert.Zero(t, r.Shares[1].Refund)
	assert.Equal(t, int64(1000), r.Shares[1].Employee)
	checkBalance(t, r)
}

// =============================================================================
// WHOLE-KRONE ROUNDING
// =============================================================================

func TestAllocate_RoundingResidualsBalanceExactly(t *testing.T) {
	// GIVEN: Three employers whose thirds never divide evenly
	// THEN: Largest-remainder distribution still sums exactly to the total

	r, err := testEngine(t).Allocate(date(2025, time.June, 2), []allocation.Fact{
		fact("a", 100, 1000, 1000, 1000),
		fact("b", 100, 1000, 1000, 1000),
		fact("c", 100, 1000, 1000, 1000),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3000), r.Total)
	checkBalance(t, r)
}

func TestAllocate_UnevenGradesBalanceExactly(t *testing.T) {
	// Odd grades force fractional intermediate amounts.
	r, err := testEngine(t).Allocate(date(2025, time.June, 2), []allocation.Fact{
		fact("a", 37, 1111, 1111, 1111),
		fact("b", 73, 999, 999, 999),
		fact("c", 51, 777, 0, 777),
	})
	require.NoError(t, err)

	assert.Positive(t, r.Total)
	checkBalance(t, r)
}

func TestAllocate_StableTieBreakByInputOrder(t *testing.T) {
	// GIVEN: Two identical employers and an odd total
	// THEN: The residual krone lands on the first by input order,
	//       deterministically

	r, err := testEngine(t).Allocate(date(2025, time.June, 2), []allocation.Fact{
		fact("a", 25, 1000, 1000, 1000),
		fact("b", 25, 1000, 1000, 1000),
	})
	require.NoError(t, err)

	// Capped total: 2000 * 25% = 500; 250 each would balance, odd splits
	// must favor a.
	assert.Equal(t, int64(500), r.Total)
	assert.GreaterOrEqual(t, r.Shares[0].Refund, r.Shares[1].Refund)
	checkBalance(t, r)
}
