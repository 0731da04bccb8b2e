package pipeline_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sickpay-engine/classifier"
	"github.com/warp/sickpay-engine/disbursement"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/pipeline"
	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(y int, m time.Month, d int) timeline.Date {
	return timeline.NewDate(y, m, d)
}

func testEngine(t *testing.T) *pipeline.Engine {
	t.Helper()
	s, err := policy.New(
		[]policy.BasicAmount{{EffectiveFrom: date(2020, time.January, 1), Amount: 260000}},
		6, 16, 16,
		decimal.NewFromInt(20), decimal.NewFromFloat(0.5),
		248, 60, 67, 70, 182, 3,
	)
	require.NoError(t, err)
	return pipeline.New(s)
}

func sickDays(start timeline.Date, n int) []timeline.IllnessDay {
	out := make([]timeline.IllnessDay, 0, n)
	for i := 0; i < n; i++ {
		d := start.AddDays(i)
		kind := timeline.IllnessSick
		if d.IsWeekend() {
			kind = timeline.IllnessSickWeekend
		}
		out = append(out, timeline.IllnessDay{Date: d, Kind: kind, Grade: decimal.NewFromInt(100)})
	}
	return out
}

func caseInput(start timeline.Date, n int) pipeline.CaseInput {
	return pipeline.CaseInput{
		CaseID: "case-1",
		Person: eligibility.Person{BirthDate: date(1980, time.March, 1)},
		Employers: []pipeline.EmployerInput{{
			Employer: "emp-1",
			Illness:  timeline.EmployerTimeline{Employer: "emp-1", Days: sickDays(start, n)},
			Basis:    classifier.EconomicBasis{DailyIncome: 1200, RefundClaim: 1200, CoverageBase: 1200},
		}},
	}
}

// =============================================================================
// END TO END
// =============================================================================

func TestCompute_SingleEmployerEndToEnd(t *testing.T) {
	// GIVEN: 21 consecutive sick days from Monday 2025-06-02, full refund
	// WHEN: Computing the case
	// THEN: 16 employer days, payer weekdays allocated, an Unpaid order
	//       with the refund ledger built

	comp, err := testEngine(t).Compute(caseInput(date(2025, time.June, 2), 21))
	require.NoError(t, err)

	days := comp.Days["emp-1"]
	require.Len(t, days, 21)
	assert.Equal(t, timeline.EmployerLiabilityDay, days[0].Kind)
	assert.Equal(t, timeline.PayerLiabilityDay, days[16].Kind)

	// Payer weekdays: June 18, 19, 20 (21-22 are the weekend).
	assert.Equal(t, 3, comp.ConsumedDays)
	assert.Equal(t, 245, comp.RemainingDays)

	o := comp.Order
	require.NotNil(t, o)
	assert.Equal(t, disbursement.StateUnpaid, o.State)
	assert.Equal(t, disbursement.TypeOrdinary, o.Type)
	assert.NotEqual(t, uuid.Nil, o.CorrelationID)
	assert.Equal(t, int64(3600), o.EmployerLedger.NetAmount())
	assert.True(t, o.EmployeeLedger.IsEmpty())
	assert.Equal(t, timeline.NewPeriod(date(2025, time.June, 2), date(2025, time.June, 22)), o.Period)
}

func TestCompute_MaksdatoProjectsRemainingWorkdays(t *testing.T) {
	// The maksdato lies the remaining entitlement's workdays past the last
	// benefit day.

	comp, err := testEngine(t).Compute(caseInput(date(2025, time.June, 2), 21))
	require.NoError(t, err)

	last := date(2025, time.June, 20)
	workdays := 0
	d := last
	for d.Before(comp.Maksdato) {
		d = d.AddDays(1)
		if d.IsWorkday() {
			workdays++
		}
	}
	assert.Equal(t, comp.RemainingDays, workdays)
	assert.True(t, comp.Maksdato.IsWorkday())
}

func TestCompute_RevisionKeepsCorrelation(t *testing.T) {
	// GIVEN: A completed computation
	// WHEN: Recomputing with its correlation id and counter seed
	// THEN: The new order is a revision of the same correlation and the
	//       entitlement accounting continues

	engine := testEngine(t)
	first, err := engine.Compute(caseInput(date(2025, time.June, 2), 21))
	require.NoError(t, err)

	in := caseInput(date(2025, time.June, 2), 28)
	in.CorrelationID = first.Order.CorrelationID
	second, err := engine.Compute(in)
	require.NoError(t, err)

	assert.Equal(t, disbursement.TypeRevision, second.Order.Type)
	assert.Equal(t, first.Order.CorrelationID, second.Order.CorrelationID)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
}

func TestCompute_CounterSeedContinuesAccounting(t *testing.T) {
	// GIVEN: 240 already-consumed days from earlier computations
	// WHEN: Computing a fresh 30-day illness
	// THEN: Only the remaining 8 entitlement days pay; the rest are
	//       rejected by the ceiling

	seedDates := make([]timeline.Date, 0, 240)
	d := date(2024, time.June, 3)
	for len(seedDates) < 240 {
		if d.IsWorkday() {
			seedDates = append(seedDates, d)
		}
		d = d.AddDays(1)
	}
	seed := &eligibility.Counter{}
	seed.Seed(seedDates)

	in := caseInput(date(2025, time.June, 2), 30)
	in.CounterSeed = seed

	comp, err := testEngine(t).Compute(in)
	require.NoError(t, err)

	assert.Equal(t, 248, comp.ConsumedDays)
	assert.Equal(t, 0, comp.RemainingDays)

	var rejected int
	for _, day := range comp.Days["emp-1"] {
		if day.RejectedWith(timeline.ReasonCeilingExhausted) {
			rejected++
		}
	}
	assert.Positive(t, rejected)
}

func TestCompute_PriorEmployerPeriodsSkipQualifying(t *testing.T) {
	// GIVEN: A continuation case with the 16-day employer period already
	//        behind it
	// THEN: Payer liability starts on day one

	start := date(2025, time.June, 2)
	in := caseInput(start.AddDays(16), 5)
	in.Employers[0].PriorEmployerPeriods = []timeline.Period{
		timeline.NewPeriod(start, start.AddDays(15)),
	}

	comp, err := testEngine(t).Compute(in)
	require.NoError(t, err)

	first := comp.Days["emp-1"][0]
	assert.Equal(t, timeline.PayerLiabilityDay, first.Kind)
	assert.Positive(t, comp.Order.EmployerLedger.NetAmount())
}

// =============================================================================
// ERROR PATHS
// =============================================================================

func TestCompute_NoEmployersRejected(t *testing.T) {
	_, err := testEngine(t).Compute(pipeline.CaseInput{CaseID: "case-1"})
	assert.Error(t, err)
}

func TestCompute_ForeclosedTimelineAborts(t *testing.T) {
	// A gap in the timeline aborts the whole computation.
	in := caseInput(date(2025, time.June, 2), 3)
	in.Employers[0].Illness.Days = append(in.Employers[0].Illness.Days,
		timeline.IllnessDay{Date: date(2025, time.June, 10), Kind: timeline.IllnessSick, Grade: decimal.NewFromInt(100)})

	_, err := testEngine(t).Compute(in)
	assert.ErrorIs(t, err, classifier.ErrTimelineForeclosed)
}

// =============================================================================
// OBSERVERS
// =============================================================================

func TestCompute_ObserversSeeFinalization(t *testing.T) {
	// Observers registered through the input see the order's very first
	// transition.

	var events []disbursement.ChangeEvent
	in := caseInput(date(2025, time.June, 2), 21)
	in.Observers = []disbursement.Observer{disbursement.ObserverFunc(func(e disbursement.ChangeEvent) {
		events = append(events, e)
	})}

	_, err := testEngine(t).Compute(in)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, disbursement.StateNew, events[0].Previous)
	assert.Equal(t, disbursement.StateUnpaid, events[0].Current)
}
