package classifier_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sickpay-engine/classifier"
	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(y int, m time.Month, d int) timeline.Date {
	return timeline.NewDate(y, m, d)
}

func testPolicy(t *testing.T) *policy.Snapshot {
	t.Helper()
	s, err := policy.New(
		[]policy.BasicAmount{{EffectiveFrom: date(2024, time.May, 1), Amount: 260000}},
		6, 16, 16,
		decimal.NewFromInt(20), decimal.NewFromFloat(0.5),
		248, 60, 67, 70, 182, 3,
	)
	require.NoError(t, err)
	return s
}

func testBasis() classifier.EconomicBasis {
	return classifier.EconomicBasis{DailyIncome: 1200, RefundClaim: 1200, CoverageBase: 1200}
}

// sickRun builds a gap-free illness timeline starting at the given date,
// choosing the weekend kind on weekend dates.
func sickRun(start timeline.Date, n int, grade int64) []timeline.IllnessDay {
	days := make([]timeline.IllnessDay, 0, n)
	for i := 0; i < n; i++ {
		d := start.AddDays(i)
		kind := timeline.IllnessSick
		if d.IsWeekend() {
			kind = timeline.IllnessSickWeekend
		}
		days = append(days, timeline.IllnessDay{Date: d, Kind: kind, Grade: decimal.NewFromInt(grade)})
	}
	return days
}

func workRun(start timeline.Date, n int) []timeline.IllnessDay {
	days := make([]timeline.IllnessDay, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, timeline.IllnessDay{Date: start.AddDays(i), Kind: timeline.IllnessWork})
	}
	return days
}

func vacationRun(start timeline.Date, n int) []timeline.IllnessDay {
	days := make([]timeline.IllnessDay, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, timeline.IllnessDay{Date: start.AddDays(i), Kind: timeline.IllnessVacation})
	}
	return days
}

func classify(t *testing.T, days []timeline.IllnessDay) []timeline.Day {
	t.Helper()
	c := classifier.New("emp-1", testPolicy(t), testBasis())
	out, err := c.Classify(timeline.EmployerTimeline{Employer: "emp-1", Days: days})
	require.NoError(t, err)
	return out
}

// =============================================================================
// EMPLOYER PERIOD THRESHOLD
// =============================================================================

func TestClassify_SixteenDaysEmployerThenPayer(t *testing.T) {
	// GIVEN: 31 consecutive sick days from Monday 2025-06-02
	// WHEN: Classifying
	// THEN: The first 16 days (weekends included) are employer liability,
	//       the rest payer liability with economics stamped

	days := classify(t, sickRun(date(2025, time.June, 2), 31, 100))
	require.Len(t, days, 31)

	for i := 0; i < 16; i++ {
		d := days[i]
		if d.Date.IsWeekend() {
			assert.Equal(t, timeline.EmployerLiabilityWeekendDay, d.Kind, "day %d", i)
		} else {
			assert.Equal(t, timeline.EmployerLiabilityDay, d.Kind, "day %d", i)
		}
		assert.Zero(t, d.Economics.CoverageBase, "employer days carry no economics")
	}
	for i := 16; i < 31; i++ {
		d := days[i]
		if d.Date.IsWeekend() {
			assert.Equal(t, timeline.PayerLiabilityWeekendDay, d.Kind, "day %d", i)
		} else {
			assert.Equal(t, timeline.PayerLiabilityDay, d.Kind, "day %d", i)
		}
		assert.Equal(t, int64(1200), d.Economics.CoverageBase)
		assert.True(t, d.Economics.Grade.Equal(decimal.NewFromInt(100)))
	}
}

func TestClassify_WeekendsCountTowardThreshold(t *testing.T) {
	// GIVEN: 16 sick days spanning two weekends
	// THEN: The 17th sick day is already payer liability

	start := date(2025, time.June, 2) // Monday
	days := classify(t, sickRun(start, 17, 100))

	assert.Equal(t, timeline.EmployerLiabilityDay, days[15].Kind)
	assert.Equal(t, timeline.PayerLiabilityDay, days[16].Kind)
}

// =============================================================================
// RESET RULES
// =============================================================================

func TestClassify_SixteenWorkDaysResetTracker(t *testing.T) {
	// GIVEN: A completed employer period, then 16 implicit work days,
	//        then renewed sickness
	// WHEN: Classifying the whole run
	// THEN: The renewed sickness starts a fresh employer period

	start := date(2025, time.June, 2)
	input := sickRun(start, 16, 100)
	input = append(input, workRun(start.AddDays(16), 16)...)
	input = append(input, sickRun(start.AddDays(32), 5, 100)...)

	days := classify(t, input)
	require.Len(t, days, 37)

	for i := 16; i < 32; i++ {
		assert.Equal(t, timeline.ImplicitWorkDay, days[i].Kind, "day %d", i)
	}
	// Fresh qualifying run: back to employer liability.
	for i := 32; i < 37; i++ {
		if days[i].Date.IsWeekend() {
			assert.Equal(t, timeline.EmployerLiabilityWeekendDay, days[i].Kind, "day %d", i)
		} else {
			assert.Equal(t, timeline.EmployerLiabilityDay, days[i].Kind, "day %d", i)
		}
	}
}

func TestClassify_VacationAloneNeverResets(t *testing.T) {
	// GIVEN: A completed employer period, then 20 vacation days, then
	//        renewed sickness
	// THEN: Vacation does not reset the period; renewed sickness is payer
	//       liability immediately

	start := date(2025, time.June, 2)
	input := sickRun(start, 16, 100)
	input = append(input, vacationRun(start.AddDays(16), 20)...)
	input = append(input, sickRun(start.AddDays(36), 3, 100)...)

	days := classify(t, input)

	for i := 16; i < 36; i++ {
		assert.Equal(t, timeline.HolidayDay, days[i].Kind, "day %d", i)
	}
	for i := 36; i < 39; i++ {
		if !days[i].Date.IsWeekend() {
			assert.Equal(t, timeline.PayerLiabilityDay, days[i].Kind, "day %d", i)
		}
	}
}

func TestClassify_ShortWorkGapDoesNotReset(t *testing.T) {
	// GIVEN: A completed employer period, 15 work days, renewed sickness
	// THEN: The gap is one day short of the reset threshold; payer
	//       liability continues

	start := date(2025, time.June, 2)
	input := sickRun(start, 16, 100)
	input = append(input, workRun(start.AddDays(16), 15)...)
	input = append(input, sickRun(start.AddDays(31), 1, 100)...)

	days := classify(t, input)
	last := days[len(days)-1]
	if !last.Date.IsWeekend() {
		assert.Equal(t, timeline.PayerLiabilityDay, last.Kind)
	} else {
		assert.Equal(t, timeline.PayerLiabilityWeekendDay, last.Kind)
	}
}

// =============================================================================
// FORECLOSURE
// =============================================================================

func TestClassify_GapInTimelineForecloses(t *testing.T) {
	// GIVEN: A timeline with a missing calendar day
	// WHEN: Classifying
	// THEN: A fatal foreclosure error; the offending and later days are
	//       ForeclosedDay, earlier days keep their classification

	input := sickRun(date(2025, time.June, 2), 3, 100)
	input = append(input, sickRun(date(2025, time.June, 6), 2, 100)...) // skips June 5

	c := classifier.New("emp-1", testPolicy(t), testBasis())
	days, err := c.Classify(timeline.EmployerTimeline{Employer: "emp-1", Days: input})

	require.Error(t, err)
	assert.ErrorIs(t, err, classifier.ErrTimelineForeclosed)
	var fe *classifier.ForeclosureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, timeline.EmployerID("emp-1"), fe.Employer)
	assert.Equal(t, date(2025, time.June, 6), fe.Date)

	require.Len(t, days, 5)
	assert.Equal(t, timeline.EmployerLiabilityDay, days[0].Kind)
	assert.Equal(t, timeline.ForeclosedDay, days[3].Kind)
	assert.Equal(t, timeline.ForeclosedDay, days[4].Kind)
}

func TestClassify_WeekendKindMismatchForecloses(t *testing.T) {
	// Weekday sick kind on a Saturday date is an input-contract violation.
	input := []timeline.IllnessDay{
		{Date: date(2025, time.June, 7), Kind: timeline.IllnessSick, Grade: decimal.NewFromInt(100)},
	}
	c := classifier.New("emp-1", testPolicy(t), testBasis())
	days, err := c.Classify(timeline.EmployerTimeline{Employer: "emp-1", Days: input})

	assert.ErrorIs(t, err, classifier.ErrTimelineForeclosed)
	assert.Equal(t, timeline.ForeclosedDay, days[0].Kind)
}

func TestClassify_GradeOutOfRangeForecloses(t *testing.T) {
	for _, grade := range []int64{0, -10, 101} {
		input := []timeline.IllnessDay{
			{Date: date(2025, time.June, 2), Kind: timeline.IllnessSick, Grade: decimal.NewFromInt(grade)},
		}
		c := classifier.New("emp-1", testPolicy(t), testBasis())
		_, err := c.Classify(timeline.EmployerTimeline{Employer: "emp-1", Days: input})
		assert.ErrorIs(t, err, classifier.ErrTimelineForeclosed, "grade %d", grade)
	}
}

// =============================================================================
// TRACKER
// =============================================================================

func TestTracker_MergesContiguousRanges(t *testing.T) {
	tr := classifier.NewEmployerPeriodTracker(16)
	start := date(2025, time.June, 2)
	for i := 0; i < 5; i++ {
		tr.CountDay(start.AddDays(i))
	}
	tr.CountDay(start.AddDays(10)) // disjoint

	ranges := tr.Ranges()
	require.Len(t, ranges, 2)
	assert.Equal(t, timeline.NewPeriod(start, start.AddDays(4)), ranges[0])
	assert.Equal(t, 6, tr.Counted())
	assert.False(t, tr.Complete())
}

func TestTracker_FreezesAtThreshold(t *testing.T) {
	tr := classifier.NewEmployerPeriodTracker(3)
	start := date(2025, time.June, 2)
	for i := 0; i < 5; i++ {
		tr.CountDay(start.AddDays(i))
	}
	assert.True(t, tr.Complete())
	assert.Equal(t, 3, tr.Counted(), "counting past the threshold is a no-op")
}

func TestTracker_HistorySeedsContinuation(t *testing.T) {
	// GIVEN: 16 qualifying days from an earlier computation
	// WHEN: Seeding a tracker and classifying renewed sickness
	// THEN: The period is already complete; sickness is payer liability

	start := date(2025, time.June, 2)
	history := []timeline.Period{timeline.NewPeriod(start, start.AddDays(15))}
	tr := classifier.NewEmployerPeriodTrackerWithHistory(16, history)

	assert.True(t, tr.Complete())
	assert.True(t, tr.Continuation())

	c := classifier.NewWithTracker("emp-1", testPolicy(t), testBasis(), tr)
	days, err := c.Classify(timeline.EmployerTimeline{
		Employer: "emp-1",
		Days:     sickRun(start.AddDays(16), 2, 100),
	})
	require.NoError(t, err)
	for _, d := range days {
		if !d.Date.IsWeekend() {
			assert.Equal(t, timeline.PayerLiabilityDay, d.Kind)
		}
	}
}
