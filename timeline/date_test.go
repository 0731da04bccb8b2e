package timeline_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(y int, m time.Month, d int) timeline.Date {
	return timeline.NewDate(y, m, d)
}

// =============================================================================
// DATE TESTS
// =============================================================================

func TestParseDate_RoundTrip(t *testing.T) {
	// GIVEN: An ISO date string
	// WHEN: Parsing and formatting it back
	// THEN: The string survives unchanged

	d, err := timeline.ParseDate("2025-06-16")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-16", d.String())
	assert.Equal(t, date(2025, time.June, 16), d)
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := timeline.ParseDate("16.06.2025")
	assert.Error(t, err)

	_, err = timeline.ParseDate("2025-13-01")
	assert.Error(t, err)
}

func TestDate_Weekend(t *testing.T) {
	// 2025-06-14 is a Saturday, 2025-06-16 a Monday
	assert.True(t, date(2025, time.June, 14).IsWeekend())
	assert.True(t, date(2025, time.June, 15).IsWeekend())
	assert.False(t, date(2025, time.June, 16).IsWeekend())
	assert.True(t, date(2025, time.June, 16).IsWorkday())
}

func TestDaysBetween(t *testing.T) {
	a := date(2025, time.January, 1)
	assert.Equal(t, 0, timeline.DaysBetween(a, a))
	assert.Equal(t, 30, timeline.DaysBetween(a, date(2025, time.January, 31)))
	assert.Equal(t, -1, timeline.DaysBetween(a, date(2024, time.December, 31)))
}

func TestYearsBetween_BirthdayAdjusted(t *testing.T) {
	// GIVEN: A birth date of 1958-06-20
	// WHEN: Measuring age the day before, on, and after the birthday
	// THEN: The year only increments on the birthday itself

	birth := date(1958, time.June, 20)
	assert.Equal(t, 66, timeline.YearsBetween(birth, date(2025, time.June, 19)))
	assert.Equal(t, 67, timeline.YearsBetween(birth, date(2025, time.June, 20)))
	assert.Equal(t, 67, timeline.YearsBetween(birth, date(2025, time.June, 21)))
}

func TestDate_JSONFormat(t *testing.T) {
	out, err := json.Marshal(date(2025, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-05"`, string(out))

	var back timeline.Date
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, back.Equal(date(2025, time.March, 5)))
}

// =============================================================================
// PERIOD TESTS
// =============================================================================

func TestPeriod_CountAndContains(t *testing.T) {
	p := timeline.NewPeriod(date(2025, time.June, 1), date(2025, time.June, 30))
	assert.Equal(t, 30, p.Count())
	assert.True(t, p.Contains(date(2025, time.June, 1)))
	assert.True(t, p.Contains(date(2025, time.June, 30)))
	assert.False(t, p.Contains(date(2025, time.July, 1)))
}

func TestPeriod_Workdays(t *testing.T) {
	// GIVEN: Monday 2025-06-16 through Sunday 2025-06-22
	// THEN: Five workdays

	p := timeline.NewPeriod(date(2025, time.June, 16), date(2025, time.June, 22))
	assert.Equal(t, 5, p.Workdays())
}

func TestPeriod_Overlaps(t *testing.T) {
	a := timeline.NewPeriod(date(2025, time.June, 1), date(2025, time.June, 10))
	b := timeline.NewPeriod(date(2025, time.June, 10), date(2025, time.June, 20))
	c := timeline.NewPeriod(date(2025, time.June, 11), date(2025, time.June, 20))

	assert.True(t, a.Overlaps(b), "shared boundary day overlaps")
	assert.False(t, a.Overlaps(c))
}
