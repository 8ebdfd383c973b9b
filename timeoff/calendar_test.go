package timeoff_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/timeoff"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

func catalog2024() []timeoff.Holiday {
	return []timeoff.Holiday{
		{ID: "HOL001", Name: "New Year Day", Date: date(2024, time.January, 1), Type: timeoff.HolidayPublic},
		{ID: "HOL002", Name: "Labor Day", Date: date(2024, time.May, 1), Type: timeoff.HolidayPublic},
		{ID: "HOL003", Name: "Company Anniversary", Date: date(2024, time.October, 15), Type: timeoff.HolidayOptional},
		{ID: "HOL004", Name: "Christmas Day", Date: date(2024, time.December, 25), Type: timeoff.HolidayPublic},
	}
}

// =============================================================================
// WORKING DAYS
// =============================================================================

func TestWorkingDays_FullWeek_NoHolidays(t *testing.T) {
	// GIVEN: Monday 2024-05-20 to Friday 2024-05-24, empty catalog
	// THEN: 5 working days
	cal := timeoff.NewCalendar(nil)
	assert.Equal(t, 5, cal.WorkingDays(date(2024, time.May, 20), date(2024, time.May, 24)))
}

func TestWorkingDays_MidweekHoliday(t *testing.T) {
	// GIVEN: Same week with a holiday on Wednesday
	// THEN: 4 working days
	cal := timeoff.NewCalendar([]timeoff.Holiday{
		{ID: "H1", Name: "Midweek", Date: date(2024, time.May, 22), Type: timeoff.HolidayPublic},
	})
	assert.Equal(t, 4, cal.WorkingDays(date(2024, time.May, 20), date(2024, time.May, 24)))
}

func TestWorkingDays_OptionalHolidayAlsoExcluded(t *testing.T) {
	cal := timeoff.NewCalendar(catalog2024())

	// Tuesday 2024-10-15 is an Optional holiday
	assert.Equal(t, 0, cal.WorkingDays(date(2024, time.October, 15), date(2024, time.October, 15)))
	assert.Equal(t, 4, cal.WorkingDays(date(2024, time.October, 14), date(2024, time.October, 18)))
}

func TestWorkingDays_SingleDay(t *testing.T) {
	cal := timeoff.NewCalendar(nil)

	tests := []struct {
		name string
		day  generic.TimePoint
		want int
	}{
		{"monday", date(2024, time.May, 20), 1},
		{"friday", date(2024, time.May, 24), 1},
		{"saturday", date(2024, time.May, 25), 0},
		{"sunday", date(2024, time.May, 26), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cal.WorkingDays(tc.day, tc.day))
		})
	}
}

func TestWorkingDays_SevenDaySpanIsFive(t *testing.T) {
	cal := timeoff.NewCalendar(nil)
	start := date(2024, time.March, 1)
	for i := 0; i < 7; i++ {
		s := start.AddDays(i)
		assert.Equal(t, 5, cal.WorkingDays(s, s.AddDays(6)), "span starting %s", s)
	}
}

func TestWorkingDays_ReversedRange(t *testing.T) {
	cal := timeoff.NewCalendar(nil)
	assert.Equal(t, 0, cal.WorkingDays(date(2024, time.May, 24), date(2024, time.May, 20)))

	_, err := cal.WorkingDaysStrict(date(2024, time.May, 24), date(2024, time.May, 20))
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidRange))
	assert.True(t, errors.Is(err, generic.ErrValidation))

	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "end_date", ve.Field)
}

func TestWorkingDaysStrict_RangeLengthLimit(t *testing.T) {
	cal := timeoff.NewCalendar(nil)

	// GIVEN: A leap year, exactly MaxRangeDays long
	// THEN: Accepted
	days, err := cal.WorkingDaysStrict(date(2024, time.January, 1), date(2024, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, 262, days)

	// GIVEN: One day more
	// THEN: Rejected as too long, not as reversed
	_, err = cal.WorkingDaysStrict(date(2024, time.January, 1), date(2025, time.January, 1))
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, generic.CodeRangeTooLong, ve.Code)
	assert.Equal(t, "end_date", ve.Field)
	assert.True(t, errors.Is(err, generic.ErrValidation))
	assert.False(t, errors.Is(err, generic.ErrInvalidRange))
}

func TestWorkingDays_DuplicateHolidayDateCountedOnce(t *testing.T) {
	cal := timeoff.NewCalendar([]timeoff.Holiday{
		{ID: "A", Name: "First", Date: date(2024, time.May, 22), Type: timeoff.HolidayPublic},
		{ID: "B", Name: "Second", Date: date(2024, time.May, 22), Type: timeoff.HolidayOptional},
	})
	assert.Equal(t, 4, cal.WorkingDays(date(2024, time.May, 20), date(2024, time.May, 24)))
}

func TestWorkingDays_HolidayOtherYearIgnored(t *testing.T) {
	cal := timeoff.NewCalendar(catalog2024())

	// 2025-01-01 is a Wednesday; the catalog only covers 2024
	assert.Equal(t, 1, cal.WorkingDays(date(2025, time.January, 1), date(2025, time.January, 1)))
}

func TestWorkingDays_NeverExceedsSpan(t *testing.T) {
	cal := timeoff.NewCalendar(catalog2024())
	start := date(2024, time.January, 1)
	for i := 0; i < 40; i++ {
		end := start.AddDays(i)
		got := cal.WorkingDays(start, end)
		assert.LessOrEqual(t, got, i+1)
		assert.GreaterOrEqual(t, got, 0)
	}
}

func TestWorkingDays_PackageLevelMatchesCalendar(t *testing.T) {
	holidays := catalog2024()
	start, end := date(2024, time.April, 29), date(2024, time.May, 3)
	assert.Equal(t, timeoff.NewCalendar(holidays).WorkingDays(start, end), timeoff.WorkingDays(start, end, holidays))
	assert.Equal(t, 4, timeoff.WorkingDays(start, end, holidays))
}

func TestWorkingDates_Listed(t *testing.T) {
	cal := timeoff.NewCalendar(catalog2024())
	dates := cal.WorkingDates(date(2024, time.April, 30), date(2024, time.May, 2))
	require.Len(t, dates, 2)
	assert.Equal(t, "2024-04-30", dates[0].String())
	assert.Equal(t, "2024-05-02", dates[1].String())
}

// =============================================================================
// OVERLAPPING HOLIDAYS
// =============================================================================

func TestOverlappingHolidays_CatalogOrder(t *testing.T) {
	holidays := []timeoff.Holiday{
		{ID: "late", Name: "Late", Date: date(2024, time.May, 23), Type: timeoff.HolidayPublic},
		{ID: "early", Name: "Early", Date: date(2024, time.May, 21), Type: timeoff.HolidayOptional},
		{ID: "outside", Name: "Outside", Date: date(2024, time.June, 3), Type: timeoff.HolidayPublic},
	}

	got := timeoff.OverlappingHolidays(date(2024, time.May, 20), date(2024, time.May, 24), holidays)
	require.Len(t, got, 2)
	assert.Equal(t, "late", got[0].ID)
	assert.Equal(t, "early", got[1].ID)
}

func TestOverlappingHolidays_WeekendHolidayIncluded(t *testing.T) {
	cal := timeoff.NewCalendar([]timeoff.Holiday{
		{ID: "sat", Name: "Saturday Fair", Date: date(2024, time.May, 25), Type: timeoff.HolidayOptional},
	})
	got := cal.OverlappingHolidays(date(2024, time.May, 20), date(2024, time.May, 26))
	require.Len(t, got, 1)
	assert.Equal(t, 5, cal.WorkingDays(date(2024, time.May, 20), date(2024, time.May, 26)))
}

func TestOverlappingHolidays_EmptyIsNotNil(t *testing.T) {
	cal := timeoff.NewCalendar(catalog2024())
	got := cal.OverlappingHolidays(date(2024, time.May, 24), date(2024, time.May, 20))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
