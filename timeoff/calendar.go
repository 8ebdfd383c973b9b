/*
calendar.go - Working-day arithmetic over a holiday catalog

PURPOSE:
  Counts the days a leave request actually costs: every date in the
  inclusive range except Saturdays, Sundays and catalog holidays.

RULES:
  - Range is inclusive of both ends
  - Saturday and Sunday are never working days
  - Public AND Optional holidays are both excluded
  - Two holidays on one date exclude that date once
  - end < start yields 0 (WorkingDays) or a ValidationError (WorkingDaysStrict)
  - WorkingDaysStrict also refuses ranges longer than MaxRangeDays

DATE MATCHING:
  Holidays match on calendar date only; the holiday type and name never
  change the count. The same rule drives OverlappingHolidays, so a date
  is reported as overlapping exactly when it was excluded as a holiday.

IMPLEMENTATION:
  Built on a rickar/cal business calendar with a Monday-Friday workweek.
  Each catalog entry becomes a one-year cal.Holiday pinned to its date.

SEE ALSO:
  - eligibility.go: uses the day count for submission checks
  - factory/policy.go: loads the holiday catalog
*/
package timeoff

import (
	"fmt"
	"time"

	"github.com/rickar/cal/v2"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayType string

const (
	HolidayPublic   HolidayType = "Public"
	HolidayOptional HolidayType = "Optional"
)

// Holiday is one entry of the company holiday catalog.
type Holiday struct {
	ID   string
	Name string
	Date generic.TimePoint
	Type HolidayType
}

func (t HolidayType) observance() cal.ObservanceType {
	if t == HolidayPublic {
		return cal.ObservancePublic
	}
	return cal.ObservanceOther
}

// =============================================================================
// CALENDAR
// =============================================================================

// Calendar answers working-day questions for one holiday catalog.
// It is immutable and safe for concurrent use.
type Calendar struct {
	holidays []Holiday
	business *cal.BusinessCalendar
}

// NewCalendar builds a calendar from a catalog. The catalog order is kept
// for OverlappingHolidays.
func NewCalendar(holidays []Holiday) *Calendar {
	business := cal.NewBusinessCalendar()
	business.Name = "lumina"
	for _, h := range holidays {
		business.AddHoliday(&cal.Holiday{
			Name:      h.Name,
			Type:      h.Type.observance(),
			Month:     h.Date.Month(),
			Day:       h.Date.Day(),
			StartYear: h.Date.Year(),
			EndYear:   h.Date.Year(),
			Func:      cal.CalcDayOfMonth,
		})
	}
	return &Calendar{
		holidays: append([]Holiday(nil), holidays...),
		business: business,
	}
}

// Holidays returns a copy of the catalog.
func (c *Calendar) Holidays() []Holiday {
	return append([]Holiday(nil), c.holidays...)
}

// IsWorkingDay reports whether d is a weekday that is not a holiday.
func (c *Calendar) IsWorkingDay(d generic.TimePoint) bool {
	return c.business.IsWorkday(calendarTime(d))
}

// WorkingDays counts working days in [start, end]. It returns 0 when end
// is before start.
func (c *Calendar) WorkingDays(start, end generic.TimePoint) int {
	return len(c.WorkingDates(start, end))
}

// WorkingDaysStrict is WorkingDays for callers that must reject a
// reversed or over-long range instead of counting it.
func (c *Calendar) WorkingDaysStrict(start, end generic.TimePoint) (int, error) {
	if err := ValidateRange(start, end); err != nil {
		return 0, err
	}
	return c.WorkingDays(start, end), nil
}

// WorkingDates lists the working days in [start, end] in order.
func (c *Calendar) WorkingDates(start, end generic.TimePoint) []generic.TimePoint {
	var dates []generic.TimePoint
	generic.EachDay(start, end, func(d generic.TimePoint) {
		if c.IsWorkingDay(d) {
			dates = append(dates, d)
		}
	})
	return dates
}

// OverlappingHolidays returns the catalog holidays dated in [start, end],
// in catalog order. Holidays on weekends are included.
func (c *Calendar) OverlappingHolidays(start, end generic.TimePoint) []Holiday {
	overlap := []Holiday{}
	for _, h := range c.holidays {
		if !h.Date.Before(start) && !h.Date.After(end) {
			overlap = append(overlap, h)
		}
	}
	return overlap
}

// MaxRangeDays is the longest inclusive range one request may span.
const MaxRangeDays = 366

// ValidateRange rejects end-before-start ranges and ranges spanning more
// than MaxRangeDays calendar days with a ValidationError.
func ValidateRange(start, end generic.TimePoint) error {
	if end.Before(start) {
		return &generic.ValidationError{
			Field:   "end_date",
			Code:    generic.CodeInvalidRange,
			Message: fmt.Sprintf("end date %s is before start date %s", end, start),
		}
	}
	if span := generic.DaysBetween(start, end) + 1; span > MaxRangeDays {
		return &generic.ValidationError{
			Field:   "end_date",
			Code:    generic.CodeRangeTooLong,
			Message: fmt.Sprintf("range %s..%s spans %d days, limit is %d", start, end, span, MaxRangeDays),
		}
	}
	return nil
}

// WorkingDays counts working days in [start, end] over holidays.
func WorkingDays(start, end generic.TimePoint, holidays []Holiday) int {
	return NewCalendar(holidays).WorkingDays(start, end)
}

// OverlappingHolidays returns the holidays dated in [start, end].
func OverlappingHolidays(start, end generic.TimePoint, holidays []Holiday) []Holiday {
	return NewCalendar(holidays).OverlappingHolidays(start, end)
}

// calendarTime pins a date to noon UTC so no zone offset can move it onto
// a neighbouring day inside the business calendar.
func calendarTime(d generic.TimePoint) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.UTC)
}
