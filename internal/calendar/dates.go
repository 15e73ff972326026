package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for every date exchanged by the engine.
const DateLayout = "2006-01-02"

// Date returns midnight UTC on the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Normalize drops the time of day and location, keeping the calendar date.
func Normalize(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysBetween returns the number of calendar days from start to end (negative if end is earlier).
func DaysBetween(start, end time.Time) int {
	return int(Normalize(end).Sub(Normalize(start)).Hours() / 24)
}

// DaysInMonth returns the length of the month containing t.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// EndOfMonth returns the last calendar day of the month containing t.
func EndOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), DaysInMonth(t.Year(), t.Month()))
}

func IsEndOfMonth(t time.Time) bool {
	return t.Day() == DaysInMonth(t.Year(), t.Month())
}

// AddMonths behaves like Excel's EDATE: the day of month is clamped to the
// target month's length instead of overflowing into the following month.
func AddMonths(t time.Time, months int) time.Time {
	first := Date(t.Year(), t.Month(), 1).AddDate(0, months, 0)
	day := t.Day()
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date(first.Year(), first.Month(), day)
}

// MonthsBetween returns the number of whole months from start to end.
func MonthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if months > 0 && AddMonths(start, months).After(end) {
		months--
	}
	if months < 0 && AddMonths(start, months).Before(end) {
		months++
	}
	return months
}

// MinDate and MaxDate return the earlier and later of two dates.
func MinDate(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func MaxDate(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
