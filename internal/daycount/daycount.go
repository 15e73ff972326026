package daycount

import (
	"fmt"
	"strings"
	"time"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/types"
)

// Convention is a day-count convention. The set is closed: adding a
// convention means adding a constant and its cases below.
type Convention int

const (
	// ActualActual is the ICMA (ISMA) flavour used for bond coupons: actual days
	// divided by the length of the enclosing coupon period times the frequency.
	ActualActual Convention = iota
	ActualActualISDA
	// Thirty360 is the US bond basis with the end-of-February rules.
	Thirty360
	Thirty360European
	Actual360
	Actual365Fixed
)

// Period is the regular coupon period used as reference by ActualActual.
// The zero Period means no reference is available.
type Period struct {
	Start     time.Time
	End       time.Time
	Frequency int
}

func (p Period) IsZero() bool {
	return p.Start.IsZero() || p.End.IsZero() || p.Frequency <= 0
}

func (c Convention) String() string {
	switch c {
	case ActualActual:
		return "ACT/ACT"
	case ActualActualISDA:
		return "ACT/ACT ISDA"
	case Thirty360:
		return "30/360"
	case Thirty360European:
		return "30E/360"
	case Actual360:
		return "ACT/360"
	case Actual365Fixed:
		return "ACT/365F"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// Parse maps a reference-data label to a convention.
func Parse(label string) (Convention, error) {
	s := strings.ToUpper(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, "ACTUAL", "ACT")
	s = strings.ReplaceAll(s, " / ", "/")

	switch s {
	case "ACT/ACT", "ACT/ACT ICMA", "ACT/ACT ISMA", "ACT/ACT (ICMA)", "ACT/ACT (ISMA)", "ACT/ACT BOND":
		return ActualActual, nil
	case "ACT/ACT ISDA", "ACT/ACT (ISDA)", "ACT/ACT HISTORICAL", "ACT/365 ISDA":
		return ActualActualISDA, nil
	case "30/360", "30/360 US", "30/360 BOND BASIS", "30U/360", "BOND BASIS":
		return Thirty360, nil
	case "30E/360", "30/360 EUROPEAN", "30E/360 ISDA", "EUROBOND BASIS":
		return Thirty360European, nil
	case "ACT/360", "A/360":
		return Actual360, nil
	case "ACT/365", "ACT/365F", "ACT/365 FIXED", "A/365F", "A/365":
		return Actual365Fixed, nil
	}
	return ActualActual, fmt.Errorf("%w: %q", types.ErrUnknownDayCount, label)
}

// UsesReferencePeriod reports whether coupon period boundaries change the result.
func (c Convention) UsesReferencePeriod() bool {
	return c == ActualActual
}

// DayCount returns the number of days between start and end under the convention.
func (c Convention) DayCount(start, end time.Time) int {
	switch c {
	case Thirty360:
		return thirty360US(start, end)
	case Thirty360European:
		return thirty360European(start, end)
	default:
		return calendar.DaysBetween(start, end)
	}
}

// YearFraction returns the fraction of a year between start and end.
// ActualActual without a reference period uses the ISDA calendar-year split.
func (c Convention) YearFraction(start, end time.Time) (float64, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s is after %s", types.ErrInvalidRange, calendar.FormatDate(start), calendar.FormatDate(end))
	}

	switch c {
	case ActualActual, ActualActualISDA:
		return actualActualISDA(start, end), nil
	case Thirty360, Thirty360European:
		return float64(c.DayCount(start, end)) / 360.0, nil
	case Actual360:
		return float64(calendar.DaysBetween(start, end)) / 360.0, nil
	case Actual365Fixed:
		return float64(calendar.DaysBetween(start, end)) / 365.0, nil
	}
	return 0, fmt.Errorf("%w: %s", types.ErrUnknownDayCount, c)
}

// AccrualFraction returns the accrual fraction between start and end, where
// both lie within the reference coupon period ref. Conventions that do not use
// the reference period return their year fraction.
func (c Convention) AccrualFraction(start, end time.Time, ref Period) (float64, error) {
	if c != ActualActual || ref.IsZero() {
		return c.YearFraction(start, end)
	}
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s is after %s", types.ErrInvalidRange, calendar.FormatDate(start), calendar.FormatDate(end))
	}

	refDays := calendar.DaysBetween(ref.Start, ref.End)
	if refDays <= 0 {
		return 0, fmt.Errorf("%w: empty reference period", types.ErrInvalidRange)
	}
	return float64(calendar.DaysBetween(start, end)) / (float64(refDays) * float64(ref.Frequency)), nil
}

func actualActualISDA(start, end time.Time) float64 {
	if !start.Before(end) {
		return 0
	}
	y1, y2 := start.Year(), end.Year()
	if y1 == y2 {
		return float64(calendar.DaysBetween(start, end)) / daysInYear(y1)
	}

	sum := float64(y2 - y1 - 1)
	sum += float64(calendar.DaysBetween(start, calendar.Date(y1+1, time.January, 1))) / daysInYear(y1)
	sum += float64(calendar.DaysBetween(calendar.Date(y2, time.January, 1), end)) / daysInYear(y2)
	return sum
}

func daysInYear(year int) float64 {
	if calendar.IsLeapYear(year) {
		return 366
	}
	return 365
}

func isLastOfFebruary(t time.Time) bool {
	return t.Month() == time.February && calendar.IsEndOfMonth(t)
}

func thirty360US(start, end time.Time) int {
	d1, d2 := start.Day(), end.Day()

	if isLastOfFebruary(start) && isLastOfFebruary(end) {
		d2 = 30
	}
	if isLastOfFebruary(start) {
		d1 = 30
	}
	if d2 == 31 && d1 >= 30 {
		d2 = 30
	}
	if d1 == 31 {
		d1 = 30
	}

	return thirty360Days(start, end, d1, d2)
}

func thirty360European(start, end time.Time) int {
	d1, d2 := min(start.Day(), 30), min(end.Day(), 30)
	return thirty360Days(start, end, d1, d2)
}

func thirty360Days(start, end time.Time, d1, d2 int) int {
	y1, m1 := start.Year(), int(start.Month())
	y2, m2 := end.Year(), int(end.Month())
	return 360*(y2-y1) + 30*(m2-m1) + (d2 - d1)
}
