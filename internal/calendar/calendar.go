package calendar

import (
	"fmt"
	"strings"
	"time"

	"benritz/bondcalc/internal/types"
)

// BusinessDayConvention controls how a date falling on a holiday is rolled.
type BusinessDayConvention int

const (
	Unadjusted BusinessDayConvention = iota
	Following
	ModifiedFollowing
	Preceding
	ModifiedPreceding
)

func (c BusinessDayConvention) String() string {
	switch c {
	case Unadjusted:
		return "Unadjusted"
	case Following:
		return "Following"
	case ModifiedFollowing:
		return "ModifiedFollowing"
	case Preceding:
		return "Preceding"
	case ModifiedPreceding:
		return "ModifiedPreceding"
	default:
		return fmt.Sprintf("BusinessDayConvention(%d)", int(c))
	}
}

// ParseBusinessDayConvention accepts the names returned by String, case-insensitively.
func ParseBusinessDayConvention(s string) (BusinessDayConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unadjusted":
		return Unadjusted, nil
	case "following", "f":
		return Following, nil
	case "modifiedfollowing", "modified following", "mf":
		return ModifiedFollowing, nil
	case "preceding", "p":
		return Preceding, nil
	case "modifiedpreceding", "modified preceding", "mp":
		return ModifiedPreceding, nil
	}
	return Unadjusted, fmt.Errorf("%w: %q", types.ErrUnknownConvention, s)
}

// Calendar is a weekend plus holiday-list business day calendar.
// A Calendar is read-only once built and can be shared between goroutines.
type Calendar struct {
	Name     string
	holidays map[string]struct{}
}

// New builds a calendar from an explicit holiday list.
func New(name string, holidays ...time.Time) *Calendar {
	c := &Calendar{
		Name:     name,
		holidays: make(map[string]struct{}, len(holidays)),
	}
	for _, h := range holidays {
		c.holidays[FormatDate(h)] = struct{}{}
	}
	return c
}

// WeekendsOnly treats every Saturday and Sunday as a holiday and nothing else.
func WeekendsOnly() *Calendar {
	return New("WeekendsOnly")
}

func (c *Calendar) IsHoliday(t time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.holidays[FormatDate(t)]
	return ok
}

// IsBusinessDay checks weekends and the holiday set.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !c.IsHoliday(t)
}

// Adjust rolls t onto a business day according to the convention.
func (c *Calendar) Adjust(t time.Time, convention BusinessDayConvention) time.Time {
	switch convention {
	case Following:
		return c.following(t)
	case ModifiedFollowing:
		d := c.following(t)
		if d.Month() != t.Month() {
			return c.preceding(t)
		}
		return d
	case Preceding:
		return c.preceding(t)
	case ModifiedPreceding:
		d := c.preceding(t)
		if d.Month() != t.Month() {
			return c.following(t)
		}
		return d
	default:
		return t
	}
}

func (c *Calendar) following(t time.Time) time.Time {
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func (c *Calendar) preceding(t time.Time) time.Time {
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// AddBusinessDays advances n business days (n can be negative). With n == 0
// the date is rolled forward onto a business day.
func (c *Calendar) AddBusinessDays(t time.Time, n int) time.Time {
	if n == 0 {
		return c.following(t)
	}
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		t = t.AddDate(0, 0, step)
		if c.IsBusinessDay(t) {
			n -= step
		}
	}
	return t
}
