package schedule

import (
	"fmt"
	"strings"
	"time"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/types"
)

// Rule selects the anchor from which coupon dates are rolled.
type Rule int

const (
	// Backward rolls from maturity towards issue; an irregular period ends up first.
	Backward Rule = iota
	// Forward rolls from issue towards maturity; an irregular period ends up last.
	Forward
)

func (r Rule) String() string {
	if r == Forward {
		return "Forward"
	}
	return "Backward"
}

// StubPolicy decides what happens when the tenor does not divide the life of the bond.
type StubPolicy int

const (
	ShortStub StubPolicy = iota
	LongStub
	NoStub
)

func (s StubPolicy) String() string {
	switch s {
	case LongStub:
		return "long"
	case NoStub:
		return "none"
	default:
		return "short"
	}
}

func ParseStubPolicy(s string) (StubPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "short":
		return ShortStub, nil
	case "long":
		return LongStub, nil
	case "none":
		return NoStub, nil
	}
	return ShortStub, fmt.Errorf("%w: %q", types.ErrUnknownStubPolicy, s)
}

// Params describes a coupon schedule.
type Params struct {
	Issue                 time.Time
	Maturity              time.Time
	TenorMonths           int
	Calendar              *calendar.Calendar
	Convention            calendar.BusinessDayConvention
	TerminationConvention calendar.BusinessDayConvention
	Rule                  Rule
	EndOfMonth            bool
	Stub                  StubPolicy
}

// Period is one accrual period of a schedule.
type Period struct {
	Start   time.Time
	End     time.Time
	Regular bool
}

// Schedule is the ordered set of coupon dates, issue date first and maturity last.
type Schedule struct {
	Dates       []time.Time
	TenorMonths int
	Rule        Rule
	// Irregular is set when the first (Backward) or last (Forward) period is a stub.
	Irregular bool
}

// Frequency returns the number of coupon periods per year.
func (s *Schedule) Frequency() int {
	return 12 / s.TenorMonths
}

func (s *Schedule) Issue() time.Time {
	return s.Dates[0]
}

func (s *Schedule) Maturity() time.Time {
	return s.Dates[len(s.Dates)-1]
}

// Periods returns the accrual periods in date order.
func (s *Schedule) Periods() []Period {
	periods := make([]Period, 0, len(s.Dates)-1)
	for i := 1; i < len(s.Dates); i++ {
		periods = append(periods, Period{
			Start:   s.Dates[i-1],
			End:     s.Dates[i],
			Regular: !s.IsIrregular(i - 1),
		})
	}
	return periods
}

// IsIrregular reports whether period i (0-based) is the stub period.
func (s *Schedule) IsIrregular(i int) bool {
	if !s.Irregular {
		return false
	}
	if s.Rule == Forward {
		return i == len(s.Dates)-2
	}
	return i == 0
}

// ValidateTenor checks that the tenor gives a whole number of coupons per year.
func ValidateTenor(months int) error {
	if months <= 0 || 12%months != 0 {
		return fmt.Errorf("%w: tenor of %d months does not divide 12", types.ErrInvalidDescriptor, months)
	}
	return nil
}

// Generate builds the coupon schedule. Unadjusted dates are computed from the
// anchor (maturity for Backward, issue for Forward) with EDATE arithmetic so that
// day-of-month clamping never drifts from one period to the next.
func Generate(p Params) (*Schedule, error) {
	if p.Issue.IsZero() || p.Maturity.IsZero() {
		return nil, fmt.Errorf("%w: missing issue or maturity date", types.ErrInvalidDescriptor)
	}
	issue, maturity := calendar.Normalize(p.Issue), calendar.Normalize(p.Maturity)
	if !issue.Before(maturity) {
		return nil, fmt.Errorf("%w: issue date %s is not before maturity %s", types.ErrInvalidDescriptor, calendar.FormatDate(issue), calendar.FormatDate(maturity))
	}
	if err := ValidateTenor(p.TenorMonths); err != nil {
		return nil, err
	}

	var (
		dates     []time.Time
		irregular bool
	)
	switch p.Rule {
	case Forward:
		dates, irregular = forward(issue, maturity, p.TenorMonths, p.EndOfMonth)
	default:
		dates, irregular = backward(issue, maturity, p.TenorMonths, p.EndOfMonth)
	}

	if irregular {
		switch p.Stub {
		case NoStub:
			return nil, fmt.Errorf("%w: %d month tenor leaves an irregular period between %s and %s", types.ErrInvalidDescriptor, p.TenorMonths, calendar.FormatDate(issue), calendar.FormatDate(maturity))
		case LongStub:
			if len(dates) > 2 {
				if p.Rule == Forward {
					dates = append(dates[:len(dates)-2], dates[len(dates)-1])
				} else {
					dates = append(dates[:1], dates[2:]...)
				}
			}
		}
	}

	dates = adjust(dates, p)

	return &Schedule{
		Dates:       dates,
		TenorMonths: p.TenorMonths,
		Rule:        p.Rule,
		Irregular:   irregular,
	}, nil
}

func roll(anchor time.Time, months int, eom bool) time.Time {
	d := calendar.AddMonths(anchor, months)
	if eom && calendar.IsEndOfMonth(anchor) {
		d = calendar.EndOfMonth(d)
	}
	return d
}

func backward(issue, maturity time.Time, tenor int, eom bool) ([]time.Time, bool) {
	dates := []time.Time{maturity}
	irregular := true
	for i := 1; ; i++ {
		d := roll(maturity, -i*tenor, eom)
		if !d.After(issue) {
			irregular = !d.Equal(issue)
			break
		}
		dates = append(dates, d)
	}
	dates = append(dates, issue)

	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}
	return dates, irregular
}

func forward(issue, maturity time.Time, tenor int, eom bool) ([]time.Time, bool) {
	dates := []time.Time{issue}
	irregular := true
	for i := 1; ; i++ {
		d := roll(issue, i*tenor, eom)
		if !d.Before(maturity) {
			irregular = !d.Equal(maturity)
			break
		}
		dates = append(dates, d)
	}
	return append(dates, maturity), irregular
}

// adjust applies the business day conventions and drops dates that collapse
// onto their predecessor.
func adjust(dates []time.Time, p Params) []time.Time {
	cal := p.Calendar
	if cal == nil {
		cal = calendar.WeekendsOnly()
	}

	out := make([]time.Time, 0, len(dates))
	for i, d := range dates {
		convention := p.Convention
		if i == 0 || i == len(dates)-1 {
			convention = p.TerminationConvention
		}
		d = cal.Adjust(d, convention)
		if n := len(out); n > 0 && !d.After(out[n-1]) {
			if i == len(dates)-1 {
				out[n-1] = d
			}
			continue
		}
		out = append(out, d)
	}
	return out
}
