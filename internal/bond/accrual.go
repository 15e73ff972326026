package bond

import (
	"fmt"
	"time"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/daycount"
	"benritz/bondcalc/internal/schedule"
	"benritz/bondcalc/internal/types"
)

// periodFraction returns the accrual fraction from `from` to `to`, both inside
// schedule period i. The stub period of an ICMA bond is measured against
// notional regular periods rolled from its regular end.
func (b *Bond) periodFraction(i int, from, to time.Time) (float64, error) {
	if !b.dayCount.UsesReferencePeriod() {
		return b.dayCount.YearFraction(from, to)
	}

	start, end := b.schedule.Dates[i], b.schedule.Dates[i+1]
	if !b.schedule.IsIrregular(i) {
		return b.dayCount.AccrualFraction(from, to, daycount.Period{
			Start:     start,
			End:       end,
			Frequency: b.schedule.Frequency(),
		})
	}

	if b.schedule.Rule == schedule.Forward {
		return b.notionalFraction(from, to, start, 1)
	}
	return b.notionalFraction(from, to, end, -1)
}

// notionalFraction sums ICMA fractions over regular periods rolled from anchor,
// backwards when dir < 0 and forwards otherwise.
func (b *Bond) notionalFraction(from, to, anchor time.Time, dir int) (float64, error) {
	tenor := b.schedule.TenorMonths
	freq := b.schedule.Frequency()

	total := 0.0
	for k := 1; ; k++ {
		var ref daycount.Period
		if dir < 0 {
			ref = daycount.Period{
				Start: calendar.AddMonths(anchor, -k*tenor),
				End:   calendar.AddMonths(anchor, -(k-1)*tenor),
			}
		} else {
			ref = daycount.Period{
				Start: calendar.AddMonths(anchor, (k-1)*tenor),
				End:   calendar.AddMonths(anchor, k*tenor),
			}
		}
		ref.Frequency = freq

		s, e := calendar.MaxDate(from, ref.Start), calendar.MinDate(to, ref.End)
		if e.After(s) {
			frac, err := b.dayCount.AccrualFraction(s, e, ref)
			if err != nil {
				return 0, err
			}
			total += frac
		}

		if dir < 0 && !ref.Start.After(from) {
			break
		}
		if dir >= 0 && !ref.End.Before(to) {
			break
		}
	}
	return total, nil
}

// YearFraction measures the time between two dates in years under the bond's
// day count. For ICMA the fraction is accumulated period by period over the
// schedule, and over notional periods before issue or after maturity.
func (b *Bond) YearFraction(start, end time.Time) (float64, error) {
	start, end = calendar.Normalize(start), calendar.Normalize(end)
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s is after %s", types.ErrInvalidRange, calendar.FormatDate(start), calendar.FormatDate(end))
	}
	if !b.dayCount.UsesReferencePeriod() {
		return b.dayCount.YearFraction(start, end)
	}

	issue, maturity := b.IssueDate(), b.MaturityDate()
	total := 0.0

	if start.Before(issue) {
		frac, err := b.notionalFraction(start, calendar.MinDate(end, issue), issue, -1)
		if err != nil {
			return 0, err
		}
		total += frac
	}

	for i, p := range b.schedule.Periods() {
		s, e := calendar.MaxDate(start, p.Start), calendar.MinDate(end, p.End)
		if !e.After(s) {
			continue
		}
		frac, err := b.periodFraction(i, s, e)
		if err != nil {
			return 0, err
		}
		total += frac
	}

	if end.After(maturity) {
		frac, err := b.notionalFraction(calendar.MaxDate(start, maturity), end, maturity, 1)
		if err != nil {
			return 0, err
		}
		total += frac
	}

	return total, nil
}
