package bond

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/daycount"
	"benritz/bondcalc/internal/schedule"
	"benritz/bondcalc/internal/types"
)

func d(y int, m time.Month, day int) time.Time {
	return calendar.Date(y, m, day)
}

// twentyYear is a 5% semiannual ACT/ACT bond issued 2019-01-01, maturing 2039-01-01.
func twentyYear() Descriptor {
	return Descriptor{
		Code:         "111111.IB",
		IssueDate:    d(2019, 1, 1),
		MaturityDate: d(2039, 1, 1),
		CouponRate:   0.05,
		TenorMonths:  6,
		DayCount:     daycount.ActualActual,
		FaceValue:    100,
	}
}

func mustBond(t *testing.T, desc Descriptor, opts ...Option) *Bond {
	t.Helper()
	b, err := New(desc, opts...)
	require.NoError(t, err)
	return b
}

func TestNewCashFlows(t *testing.T) {
	b := mustBond(t, twentyYear())

	cfs := b.CashFlows()
	require.Len(t, cfs, 40)
	assert.Equal(t, d(2019, 7, 1), cfs[0].Date)
	assert.Equal(t, d(2039, 1, 1), cfs[39].Date)

	for i, cf := range cfs {
		assert.InDelta(t, 2.5, cf.Coupon, 1e-12, "coupon %d", i)
		if i < len(cfs)-1 {
			assert.Zero(t, cf.Principal)
		}
	}
	assert.Equal(t, 100.0, cfs[39].Principal)
	assert.InDelta(t, 102.5, cfs[39].Amount(), 1e-12)

	assert.Equal(t, 2, b.Frequency())
	assert.Len(t, b.Schedule(), 41)
}

func TestNewDefaultsFaceValue(t *testing.T) {
	desc := twentyYear()
	desc.FaceValue = 0
	b := mustBond(t, desc)
	assert.Equal(t, DefaultFaceValue, b.FaceValue())
}

func TestNewInvalidDescriptor(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Descriptor)
	}{
		{"issue after maturity", func(d *Descriptor) { d.IssueDate, d.MaturityDate = d.MaturityDate, d.IssueDate }},
		{"issue equals maturity", func(d *Descriptor) { d.MaturityDate = d.IssueDate }},
		{"tenor does not divide twelve", func(d *Descriptor) { d.TenorMonths = 5 }},
		{"negative coupon", func(d *Descriptor) { d.CouponRate = -0.01 }},
		{"negative settlement lag", func(d *Descriptor) { d.SettlementDays = -1 }},
		{"missing issue date", func(d *Descriptor) { d.IssueDate = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := twentyYear()
			tt.mutate(&desc)
			_, err := New(desc)
			require.ErrorIs(t, err, types.ErrInvalidDescriptor)
		})
	}
}

func TestAccruedInterest(t *testing.T) {
	b := mustBond(t, twentyYear())

	ai, err := b.AccruedInterest(d(2021, 3, 15))
	require.NoError(t, err)
	assert.InDelta(t, 5.0*73.0/362.0, ai, 1e-12)

	ai, err = b.AccruedInterest(d(2020, 1, 1))
	require.NoError(t, err)
	assert.Zero(t, ai)

	ai, err = b.AccruedInterest(d(2039, 1, 1))
	require.NoError(t, err)
	assert.Zero(t, ai)
}

func TestAccruedInterestZeroOnScheduleDates(t *testing.T) {
	b := mustBond(t, twentyYear())

	for _, date := range b.Schedule() {
		ai, err := b.AccruedInterest(date)
		require.NoError(t, err)
		assert.Zero(t, ai, calendar.FormatDate(date))
	}
}

func TestAccruedInterestMonotonic(t *testing.T) {
	for _, dc := range []daycount.Convention{daycount.ActualActual, daycount.Thirty360, daycount.Actual365Fixed} {
		t.Run(dc.String(), func(t *testing.T) {
			desc := twentyYear()
			desc.DayCount = dc
			b := mustBond(t, desc)

			prev := -1.0
			for date := d(2021, 1, 1); date.Before(d(2021, 7, 1)); date = date.AddDate(0, 0, 1) {
				ai, err := b.AccruedInterest(date)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, ai, prev, calendar.FormatDate(date))
				prev = ai
			}
		})
	}
}

func TestAccruedInterestOutOfRange(t *testing.T) {
	b := mustBond(t, twentyYear())

	_, err := b.AccruedInterest(d(2018, 12, 31))
	require.ErrorIs(t, err, types.ErrOutOfRange)

	_, err = b.AccruedInterest(d(2039, 1, 2))
	require.ErrorIs(t, err, types.ErrOutOfRange)

	_, err = b.DirtyPrice(100, d(2018, 6, 1))
	require.ErrorIs(t, err, types.ErrOutOfRange)
}

func TestAccruedInterestThirty360(t *testing.T) {
	desc := twentyYear()
	desc.DayCount = daycount.Thirty360
	b := mustBond(t, desc)

	ai, err := b.AccruedInterest(d(2021, 3, 15))
	require.NoError(t, err)
	assert.InDelta(t, 5.0*74.0/360.0, ai, 1e-12)

	for _, cf := range b.CashFlows() {
		assert.InDelta(t, 2.5, cf.Coupon, 1e-12)
	}
}

func TestDirtyAndCleanPrice(t *testing.T) {
	b := mustBond(t, twentyYear())

	dirty, err := b.DirtyPrice(102, d(2021, 3, 15))
	require.NoError(t, err)
	assert.InDelta(t, 102+365.0/362.0, dirty, 1e-12)

	clean, err := b.CleanPrice(dirty, d(2021, 3, 15))
	require.NoError(t, err)
	assert.InDelta(t, 102, clean, 1e-12)
}

func TestCouponsReceivedBetween(t *testing.T) {
	b := mustBond(t, twentyYear())

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected float64
	}{
		{"holding window", d(2020, 1, 1), d(2021, 3, 15), 5.0},
		{"excludes start includes end", d(2020, 7, 1), d(2021, 1, 1), 2.5},
		{"empty window", d(2020, 7, 2), d(2020, 12, 31), 0},
		{"same day", d(2020, 7, 1), d(2020, 7, 1), 0},
		{"includes redemption", d(2038, 12, 1), d(2039, 1, 1), 102.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.CouponsReceivedBetween(tt.start, tt.end)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-12)
		})
	}

	_, err := b.CouponsReceivedBetween(d(2021, 3, 15), d(2020, 1, 1))
	require.ErrorIs(t, err, types.ErrInvalidRange)
}

func TestYearFraction(t *testing.T) {
	b := mustBond(t, twentyYear())

	yf, err := b.YearFraction(d(2020, 1, 1), d(2021, 3, 15))
	require.NoError(t, err)
	assert.InDelta(t, 1+73.0/362.0, yf, 1e-12)

	yf, err = b.YearFraction(d(2020, 1, 1), d(2021, 1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, yf, 1e-15)

	// notional periods before issue and after maturity
	yf, err = b.YearFraction(d(2018, 7, 1), d(2019, 7, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, yf, 1e-15)

	yf, err = b.YearFraction(d(2038, 7, 1), d(2040, 1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, yf, 1e-15)

	_, err = b.YearFraction(d(2021, 1, 1), d(2020, 1, 1))
	require.ErrorIs(t, err, types.ErrInvalidRange)
}

func TestShortStub(t *testing.T) {
	desc := twentyYear()
	desc.IssueDate = d(2019, 3, 15)
	desc.MaturityDate = d(2021, 1, 1)
	b := mustBond(t, desc)

	cfs := b.CashFlows()
	require.Len(t, cfs, 4)
	assert.Equal(t, d(2019, 7, 1), cfs[0].Date)
	assert.InDelta(t, 5.0*108.0/362.0, cfs[0].Coupon, 1e-12)
	assert.InDelta(t, 2.5, cfs[1].Coupon, 1e-12)

	ai, err := b.AccruedInterest(d(2019, 5, 1))
	require.NoError(t, err)
	assert.InDelta(t, 5.0*47.0/362.0, ai, 1e-12)
}

func TestLongStub(t *testing.T) {
	desc := twentyYear()
	desc.IssueDate = d(2019, 3, 15)
	desc.MaturityDate = d(2021, 1, 1)
	b := mustBond(t, desc, WithStubPolicy(schedule.LongStub))

	cfs := b.CashFlows()
	require.Len(t, cfs, 3)
	assert.Equal(t, d(2020, 1, 1), cfs[0].Date)
	assert.InDelta(t, 5.0*(0.5+108.0/362.0), cfs[0].Coupon, 1e-12)

	_, err := New(desc, WithStubPolicy(schedule.NoStub))
	require.ErrorIs(t, err, types.ErrInvalidDescriptor)
}

func TestSettlementDate(t *testing.T) {
	desc := twentyYear()
	desc.SettlementDays = 1
	b := mustBond(t, desc, WithCalendar(calendar.New("Test", d(2021, 3, 16))))

	assert.Equal(t, d(2021, 3, 15), b.SettlementDate(d(2021, 3, 12)))
	assert.Equal(t, d(2021, 3, 17), b.SettlementDate(d(2021, 3, 15)))
}

func TestCouponDates(t *testing.T) {
	b := mustBond(t, twentyYear())

	next, err := b.NextCouponDate(d(2021, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, d(2021, 7, 1), next)

	next, err = b.NextCouponDate(d(2021, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, d(2021, 7, 1), next)

	prev, err := b.PreviousCouponDate(d(2021, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, d(2021, 1, 1), prev)

	_, err = b.NextCouponDate(d(2039, 1, 1))
	require.ErrorIs(t, err, types.ErrOutOfRange)
}

func TestQueriesDoNotMutate(t *testing.T) {
	b := mustBond(t, twentyYear())
	before := b.CashFlows()

	_, _ = b.AccruedInterest(d(2010, 1, 1))
	_, _ = b.Yield(-50, d(2021, 3, 15))
	_, _ = b.CouponsReceivedBetween(d(2022, 1, 1), d(2021, 1, 1))

	assert.Equal(t, before, b.CashFlows())
}

func TestConventionRollsCouponDates(t *testing.T) {
	// 2020-02-01 and 2020-08-01 are Saturdays.
	desc := twentyYear()
	desc.IssueDate, desc.MaturityDate = d(2019, 8, 1), d(2021, 2, 1)

	b := mustBond(t, desc, WithConvention(calendar.Following))
	assert.Equal(t, []time.Time{d(2019, 8, 1), d(2020, 2, 3), d(2020, 8, 3), d(2021, 2, 1)}, b.Schedule())

	flows := b.CashFlows()
	require.Len(t, flows, 3)
	assert.Equal(t, d(2020, 2, 3), flows[0].Date)
	assert.Equal(t, d(2021, 2, 1), flows[2].Date)

	unadjusted := mustBond(t, desc)
	assert.Equal(t, d(2020, 2, 1), unadjusted.CashFlows()[0].Date)
}
