package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benritz/bondcalc/internal/types"
)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		date   time.Time
		months int
		want   time.Time
	}{
		{"plain", Date(2019, 1, 1), 6, Date(2019, 7, 1)},
		{"backwards", Date(2039, 1, 1), -6, Date(2038, 7, 1)},
		{"clamp to february", Date(2020, 8, 31), -6, Date(2020, 2, 29)},
		{"clamp non leap", Date(2021, 8, 31), 6, Date(2022, 2, 28)},
		{"clamp thirty", Date(2021, 3, 31), 3, Date(2021, 6, 30)},
		{"across years", Date(2019, 11, 15), 3, Date(2020, 2, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.date, tt.months))
		})
	}
}

func TestMonthsBetween(t *testing.T) {
	assert.Equal(t, 240, MonthsBetween(Date(2019, 1, 1), Date(2039, 1, 1)))
	assert.Equal(t, 5, MonthsBetween(Date(2019, 1, 15), Date(2019, 7, 1)))
	assert.Equal(t, 0, MonthsBetween(Date(2019, 1, 15), Date(2019, 1, 31)))
	assert.Equal(t, -6, MonthsBetween(Date(2019, 7, 1), Date(2019, 1, 1)))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 73, DaysBetween(Date(2021, 1, 1), Date(2021, 3, 15)))
	assert.Equal(t, 366, DaysBetween(Date(2020, 1, 1), Date(2021, 1, 1)))
	assert.Equal(t, -1, DaysBetween(Date(2021, 1, 2), Date(2021, 1, 1)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2021-03-15")
	require.NoError(t, err)
	assert.Equal(t, Date(2021, 3, 15), d)
	assert.Equal(t, "2021-03-15", FormatDate(d))

	_, err = ParseDate("15/03/2021")
	require.Error(t, err)
}

func TestEndOfMonth(t *testing.T) {
	assert.Equal(t, Date(2020, 2, 29), EndOfMonth(Date(2020, 2, 3)))
	assert.True(t, IsEndOfMonth(Date(2021, 2, 28)))
	assert.False(t, IsEndOfMonth(Date(2020, 2, 28)))
}

func TestCalendarAdjust(t *testing.T) {
	// 2021-05-01 is a Saturday, 2021-05-31 a Monday.
	cal := New("Test", Date(2021, 5, 31))

	assert.True(t, cal.IsHoliday(Date(2021, 5, 31)))
	assert.False(t, cal.IsBusinessDay(Date(2021, 5, 1)))
	assert.True(t, cal.IsBusinessDay(Date(2021, 5, 28)))

	sat := Date(2021, 5, 1)
	assert.Equal(t, sat, cal.Adjust(sat, Unadjusted))
	assert.Equal(t, Date(2021, 5, 3), cal.Adjust(sat, Following))
	assert.Equal(t, Date(2021, 4, 30), cal.Adjust(sat, Preceding))
	assert.Equal(t, Date(2021, 5, 3), cal.Adjust(sat, ModifiedPreceding))

	sun := Date(2021, 5, 30)
	assert.Equal(t, Date(2021, 6, 1), cal.Adjust(sun, Following))
	assert.Equal(t, Date(2021, 5, 28), cal.Adjust(sun, ModifiedFollowing))
}

func TestAddBusinessDays(t *testing.T) {
	cal := WeekendsOnly()

	fri := Date(2021, 3, 12)
	assert.Equal(t, Date(2021, 3, 15), cal.AddBusinessDays(fri, 1))
	assert.Equal(t, Date(2021, 3, 11), cal.AddBusinessDays(fri, -1))
	assert.Equal(t, fri, cal.AddBusinessDays(fri, 0))
	assert.Equal(t, Date(2021, 3, 15), cal.AddBusinessDays(Date(2021, 3, 13), 0))
}

func TestParseBusinessDayConvention(t *testing.T) {
	c, err := ParseBusinessDayConvention("Modified Following")
	require.NoError(t, err)
	assert.Equal(t, ModifiedFollowing, c)
	assert.Equal(t, "ModifiedFollowing", c.String())

	c, err = ParseBusinessDayConvention("")
	require.NoError(t, err)
	assert.Equal(t, Unadjusted, c)

	_, err = ParseBusinessDayConvention("nearest")
	require.ErrorIs(t, err, types.ErrUnknownConvention)
}
