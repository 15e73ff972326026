package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/types"
)

const dividendDataPage = `<html><body>
<label>Last updated: {{updated}}</label>
<div id="mainbody"><table>
<tr><th>Ticker</th><th>Name</th><th>Coupon</th><th>Maturity</th><th>Years</th><th>Price</th><th>Yield</th></tr>
<tr><td>TR25</td><td>Treasury 3.5% 2025</td><td>3.5%</td><td>22-Jan-2025</td><td>3.9</td><td>£110.25</td><td>0.15%</td></tr>
<tr><td>T26</td><td>Treasury 0.125% 2026</td><td>0.125%</td><td>30-Jan-2026</td><td>4.9</td><td>n/a</td><td>0.30%</td></tr>
</table></div>
</body></html>`

func dividendDataServer(t *testing.T, updated string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, strings.ReplaceAll(dividendDataPage, "{{updated}}", updated))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDividendDataScrape(t *testing.T) {
	srv := dividendDataServer(t, "15 Mar 2021")
	c := NewDividendDataCollector(srv.URL, zerolog.Nop())
	date := calendar.Date(2021, 3, 15)

	scraped, err := c.Scrape(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, scraped.Rows, 1)
	require.Len(t, scraped.Failures, 1)

	row := scraped.Rows[0]
	assert.Equal(t, "TR25", row.Ticker)
	assert.InDelta(t, 0.035, row.Coupon, 1e-12)
	assert.Equal(t, calendar.Date(2025, 1, 22), row.MaturityDate)
	assert.Equal(t, 110.25, row.CleanPrice)
	assert.InDelta(t, 0.0015, row.Yield, 1e-12)

	assert.Equal(t, "T26", scraped.Failures[0].Code)
	assert.ErrorIs(t, scraped.Failures[0].Err, types.ErrInvalidCleanPrice)
}

func TestDividendDataQuotesMatchByCouponAndMaturity(t *testing.T) {
	srv := dividendDataServer(t, "15 Mar 2021")
	c := NewDividendDataCollector(srv.URL, zerolog.Nop())
	date := calendar.Date(2021, 3, 15)

	quotes, err := c.Quotes(context.Background(), testDescriptor(), date)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "GB00BTHH2R79", quotes[0].Code)
	assert.Equal(t, SourceDividendData, quotes[0].Venue)
	assert.Equal(t, 110.25, quotes[0].CleanPrice)

	other := testDescriptor()
	other.CouponRate = 0.04
	_, err = c.Quotes(context.Background(), other, date)
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
}

func TestDividendDataStalePage(t *testing.T) {
	srv := dividendDataServer(t, "12 Mar 2021")
	c := NewDividendDataCollector(srv.URL, zerolog.Nop())

	_, err := c.Scrape(context.Background(), calendar.Date(2021, 3, 15))
	assert.ErrorIs(t, err, types.ErrDataUnavailable)
}

func TestDividendDataMissingDate(t *testing.T) {
	srv := dividendDataServer(t, "")
	c := NewDividendDataCollector(srv.URL, zerolog.Nop())

	_, err := c.Scrape(context.Background(), calendar.Date(2021, 3, 15))
	assert.ErrorIs(t, err, types.ErrMissingSettlementDate)
}
