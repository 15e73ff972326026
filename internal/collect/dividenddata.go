package collect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"benritz/bondcalc/internal/bond"
	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/types"
)

var (
	SourceDividendData = "DividendData"

	DefaultDividendDataURL = "https://www.dividenddata.co.uk/uk-gilts-prices-yields.py"
)

// DividendDataCollector scrapes delayed gilt prices. The page has no ISINs so
// its quotes are matched to descriptors by coupon and maturity.
type DividendDataCollector struct {
	url string
	log zerolog.Logger
}

func NewDividendDataCollector(url string, log zerolog.Logger) *DividendDataCollector {
	if url == "" {
		url = DefaultDividendDataURL
	}
	return &DividendDataCollector{url: url, log: log}
}

// DividendDataQuotes is the result of one scrape.
type DividendDataQuotes struct {
	Date     time.Time
	Rows     []DividendDataRow
	Failures []*Failure
}

type DividendDataRow struct {
	Ticker       string
	Desc         string
	Coupon       float64
	MaturityDate time.Time
	CleanPrice   float64
	Yield        float64
}

func (c *DividendDataCollector) Scrape(ctx context.Context, date time.Time) (*DividendDataQuotes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x := colly.NewCollector()

	// check page date matches requested date
	// the page is updated daily, but the data may not be available yet
	DATE_PREFIX := "Last updated: "
	var dataTs time.Time

	x.OnHTML("label", func(e *colly.HTMLElement) {
		text := strings.TrimSpace(e.Text)
		if strings.HasPrefix(text, DATE_PREFIX) {
			s := strings.TrimPrefix(text, DATE_PREFIX)
			dataTs, _ = time.Parse("02 Jan 2006", s)
		}
	})

	out := &DividendDataQuotes{Date: calendar.Normalize(date)}

	x.OnHTML("#mainbody tr", func(e *colly.HTMLElement) {
		row, err := c.readRow(e)
		if errors.Is(err, ErrInvalidRow) {
			return
		}
		if err != nil {
			out.Failures = append(out.Failures, &Failure{Code: row.Ticker, Err: err})
			return
		}
		out.Rows = append(out.Rows, *row)
	})

	c.log.Debug().Str("url", c.url).Msg("fetching prices")

	if err := x.Visit(c.url); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataUnavailable, err)
	}

	if dataTs.IsZero() {
		return nil, types.ErrMissingSettlementDate
	}

	if !dataTs.Equal(out.Date) {
		return nil, fmt.Errorf("%w: page is for %s", types.ErrDataUnavailable, calendar.FormatDate(dataTs))
	}

	return out, nil
}

// Quotes scrapes the page and returns the row matching desc.
func (c *DividendDataCollector) Quotes(ctx context.Context, desc bond.Descriptor, date time.Time) ([]types.Quote, error) {
	scraped, err := c.Scrape(ctx, date)
	if err != nil {
		return nil, err
	}
	return scraped.Quotes(ctx, desc, date)
}

func (c *DividendDataCollector) Source() string {
	return SourceDividendData
}

// Quotes matches desc against the scraped rows.
func (d *DividendDataQuotes) Quotes(ctx context.Context, desc bond.Descriptor, date time.Time) ([]types.Quote, error) {
	if !calendar.Normalize(date).Equal(d.Date) {
		return nil, fmt.Errorf("%w: %s prices are for %s", types.ErrDataUnavailable, SourceDividendData, calendar.FormatDate(d.Date))
	}

	for _, row := range d.Rows {
		if row.Ticker != desc.Code && !row.matches(desc) {
			continue
		}
		return []types.Quote{{
			Code:       desc.Code,
			Venue:      SourceDividendData,
			Date:       d.Date,
			CleanPrice: row.CleanPrice,
			Yield:      row.Yield,
		}}, nil
	}

	return nil, fmt.Errorf("%w: no %s quote for %s", types.ErrDataUnavailable, SourceDividendData, desc.Code)
}

func (r DividendDataRow) matches(desc bond.Descriptor) bool {
	return math.Abs(r.Coupon-desc.CouponRate) < 1e-9 &&
		calendar.Normalize(r.MaturityDate).Equal(calendar.Normalize(desc.MaturityDate))
}

var (
	DD_COL_TICKER            = 0
	DD_COL_DESC              = 1
	DD_COL_COUPON            = 2
	DD_COL_MATURITY_DATE     = 3
	DD_COL_MATURITY_DURATION = 4
	DD_COL_PRICE             = 5
	DD_COL_MATURITY_YIELD    = 6
)

func (c *DividendDataCollector) readRow(e *colly.HTMLElement) (*DividendDataRow, error) {
	row := &DividendDataRow{}
	cols := 0
	var rowErr error

	setError := func(err error) {
		if rowErr == nil {
			rowErr = err
		}
	}

	e.ForEach("td", func(col int, el *colly.HTMLElement) {
		cols++
		text := strings.TrimSpace(el.Text)

		switch col {
		case DD_COL_TICKER:
			row.Ticker = text
			if row.Ticker == "" {
				setError(types.ErrInvalidCode)
			}
		case DD_COL_DESC:
			row.Desc = text
			if row.Desc == "" {
				setError(types.ErrInvalidDesc)
			}
		case DD_COL_COUPON:
			s := strings.TrimSuffix(text, "%")
			if coupon, err := strconv.ParseFloat(s, 64); err == nil {
				row.Coupon = coupon / 100
			} else {
				setError(types.ErrInvalidCoupon)
			}
		case DD_COL_MATURITY_DATE:
			if ts, err := time.Parse("02-Jan-2006", text); err == nil {
				row.MaturityDate = ts
			} else {
				setError(types.ErrInvalidMaturityDate)
			}
		case DD_COL_MATURITY_DURATION:
			// ignore, calculated from maturity date
		case DD_COL_PRICE:
			s := strings.TrimPrefix(strings.TrimPrefix(text, "Â"), "£")
			if price, err := strconv.ParseFloat(s, 64); err == nil && price > 0 {
				row.CleanPrice = price
			} else {
				setError(types.ErrInvalidCleanPrice)
			}
		case DD_COL_MATURITY_YIELD:
			s := strings.TrimSuffix(text, "%")
			if y, err := strconv.ParseFloat(s, 64); err == nil {
				row.Yield = y / 100
			} else {
				setError(types.ErrInvalidYield)
			}
		}
	})

	// header rows use th
	if cols == 0 {
		return row, ErrInvalidRow
	}

	return row, rowErr
}
