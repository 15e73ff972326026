package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pbnjay/grate"
	"github.com/rs/zerolog"

	"benritz/bondcalc/internal/bond"
	"benritz/bondcalc/internal/daycount"
	"benritz/bondcalc/internal/types"
)

var SourceDMO = "DMO"

// DefaultDMOURL is the DMO data export endpoint.
var DefaultDMOURL = "https://www.dmo.gov.uk/umbraco/surface/DataExport/GetDataExport"

// Gilts pay semi-annually, accrue ACT/ACT and settle T+1.
const (
	giltTenorMonths    = 6
	giltSettlementDays = 1
)

// report column layouts
var (
	D1A_COL_NAME          = 0
	D1A_COL_ISIN          = 1
	D1A_COL_REDEMPTION    = 2
	D1A_COL_FIRST_ISSUE   = 3
	D1A_MIN_COLS          = 4
	D10B_COL_ISIN         = 0
	D10B_COL_NAME         = 1
	D10B_COL_CLEAN_PRICE  = 2
	D10B_COL_DIRTY_PRICE  = 3
	D10B_COL_YIELD        = 5
	D10B_COL_REDEMPTION   = 7
	D10B_MIN_COLS         = 8
	dmoReportDateLayouts  = []string{"02-Jan-2006", "02 Jan 2006", "2006-01-02", "02/01/2006"}
	couponPercentageRegex = regexp.MustCompile(`^(\d+(?:\s+\d+\/\d+)?|\d+\/\d+|\d+|\d+[¼½¾])(%)`)
)

type DMOCollector struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

type DMOOption func(*DMOCollector)

func WithDMOURL(u string) DMOOption {
	return func(c *DMOCollector) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(client *http.Client) DMOOption {
	return func(c *DMOCollector) {
		if client != nil {
			c.client = client
		}
	}
}

func WithDMOLogger(log zerolog.Logger) DMOOption {
	return func(c *DMOCollector) {
		c.log = log
	}
}

func NewDMOCollector(opts ...DMOOption) *DMOCollector {
	c := &DMOCollector{
		baseURL: DefaultDMOURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect downloads the gilts in issue report (D1A) for reference data and
// the daily prices report (D10B) for quotes.
// https://www.dmo.gov.uk/data/pdfdatareport?reportCode=D1A
// https://www.dmo.gov.uk/data/pdfdatareport?reportCode=D10B
func (c *DMOCollector) Collect(ctx context.Context, date time.Time) (*Snapshot, error) {
	snap := NewSnapshot(SourceDMO, date)

	err := c.readReport(ctx, "D1A", "", func(row []string) {
		desc, err := parseReferenceRow(row)
		switch {
		case err == nil:
			snap.AddDescriptor(*desc)
		case len(row) > D1A_COL_ISIN && isGiltISIN(row[D1A_COL_ISIN]) && !errors.Is(err, types.ErrUnsupportedBond):
			snap.AddFailure(strings.TrimSpace(row[D1A_COL_ISIN]), err)
		}
	})
	if err != nil {
		return nil, err
	}

	params := fmt.Sprintf("&Trade Date=%02d-%02d-%04d", date.Day(), date.Month(), date.Year())

	err = c.readReport(ctx, "D10B", params, func(row []string) {
		q, err := parsePriceRow(snap.Date, row)
		switch {
		case err == nil:
			snap.AddQuote(*q)
		case len(row) > D10B_COL_ISIN && isGiltISIN(row[D10B_COL_ISIN]) && !errors.Is(err, types.ErrUnsupportedBond):
			snap.AddFailure(strings.TrimSpace(row[D10B_COL_ISIN]), err)
		}
	})
	if err != nil {
		return nil, err
	}

	if len(snap.Descriptors) == 0 || len(snap.Prices) == 0 {
		return nil, types.ErrDataUnavailable
	}

	c.log.Debug().
		Int("descriptors", len(snap.Descriptors)).
		Int("quotes", len(snap.Prices)).
		Int("failures", len(snap.Failures)).
		Msg("collected DMO reports")

	return snap, nil
}

func (c *DMOCollector) Source() string {
	return SourceDMO
}

func (c *DMOCollector) readReport(ctx context.Context, reportCode, params string, onRow func(row []string)) error {
	path, err := c.download(ctx, reportCode, params)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	wb, err := grate.Open(path)
	if err != nil {
		return fmt.Errorf("open %s report: %w", reportCode, err)
	}
	defer wb.Close()

	sheets, err := wb.List()
	if err != nil {
		return err
	}
	for _, sheetName := range sheets {
		sheet, err := wb.Get(sheetName)
		if err != nil {
			return err
		}

		for sheet.Next() {
			onRow(sheet.Strings())
		}
	}

	return nil
}

func (c *DMOCollector) download(ctx context.Context, reportCode, params string) (string, error) {
	u := fmt.Sprintf("%s?reportCode=%s&exportFormatValue=xls", c.baseURL, reportCode)
	if params != "" {
		u += "&parameters=" + url.QueryEscape(params)
	}

	c.log.Debug().Str("url", u).Msg("fetching report")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s report: http %d", types.ErrDataUnavailable, reportCode, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "gilt-*.xls")
	if err != nil {
		return "", err
	}

	size, err := io.Copy(tmp, resp.Body)
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	c.log.Debug().Int64("bytes", size).Str("path", tmp.Name()).Msg("downloaded report")

	return tmp.Name(), nil
}

func isGiltISIN(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "GB")
}

func isIndexLinked(desc string) bool {
	return strings.Contains(strings.ToLower(desc), "index-linked")
}

func parseReportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dmoReportDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parseReferenceRow reads a D1A row into a gilt descriptor.
func parseReferenceRow(row []string) (*bond.Descriptor, error) {
	if len(row) < D1A_MIN_COLS || !isGiltISIN(row[D1A_COL_ISIN]) {
		return nil, ErrInvalidRow
	}

	name := strings.TrimSpace(row[D1A_COL_NAME])
	if isIndexLinked(name) {
		return nil, types.ErrUnsupportedBond
	}

	coupon, err := parseCouponPercentage(name)
	if err != nil {
		return nil, err
	}

	maturity, err := parseReportDate(row[D1A_COL_REDEMPTION])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidMaturityDate, err)
	}

	issue, err := parseReportDate(row[D1A_COL_FIRST_ISSUE])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidIssueDate, err)
	}

	desc := &bond.Descriptor{
		Code:           strings.TrimSpace(row[D1A_COL_ISIN]),
		IssueDate:      issue,
		MaturityDate:   maturity,
		CouponRate:     coupon / 100,
		TenorMonths:    giltTenorMonths,
		DayCount:       daycount.ActualActual,
		SettlementDays: giltSettlementDays,
		FaceValue:      bond.DefaultFaceValue,
	}

	if err := desc.Validate(); err != nil {
		return nil, err
	}

	return desc, nil
}

// parsePriceRow reads a D10B row into a quote. Yields are published in percent.
func parsePriceRow(date time.Time, row []string) (*types.Quote, error) {
	if len(row) < D10B_MIN_COLS || !isGiltISIN(row[D10B_COL_ISIN]) {
		return nil, ErrInvalidRow
	}

	if isIndexLinked(row[D10B_COL_NAME]) {
		return nil, types.ErrUnsupportedBond
	}

	q := &types.Quote{
		Code:  strings.TrimSpace(row[D10B_COL_ISIN]),
		Venue: SourceDMO,
		Date:  date,
	}

	cleanPrice, err := strconv.ParseFloat(strings.TrimSpace(row[D10B_COL_CLEAN_PRICE]), 64)
	if err != nil || cleanPrice <= 0 {
		return nil, types.ErrInvalidCleanPrice
	}
	q.CleanPrice = cleanPrice

	dirtyPrice, err := strconv.ParseFloat(strings.TrimSpace(row[D10B_COL_DIRTY_PRICE]), 64)
	if err != nil || dirtyPrice <= 0 {
		return nil, types.ErrInvalidDirtyPrice
	}
	q.DirtyPrice = dirtyPrice

	// optional
	if y, err := strconv.ParseFloat(strings.TrimSpace(row[D10B_COL_YIELD]), 64); err == nil {
		q.Yield = y / 100
	}

	if _, err := parseReportDate(row[D10B_COL_REDEMPTION]); err != nil {
		return nil, types.ErrInvalidMaturityDate
	}

	return q, nil
}

// parseCouponPercentage parses a coupon percentage string it the following formats
// 0 5/8% Treasury Gilt 2025,
// 2% Treasury Gilt 2025,
// 3½% Treasury Gilt 2025
//
//	s: bond description
//
// Returns:
//
//	Coupon percentage
func parseCouponPercentage(desc string) (float64, error) {
	match := couponPercentageRegex.FindStringSubmatch(desc)

	if len(match) < 3 {
		return 0, types.ErrInvalidCoupon
	}

	m := match[1]

	// convert ½, ¼, ¾ suffixes
	trimLast := func(s string) string {
		r := []rune(s)
		return string(r[0 : len(r)-1])
	}
	if strings.HasSuffix(m, "½") {
		m = trimLast(m) + " 1/2"
	} else if strings.HasSuffix(m, "¼") {
		m = trimLast(m) + " 1/4"
	} else if strings.HasSuffix(m, "¾") {
		m = trimLast(m) + " 3/4"
	}

	if !strings.Contains(m, "/") {
		val, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, types.ErrInvalidCoupon
		}
		return val, nil
	}

	whole := 0
	parts := strings.Split(m, " ")
	switch len(parts) {
	case 2:
		w, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, types.ErrInvalidCoupon
		}
		whole = w
		parts = parts[1:]
	case 1:
	default:
		return 0, types.ErrInvalidCoupon
	}

	frac, err := parseFraction(parts[0])
	if err != nil {
		return 0, err
	}

	return float64(whole) + frac, nil
}

func parseFraction(s string) (float64, error) {
	fractionParts := strings.Split(s, "/")
	if len(fractionParts) != 2 {
		return 0, types.ErrInvalidCoupon
	}
	num, err := strconv.Atoi(fractionParts[0])
	if err != nil {
		return 0, types.ErrInvalidCoupon
	}
	den, err := strconv.Atoi(fractionParts[1])
	if err != nil {
		return 0, types.ErrInvalidCoupon
	}
	if den == 0 {
		return 0, types.ErrInvalidCoupon
	}
	return float64(num) / float64(den), nil
}
