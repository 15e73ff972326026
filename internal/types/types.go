package types

import (
	"fmt"
	"time"
)

// Quote is a clean/dirty price observation for a bond on one venue.
type Quote struct {
	Code       string
	Venue      string
	Date       time.Time
	CleanPrice float64
	DirtyPrice float64
	Yield      float64
}

// Valuation is the flat record written out by the collectors, one per bond and venue.
type Valuation struct {
	Code            string
	Venue           string
	Source          string
	AsOf            time.Time
	IssueDate       time.Time
	MaturityDate    time.Time
	Coupon          float64
	DayCount        string
	CleanPrice      float64
	DirtyPrice      float64
	AccruedInterest float64
	YieldToMaturity float64
	QuotedYield     float64
	NextCouponDate  time.Time
}

var (
	ErrInvalidDescriptor = fmt.Errorf("invalid bond descriptor")
	ErrOutOfRange        = fmt.Errorf("date out of range")
	ErrInvalidRange      = fmt.Errorf("invalid date range")
	ErrDivisionByZero    = fmt.Errorf("division by zero")
	ErrNoSolution        = fmt.Errorf("no solution")

	ErrNilBond               = fmt.Errorf("bond is nil")
	ErrMissingSettlementDate = fmt.Errorf("missing settlement date")
	ErrDataUnavailable       = fmt.Errorf("data unavailable")
	ErrUnsupportedBond       = fmt.Errorf("unsupported bond")
	ErrUnknownBond           = fmt.Errorf("unknown bond")
	ErrInvalidCode           = fmt.Errorf("invalid code")
	ErrInvalidCoupon         = fmt.Errorf("invalid coupon")
	ErrInvalidDesc           = fmt.Errorf("invalid description")
	ErrInvalidIssueDate      = fmt.Errorf("invalid issue date")
	ErrInvalidMaturityDate   = fmt.Errorf("invalid maturity date")
	ErrInvalidCleanPrice     = fmt.Errorf("invalid clean price")
	ErrInvalidDirtyPrice     = fmt.Errorf("invalid dirty price")
	ErrInvalidYield          = fmt.Errorf("invalid yield")
	ErrUnknownDayCount       = fmt.Errorf("unknown day count convention")
	ErrUnknownConvention     = fmt.Errorf("unknown business day convention")
	ErrUnknownStubPolicy     = fmt.Errorf("unknown stub policy")
	ErrUnknownCompounding    = fmt.Errorf("unknown compounding")
)
