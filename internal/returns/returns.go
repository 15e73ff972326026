package returns

import (
	"fmt"
	"math"
	"time"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/types"
)

// Instrument is the part of a bond the return calculator needs.
type Instrument interface {
	AccruedInterest(asOf time.Time) (float64, error)
	CouponsReceivedBetween(start, end time.Time) (float64, error)
	YearFraction(start, end time.Time) (float64, error)
}

// Position is a buy and a later sell of one bond at clean prices.
type Position struct {
	BuyDate        time.Time
	BuyCleanPrice  float64
	SellDate       time.Time
	SellCleanPrice float64
}

// Breakdown holds the intermediate values of a holding period return.
type Breakdown struct {
	BuyAccrued          float64
	BuyDirty            float64
	SellAccrued         float64
	SellDirty           float64
	CouponsReceived     float64
	YearFraction        float64
	HoldingPeriodReturn float64
	RepoReturn          float64
}

// Evaluate prices both legs of the position and computes the unannualized returns.
func Evaluate(b Instrument, p Position) (*Breakdown, error) {
	buy, sell := calendar.Normalize(p.BuyDate), calendar.Normalize(p.SellDate)
	if !sell.After(buy) {
		return nil, fmt.Errorf("%w: sell date %s is not after buy date %s", types.ErrInvalidRange,
			calendar.FormatDate(sell), calendar.FormatDate(buy))
	}

	buyAccrued, err := b.AccruedInterest(buy)
	if err != nil {
		return nil, fmt.Errorf("buy leg: %w", err)
	}
	sellAccrued, err := b.AccruedInterest(sell)
	if err != nil {
		return nil, fmt.Errorf("sell leg: %w", err)
	}
	coupons, err := b.CouponsReceivedBetween(buy, sell)
	if err != nil {
		return nil, err
	}
	yf, err := b.YearFraction(buy, sell)
	if err != nil {
		return nil, err
	}

	bd := &Breakdown{
		BuyAccrued:      buyAccrued,
		BuyDirty:        p.BuyCleanPrice + buyAccrued,
		SellAccrued:     sellAccrued,
		SellDirty:       p.SellCleanPrice + sellAccrued,
		CouponsReceived: coupons,
		YearFraction:    yf,
	}
	if bd.BuyDirty == 0 {
		return nil, fmt.Errorf("%w: buy dirty price is zero", types.ErrDivisionByZero)
	}

	bd.HoldingPeriodReturn = (bd.SellDirty+bd.CouponsReceived)/bd.BuyDirty - 1
	bd.RepoReturn = (bd.SellDirty - bd.BuyDirty + bd.CouponsReceived) / bd.BuyDirty

	return bd, nil
}

// HoldingPeriodReturn is the outright return (sellDirty + coupons) / buyDirty - 1.
func HoldingPeriodReturn(b Instrument, p Position, annualized bool) (float64, error) {
	return compute(b, p, annualized, func(bd *Breakdown) float64 { return bd.HoldingPeriodReturn })
}

// RepoReturn is the return on a financed position,
// (sellDirty - buyDirty + coupons) / buyDirty.
func RepoReturn(b Instrument, p Position, annualized bool) (float64, error) {
	return compute(b, p, annualized, func(bd *Breakdown) float64 { return bd.RepoReturn })
}

func compute(b Instrument, p Position, annualized bool, pick func(*Breakdown) float64) (float64, error) {
	if annualized && calendar.Normalize(p.SellDate).Equal(calendar.Normalize(p.BuyDate)) {
		return 0, fmt.Errorf("%w: cannot annualize over a zero-length holding period", types.ErrDivisionByZero)
	}

	bd, err := Evaluate(b, p)
	if err != nil {
		return 0, err
	}

	r := pick(bd)
	if !annualized {
		return r, nil
	}
	return Annualize(r, bd.YearFraction)
}

// Annualize converts a return earned over yearFraction years into a yearly one.
func Annualize(r, yearFraction float64) (float64, error) {
	if yearFraction == 0 {
		return 0, fmt.Errorf("%w: zero year fraction", types.ErrDivisionByZero)
	}
	return math.Pow(1+r, 1/yearFraction) - 1, nil
}
