package bond

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/types"
)

// Compounding is the rate convention a yield is quoted in.
type Compounding int

const (
	Compounded Compounding = iota
	Continuous
	Simple
)

func (c Compounding) String() string {
	switch c {
	case Continuous:
		return "Continuous"
	case Simple:
		return "Simple"
	default:
		return "Compounded"
	}
}

func ParseCompounding(s string) (Compounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "compounded":
		return Compounded, nil
	case "continuous":
		return Continuous, nil
	case "simple":
		return Simple, nil
	}
	return Compounded, fmt.Errorf("%w: %q", types.ErrUnknownCompounding, s)
}

// YieldConvention selects the compounding of a yield. A zero Frequency means
// the coupon frequency of the bond.
type YieldConvention struct {
	Compounding Compounding
	Frequency   int
}

// SolverConfig bounds the yield root-finder.
type SolverConfig struct {
	Lower         float64
	Upper         float64
	Tolerance     float64
	MaxIterations int
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Lower:         -0.99,
		Upper:         10,
		Tolerance:     1e-10,
		MaxIterations: 100,
	}
}

func (c SolverConfig) withDefaults() SolverConfig {
	def := DefaultSolverConfig()
	if c.Lower == 0 && c.Upper == 0 {
		c.Lower, c.Upper = def.Lower, def.Upper
	}
	if c.Tolerance <= 0 {
		c.Tolerance = def.Tolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	return c
}

// flows holds the cash flows remaining after a settlement date with their
// times in years from settlement.
type flows struct {
	times   []float64
	amounts []float64
}

func (b *Bond) remainingFlows(settle time.Time) (flows, error) {
	var f flows
	for _, cf := range b.cashFlows {
		if !cf.Date.After(settle) {
			continue
		}
		t, err := b.YearFraction(settle, cf.Date)
		if err != nil {
			return flows{}, err
		}
		f.times = append(f.times, t)
		f.amounts = append(f.amounts, cf.Amount())
	}
	return f, nil
}

// priceAndDerivative returns the dirty price at yield y and dPrice/dy.
func (f flows) priceAndDerivative(y float64, conv YieldConvention) (float64, float64) {
	df := make([]float64, len(f.times))
	ddf := make([]float64, len(f.times))

	for i, t := range f.times {
		switch conv.Compounding {
		case Continuous:
			df[i] = math.Exp(-y * t)
			ddf[i] = -t * df[i]
		case Simple:
			base := 1 + y*t
			if base <= 0 {
				return math.Inf(1), 0
			}
			df[i] = 1 / base
			ddf[i] = -t / (base * base)
		default:
			m := float64(conv.Frequency)
			base := 1 + y/m
			if base <= 0 {
				return math.Inf(1), 0
			}
			df[i] = math.Pow(base, -m*t)
			ddf[i] = -t * math.Pow(base, -m*t-1)
		}
	}

	return floats.Dot(f.amounts, df), floats.Dot(f.amounts, ddf)
}

func (b *Bond) yieldConvention(conv YieldConvention) YieldConvention {
	if conv.Frequency <= 0 {
		conv.Frequency = b.Frequency()
	}
	return conv
}

// PriceFromYield returns the dirty price at settle implied by yield y.
func (b *Bond) PriceFromYield(y float64, settle time.Time, conv YieldConvention) (float64, error) {
	settle = calendar.Normalize(settle)
	if err := b.checkRange(settle); err != nil {
		return 0, err
	}

	f, err := b.remainingFlows(settle)
	if err != nil {
		return 0, err
	}

	price, _ := f.priceAndDerivative(y, b.yieldConvention(conv))
	return price, nil
}

func (b *Bond) CleanPriceFromYield(y float64, settle time.Time, conv YieldConvention) (float64, error) {
	dirty, err := b.PriceFromYield(y, settle, conv)
	if err != nil {
		return 0, err
	}
	return b.CleanPrice(dirty, settle)
}

// Yield solves for the yield compounded at the coupon frequency.
func (b *Bond) Yield(cleanPrice float64, settle time.Time) (float64, error) {
	return b.YieldFromPrice(cleanPrice, settle, YieldConvention{Compounding: Compounded})
}

// YieldFromPrice solves for y such that the discounted remaining cash flows
// equal the dirty price at settle. The root is bracketed in the solver's
// [Lower, Upper] interval and refined with Newton steps, falling back to
// bisection whenever a step leaves the bracket.
func (b *Bond) YieldFromPrice(cleanPrice float64, settle time.Time, conv YieldConvention) (float64, error) {
	settle = calendar.Normalize(settle)

	dirty, err := b.DirtyPrice(cleanPrice, settle)
	if err != nil {
		return 0, err
	}
	if dirty <= 0 {
		return 0, fmt.Errorf("%w: dirty price %g is not positive", types.ErrNoSolution, dirty)
	}

	f, err := b.remainingFlows(settle)
	if err != nil {
		return 0, err
	}
	if len(f.amounts) == 0 {
		return 0, fmt.Errorf("%w: no cash flows after %s", types.ErrNoSolution, calendar.FormatDate(settle))
	}

	conv = b.yieldConvention(conv)
	fn := func(y float64) (float64, float64) {
		p, dp := f.priceAndDerivative(y, conv)
		return p - dirty, dp
	}

	guess := b.estimateYield(cleanPrice, settle)
	return solve(fn, guess, b.solver)
}

// estimateYield is the closed-form approximation used to seed the solver:
//
//	(C + (F - P) / n) / ((F + P) / 2)
//
// with C the annual coupon amount, F the face value, P the clean price and n
// the years to maturity.
func (b *Bond) estimateYield(cleanPrice float64, settle time.Time) float64 {
	n, err := b.YearFraction(settle, b.MaturityDate())
	if err != nil || n <= 0 || b.face+cleanPrice <= 0 {
		return 0.05
	}
	C := b.couponRate * b.face
	return (C + (b.face-cleanPrice)/n) / ((b.face + cleanPrice) / 2)
}

func solve(fn func(float64) (float64, float64), guess float64, cfg SolverConfig) (float64, error) {
	lo, hi := cfg.Lower, cfg.Upper

	flo, _ := fn(lo)
	if math.Abs(flo) < cfg.Tolerance {
		return lo, nil
	}
	fhi, _ := fn(hi)
	if math.Abs(fhi) < cfg.Tolerance {
		return hi, nil
	}
	if math.IsNaN(flo) || math.IsNaN(fhi) || (flo > 0) == (fhi > 0) {
		return 0, fmt.Errorf("%w: price implies a yield outside [%g, %g]", types.ErrNoSolution, lo, hi)
	}

	y := guess
	if math.IsNaN(y) || y <= lo || y >= hi {
		y = (lo + hi) / 2
	}

	for range cfg.MaxIterations {
		fy, dfy := fn(y)
		if math.Abs(fy) < cfg.Tolerance {
			return y, nil
		}

		if (fy > 0) == (flo > 0) {
			lo, flo = y, fy
		} else {
			hi = y
		}

		next := y - fy/dfy
		if dfy == 0 || math.IsNaN(next) || math.IsInf(next, 0) || next <= lo || next >= hi {
			next = (lo + hi) / 2
		}
		y = next
	}

	return 0, fmt.Errorf("%w: solver did not converge within %d iterations", types.ErrNoSolution, cfg.MaxIterations)
}
