package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"benritz/bondcalc/internal/bond"
	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/collect"
	"benritz/bondcalc/internal/types"
)

const DefaultWorkers = 4

// Service values bonds from a reference data provider against the quotes of
// one or more venues.
type Service struct {
	refs     collect.ReferenceDataProvider
	quotes   []collect.QuoteProvider
	bondOpts []bond.Option
	workers  int
	log      zerolog.Logger
}

type Option func(*Service)

func WithBondOptions(opts ...bond.Option) Option {
	return func(s *Service) {
		s.bondOpts = append(s.bondOpts, opts...)
	}
}

func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

func NewService(refs collect.ReferenceDataProvider, quotes []collect.QuoteProvider, opts ...Option) *Service {
	s := &Service{
		refs:    refs,
		quotes:  quotes,
		workers: DefaultWorkers,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Value prices every code on every venue for trade date asOf. Failures of
// individual bonds are recorded in the result and do not stop the batch.
// Only a cancelled context aborts it.
func (s *Service) Value(ctx context.Context, source string, codes []string, asOf time.Time) (*collect.Collected, error) {
	asOf = calendar.Normalize(asOf)
	collected := collect.NewCollected(source, asOf)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, code := range codes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.valueCode(ctx, collected, code, asOf)
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	collected.Sort()

	s.log.Info().
		Str("source", source).
		Str("date", calendar.FormatDate(asOf)).
		Int("valuations", len(collected.Valuations)).
		Int("failures", len(collected.Failures)).
		Msg("valuation complete")

	return collected, nil
}

func (s *Service) valueCode(ctx context.Context, collected *collect.Collected, code string, asOf time.Time) {
	fail := func(err error) {
		s.log.Warn().Str("code", code).Err(err).Msg("valuation failed")
		collected.AddFailure(code, err)
	}

	desc, err := s.refs.Descriptor(ctx, code)
	if err != nil {
		fail(err)
		return
	}

	b, err := bond.New(*desc, s.bondOpts...)
	if err != nil {
		fail(err)
		return
	}

	for _, provider := range s.quotes {
		quotes, err := provider.Quotes(ctx, *desc, asOf)
		if err != nil {
			fail(err)
			continue
		}

		for _, q := range quotes {
			v, err := Value(b, q, asOf)
			if err != nil {
				fail(fmt.Errorf("%s: %w", q.Venue, err))
				continue
			}
			v.Source = collected.Source
			collected.AddValuation(v)
		}
	}
}

// Value computes the accrued interest, dirty price and yield of a quote
// settling the bond's settlement lag after trade date asOf.
func Value(b *bond.Bond, q types.Quote, asOf time.Time) (*types.Valuation, error) {
	if b == nil {
		return nil, types.ErrNilBond
	}
	if q.CleanPrice <= 0 {
		return nil, fmt.Errorf("%w: %g", types.ErrInvalidCleanPrice, q.CleanPrice)
	}

	settle := b.SettlementDate(asOf)

	accrued, err := b.AccruedInterest(settle)
	if err != nil {
		return nil, err
	}

	ytm, err := b.Yield(q.CleanPrice, settle)
	if err != nil {
		return nil, err
	}

	v := &types.Valuation{
		Code:            b.Code(),
		Venue:           q.Venue,
		AsOf:            calendar.Normalize(asOf),
		IssueDate:       b.IssueDate(),
		MaturityDate:    b.MaturityDate(),
		Coupon:          b.CouponRate(),
		DayCount:        b.DayCount().String(),
		CleanPrice:      q.CleanPrice,
		DirtyPrice:      q.CleanPrice + accrued,
		AccruedInterest: accrued,
		YieldToMaturity: ytm,
		QuotedYield:     q.Yield,
	}

	// no coupon after the last one
	if next, err := b.NextCouponDate(settle); err == nil {
		v.NextCouponDate = next
	}

	return v, nil
}
