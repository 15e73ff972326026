package valuation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"benritz/bondcalc/internal/collect"
	"benritz/bondcalc/internal/config"
	"benritz/bondcalc/internal/types"
)

// Sources accepted by Run.
var Sources = []string{"dmo", "dividenddata"}

// Run collects quotes from source for date and values every bond it can.
//
// The DMO source supplies both reference data and prices. DividendData only
// has prices, so it values the bonds configured statically.
func Run(ctx context.Context, cfg *config.Config, source string, date time.Time, log zerolog.Logger) (*collect.Collected, error) {
	bondOpts, err := cfg.BondOptions()
	if err != nil {
		return nil, err
	}

	var (
		name   string
		refs   collect.ReferenceDataProvider
		quotes collect.QuoteProvider
		codes  []string
	)

	switch strings.ToLower(source) {
	case "dmo":
		var dmo collect.Collector = collect.NewDMOCollector(
			collect.WithDMOURL(cfg.Sources.DMOURL),
			collect.WithDMOLogger(log),
		)
		snap, err := dmo.Collect(ctx, date)
		if err != nil {
			return nil, err
		}
		for _, f := range snap.Failures {
			log.Warn().Str("code", f.Code).Err(f.Err).Msg("skipped row")
		}
		name, refs, quotes, codes = dmo.Source(), snap, snap, snap.Codes()

	case "dividenddata":
		descs, err := cfg.Descriptors()
		if err != nil {
			return nil, err
		}
		if len(descs) == 0 {
			return nil, fmt.Errorf("%w: no bonds configured", types.ErrUnknownBond)
		}
		dd := collect.NewDividendDataCollector(cfg.Sources.DividendDataURL, log)
		scraped, err := dd.Scrape(ctx, date)
		if err != nil {
			return nil, err
		}
		for _, f := range scraped.Failures {
			log.Warn().Str("code", f.Code).Err(f.Err).Msg("skipped row")
		}
		for code := range descs {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		name, refs, quotes = dd.Source(), collect.StaticReferenceData(descs), scraped

	default:
		return nil, fmt.Errorf("unknown source %q, expected one of %s", source, strings.Join(Sources, ", "))
	}

	svc := NewService(refs, []collect.QuoteProvider{quotes},
		WithBondOptions(bondOpts...),
		WithWorkers(cfg.Workers),
		WithLogger(log),
	)

	return svc.Value(ctx, name, codes, date)
}
