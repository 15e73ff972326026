package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"benritz/bondcalc/internal/bond"
	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/config"
	"benritz/bondcalc/internal/daycount"
	"benritz/bondcalc/internal/logger"
	"benritz/bondcalc/internal/types"
)

// app holds the state shared by all subcommands.
type app struct {
	configPath string
	cfg        *config.Config

	code           string
	issue          string
	maturity       string
	coupon         float64
	tenor          int
	dayCount       string
	settlementDays int
	faceValue      float64
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bondcalc",
		Short: "Fixed-rate bond analytics",
		Long: `Cash flows, accrued interest, yield to maturity and holding period
returns of plain fixed-rate bonds.

A bond is either looked up by --code in the configuration file or described
inline with --issue, --maturity and --coupon.

Examples:
  bondcalc cashflows --issue 2019-01-01 --maturity 2039-01-01 --coupon 5
  bondcalc ytm --code 111111.IB --clean 101.5 --date 2021-03-15
  bondcalc hpy --code 111111.IB --buy-date 2021-03-15 --buy-price 100 --sell-date 2021-09-15 --sell-price 101 --annualized`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger.SetGlobalLogger(logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "config.yaml", "configuration file")
	flags.StringVar(&a.code, "code", "", "bond code from the configuration file")
	flags.StringVar(&a.issue, "issue", "", "issue date (YYYY-MM-DD)")
	flags.StringVar(&a.maturity, "maturity", "", "maturity date (YYYY-MM-DD)")
	flags.Float64Var(&a.coupon, "coupon", 0, "annual coupon rate (%)")
	flags.IntVar(&a.tenor, "tenor", 6, "coupon period in months (1, 3, 6 or 12)")
	flags.StringVar(&a.dayCount, "daycount", "ACT/ACT", "day count convention")
	flags.IntVar(&a.settlementDays, "settlement-days", 0, "settlement lag in business days")
	flags.Float64Var(&a.faceValue, "facevalue", bond.DefaultFaceValue, "face value")

	root.AddCommand(
		newCashFlowsCmd(a),
		newAccruedCmd(a),
		newYtmCmd(a),
		newHpyCmd(a),
	)

	return root
}

func (a *app) descriptor() (bond.Descriptor, error) {
	if a.issue == "" && a.maturity == "" {
		if a.code == "" {
			return bond.Descriptor{}, fmt.Errorf("either --code or --issue and --maturity are required")
		}
		descs, err := a.cfg.Descriptors()
		if err != nil {
			return bond.Descriptor{}, err
		}
		desc, ok := descs[a.code]
		if !ok {
			return bond.Descriptor{}, fmt.Errorf("%w: %s", types.ErrUnknownBond, a.code)
		}
		return desc, nil
	}

	issue, err := calendar.ParseDate(a.issue)
	if err != nil {
		return bond.Descriptor{}, fmt.Errorf("invalid issue date: %w", err)
	}
	maturity, err := calendar.ParseDate(a.maturity)
	if err != nil {
		return bond.Descriptor{}, fmt.Errorf("invalid maturity date: %w", err)
	}
	dc, err := daycount.Parse(a.dayCount)
	if err != nil {
		return bond.Descriptor{}, err
	}
	if a.coupon < 0.0 || a.coupon > 100.0 {
		return bond.Descriptor{}, fmt.Errorf("coupon rate must be between 0.0 and 100.0")
	}

	return bond.Descriptor{
		Code:           a.code,
		IssueDate:      issue,
		MaturityDate:   maturity,
		CouponRate:     a.coupon / 100,
		TenorMonths:    a.tenor,
		DayCount:       dc,
		SettlementDays: a.settlementDays,
		FaceValue:      a.faceValue,
	}, nil
}

func (a *app) bond() (*bond.Bond, error) {
	desc, err := a.descriptor()
	if err != nil {
		return nil, err
	}
	opts, err := a.cfg.BondOptions()
	if err != nil {
		return nil, err
	}
	b, err := bond.New(desc, opts...)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("code", b.Code()).
		Str("issue", calendar.FormatDate(b.IssueDate())).
		Str("maturity", calendar.FormatDate(b.MaturityDate())).
		Int("coupons", len(b.CashFlows())).
		Msg("bond built")

	return b, nil
}

// parseDate parses a YYYY-MM-DD flag value, defaulting to today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return calendar.Normalize(time.Now()), nil
	}
	return calendar.ParseDate(s)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
