package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"benritz/bondcalc/internal/bond"
	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/returns"
)

func newCashFlowsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cashflows",
		Short: "Print the coupon schedule and cash flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.bond()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date\tCoupon\tPrincipal\n")
			for _, cf := range b.CashFlows() {
				fmt.Fprintf(out, "%s\t%.6f\t%.2f\n", calendar.FormatDate(cf.Date), cf.Coupon, cf.Principal)
			}
			return nil
		},
	}
}

func newAccruedCmd(a *app) *cobra.Command {
	var (
		dateStr    string
		cleanPrice float64
	)

	cmd := &cobra.Command{
		Use:   "accrued",
		Short: "Print the accrued interest on a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.bond()
			if err != nil {
				return err
			}
			date, err := parseDate(dateStr)
			if err != nil {
				return err
			}

			accrued, err := b.AccruedInterest(date)
			if err != nil {
				return err
			}
			prev, err := b.PreviousCouponDate(date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date: %s\n", calendar.FormatDate(date))
			fmt.Fprintf(out, "Accrued Interest: %.6f\n", accrued)
			fmt.Fprintf(out, "Previous Coupon Date: %s\n", calendar.FormatDate(prev))
			if next, err := b.NextCouponDate(date); err == nil {
				fmt.Fprintf(out, "Next Coupon Date: %s\n", calendar.FormatDate(next))
			}
			if cleanPrice > 0 {
				fmt.Fprintf(out, "Dirty Price: %.6f\n", cleanPrice+accrued)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "accrual date (YYYY-MM-DD), defaults to today")
	cmd.Flags().Float64Var(&cleanPrice, "clean", 0, "clean price, prints the dirty price when set")

	return cmd
}

func newYtmCmd(a *app) *cobra.Command {
	var (
		dateStr     string
		trade       bool
		cleanPrice  float64
		ytm         float64
		compounding string
	)

	cmd := &cobra.Command{
		Use:   "ytm",
		Short: "Solve the yield to maturity from a clean price, or the price from a yield",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			priceSet, ytmSet := cmd.Flags().Changed("clean"), cmd.Flags().Changed("yield")
			if priceSet == ytmSet {
				return fmt.Errorf("exactly one of --clean or --yield is required")
			}

			b, err := a.bond()
			if err != nil {
				return err
			}
			date, err := parseDate(dateStr)
			if err != nil {
				return err
			}
			comp, err := bond.ParseCompounding(compounding)
			if err != nil {
				return err
			}
			conv := bond.YieldConvention{Compounding: comp}

			settle := date
			if trade {
				settle = b.SettlementDate(date)
			}

			accrued, err := b.AccruedInterest(settle)
			if err != nil {
				return err
			}

			y := ytm / 100
			clean := cleanPrice
			if priceSet {
				if y, err = b.YieldFromPrice(cleanPrice, settle, conv); err != nil {
					return err
				}
			} else {
				if clean, err = b.CleanPriceFromYield(y, settle, conv); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settlement Date: %s\n", calendar.FormatDate(settle))
			fmt.Fprintf(out, "Clean Price: %.6f\n", clean)
			fmt.Fprintf(out, "Accrued Interest: %.6f\n", accrued)
			fmt.Fprintf(out, "Dirty Price: %.6f\n", clean+accrued)
			fmt.Fprintf(out, "Yield to Maturity (%s): %.6f%%\n", comp, y*100)
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "settlement date (YYYY-MM-DD), defaults to today")
	cmd.Flags().BoolVar(&trade, "trade", false, "treat --date as the trade date and apply the settlement lag")
	cmd.Flags().Float64Var(&cleanPrice, "clean", 0, "clean price")
	cmd.Flags().Float64Var(&ytm, "yield", 0, "yield to maturity (%)")
	cmd.Flags().StringVar(&compounding, "compounding", "compounded", "compounding (compounded|continuous|simple)")

	return cmd
}

func newHpyCmd(a *app) *cobra.Command {
	var (
		buyDateStr  string
		sellDateStr string
		buyPrice    float64
		sellPrice   float64
		annualized  bool
		repo        bool
	)

	cmd := &cobra.Command{
		Use:   "hpy",
		Short: "Compute the holding period return of a buy and a later sell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.bond()
			if err != nil {
				return err
			}
			buyDate, err := calendar.ParseDate(buyDateStr)
			if err != nil {
				return fmt.Errorf("invalid buy date: %w", err)
			}
			sellDate, err := calendar.ParseDate(sellDateStr)
			if err != nil {
				return fmt.Errorf("invalid sell date: %w", err)
			}

			p := returns.Position{
				BuyDate:        buyDate,
				BuyCleanPrice:  buyPrice,
				SellDate:       sellDate,
				SellCleanPrice: sellPrice,
			}

			bd, err := returns.Evaluate(b, p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Buy Dirty Price: %.6f\n", bd.BuyDirty)
			fmt.Fprintf(out, "Sell Dirty Price: %.6f\n", bd.SellDirty)
			fmt.Fprintf(out, "Coupons Received: %.6f\n", bd.CouponsReceived)
			fmt.Fprintf(out, "Year Fraction: %.6f\n", bd.YearFraction)

			hpy, err := returns.HoldingPeriodReturn(b, p, annualized)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Holding Period Return: %.6f%%\n", hpy*100)

			if repo {
				r, err := returns.RepoReturn(b, p, annualized)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Repo Return: %.6f%%\n", r*100)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&buyDateStr, "buy-date", "", "buy date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sellDateStr, "sell-date", "", "sell date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&buyPrice, "buy-price", 0, "buy clean price")
	cmd.Flags().Float64Var(&sellPrice, "sell-price", 0, "sell clean price")
	cmd.Flags().BoolVar(&annualized, "annualized", false, "annualize the returns")
	cmd.Flags().BoolVar(&repo, "repo", false, "also print the repo return")
	cmd.MarkFlagRequired("buy-date")
	cmd.MarkFlagRequired("sell-date")
	cmd.MarkFlagRequired("buy-price")
	cmd.MarkFlagRequired("sell-price")

	return cmd
}
