package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/pbnjay/grate/xls"
	"github.com/rs/zerolog/log"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/collect"
	"benritz/bondcalc/internal/config"
	"benritz/bondcalc/internal/logger"
	"benritz/bondcalc/internal/types"
	"benritz/bondcalc/internal/valuation"
)

func main() {
	ctx := context.Background()

	configPath := flag.String("config", "config.yaml", "the configuration file")
	profile := flag.String("profile", "", "the AWS profile to use")
	source := flag.String("source", "dmo", "the price source ("+strings.Join(valuation.Sources, "|")+")")
	dateStr := flag.String("date", "", "the trade date (YYYY-MM-DD), defaults to today")
	helpFlag := flag.Bool("help", false, "print this help message")
	flag.Parse()
	args := flag.Args()

	if len(args) > 1 || *helpFlag {
		fmt.Printf("Usage: %s <flags> [destination]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.SetGlobalLogger(logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}))

	dst := cfg.Storage.Destination
	if len(args) == 1 {
		dst = args[0]
	}
	if dst == "" {
		log.Fatal().Msg("no destination given")
	}

	if *profile != "" {
		cfg.Storage.AWSProfile = *profile
	}

	date := calendar.Normalize(time.Now())
	if *dateStr != "" {
		if date, err = calendar.ParseDate(*dateStr); err != nil {
			log.Fatal().Err(err).Msg("invalid date")
		}
	}

	collected, err := valuation.Run(ctx, cfg, *source, date, log.Logger)
	if err != nil {
		if errors.Is(err, types.ErrDataUnavailable) {
			log.Fatal().Str("source", *source).Str("date", calendar.FormatDate(date)).Msg("data unavailable")
		}
		log.Fatal().Err(err).Msg("failed to collect data")
	}

	outPath, err := collect.Store(ctx, collected, dst, cfg.Storage.AWSProfile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to store data")
	}

	log.Info().Str("path", outPath).Int("valuations", len(collected.Valuations)).Msg("stored")
}
