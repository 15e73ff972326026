package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/pbnjay/grate/xls"
	"github.com/rs/zerolog/log"

	"benritz/bondcalc/internal/calendar"
	"benritz/bondcalc/internal/collect"
	"benritz/bondcalc/internal/config"
	"benritz/bondcalc/internal/logger"
	"benritz/bondcalc/internal/valuation"
)

var (
	ENV_CONFIG_PATH = "BONDCALC_CONFIG"
	ENV_SOURCE      = "BONDCALC_SOURCE"
)

func collectData(ctx context.Context) error {
	// bucket name and prefix arrive through config.ENV_BUCKET_NAME / ENV_BUCKET_PREFIX
	cfg, err := config.Load(os.Getenv(ENV_CONFIG_PATH))
	if err != nil {
		return err
	}

	logger.SetGlobalLogger(logger.New(logger.Config{Level: cfg.Log.Level}))

	if os.Getenv(config.ENV_BUCKET_NAME) == "" {
		return fmt.Errorf("%s is not set", config.ENV_BUCKET_NAME)
	}

	source := os.Getenv(ENV_SOURCE)
	if source == "" {
		source = "dmo"
	}

	collected, err := valuation.Run(ctx, cfg, source, calendar.Normalize(time.Now()), log.Logger)
	if err != nil {
		return err
	}

	outPath, err := collect.Store(ctx, collected, cfg.Storage.Destination, cfg.Storage.AWSProfile)
	if err != nil {
		return err
	}

	log.Info().Str("path", outPath).Int("valuations", len(collected.Valuations)).Msg("stored data")

	return nil
}

func responseWithFailure(rec events.SQSMessage) events.SQSEventResponse {
	return events.SQSEventResponse{
		BatchItemFailures: []events.SQSBatchItemFailure{
			{
				ItemIdentifier: rec.MessageId,
			},
		},
	}
}

func handler(ctx context.Context, request events.SQSEvent) (events.SQSEventResponse, error) {
	err := collectData(ctx)

	if err != nil && len(request.Records) > 0 {
		// should just have a single record, ignore the rest
		rec := request.Records[0]
		return responseWithFailure(rec), fmt.Errorf("failed to collect data: %v", err)
	}

	return events.SQSEventResponse{}, nil
}

func main() {
	lambda.Start(handler)
}
