// Command stac-sentinel-lambda converts scenes announced by S3 "new object"
// notifications (delivered through SNS) into STAC Items.
//
// Environment:
//
//	STAC_SENTINEL_COLLECTION  collection id; defaults to the notifying bucket's name
//	STAC_SENTINEL_PUBLISH     whitespace separated SNS topic ARNs or kafka:// destinations
//	STAC_SENTINEL_LOG_LEVEL   debug, info, warn, error or 0..5
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/config"
	"github.com/satstac/stac-sentinel/internal/fetch"
	"github.com/satstac/stac-sentinel/internal/ingestion"
	"github.com/satstac/stac-sentinel/internal/logging"
	"github.com/satstac/stac-sentinel/internal/sentinel"
	"github.com/satstac/stac-sentinel/internal/sink"
)

func main() {
	ctx := context.Background()
	logger := logging.New(config.GetEnvLogLevel("STAC_SENTINEL_LOG_LEVEL", slog.LevelInfo))
	slog.SetDefault(logger)

	handler, err := newHandler(ctx, logger)
	if err != nil {
		logger.Error("Failed to initialize handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context, event events.SNSEvent) error {
		_, err := handler.Invoke(ctx, event)

		return err
	})
}

func newHandler(ctx context.Context, logger *slog.Logger) (*Handler, error) {
	registry, err := collections.NewRegistry()
	if err != nil {
		return nil, err
	}

	settings, err := collections.LoadSettingsFromEnv()
	if err != nil {
		return nil, err
	}

	registry.Apply(settings)

	fetchCfg := fetch.LoadConfig()

	presigner, err := fetch.NewS3Presigner(ctx, fetchCfg.Region)
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.New(fetchCfg, fetch.WithPresigner(presigner))
	if err != nil {
		return nil, err
	}

	out, err := newSink(ctx, strings.Fields(config.GetEnvStr("STAC_SENTINEL_PUBLISH", "")))
	if err != nil {
		return nil, err
	}

	converter := sentinel.NewConverter(fetcher)

	return &Handler{
		Registry:   registry,
		Collection: config.GetEnvStr("STAC_SENTINEL_COLLECTION", ""),
		Logger:     logger,
		NewIngest: func(col *collections.Collection) Ingester {
			return ingestion.NewDriver(col, nil, fetcher, converter, out, ingestion.WithLogger(logger))
		},
	}, nil
}

// newSink publishes to every topic; without topics Items are only printed to the function log.
func newSink(ctx context.Context, topics []string) (sink.Sink, error) {
	if len(topics) == 0 {
		return sink.NewStdout(true), nil
	}

	sinks := make([]sink.Sink, 0, len(topics))

	for _, topic := range topics {
		s, err := sink.ForTopic(ctx, topic)
		if err != nil {
			return nil, err
		}

		sinks = append(sinks, s)
	}

	return sink.NewMulti(sinks...), nil
}
