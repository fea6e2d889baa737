package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/config"
	"github.com/satstac/stac-sentinel/internal/fetch"
	"github.com/satstac/stac-sentinel/internal/inventory"
	"github.com/satstac/stac-sentinel/internal/logging"
	"github.com/satstac/stac-sentinel/internal/sink"
	"github.com/satstac/stac-sentinel/internal/storage"
)

const (
	defaultVerbosity = 2
	logLevelEnvVar   = "STAC_SENTINEL_LOG_LEVEL"
)

// newLogger honours an explicit --log over STAC_SENTINEL_LOG_LEVEL and installs
// the logger as the process default.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := config.GetEnvLogLevel(logLevelEnvVar, config.LogLevelFromVerbosity(defaultVerbosity))
	if cmd.Flags().Changed("log") {
		level = config.LogLevelFromVerbosity(logVerbosity)
	}

	logger := logging.New(level).With(slog.String("service", name), slog.String("version", version))
	slog.SetDefault(logger)

	return logger
}

func loadRegistry() (*collections.Registry, error) {
	registry, err := collections.NewRegistry()
	if err != nil {
		return nil, err
	}

	settings, err := collections.LoadSettingsFromEnv()
	if err != nil {
		return nil, err
	}

	registry.Apply(settings)

	return registry, nil
}

// newFetcher builds the metadata fetcher. A failing AWS credential chain only
// disables s3:// URLs; https and local sources keep working.
func newFetcher(ctx context.Context, region string) (*fetch.Fetcher, error) {
	cfg := fetch.LoadConfig()
	if region != "" && os.Getenv("AWS_REGION") == "" {
		cfg.Region = region
	}

	var opts []fetch.Option

	presigner, err := fetch.NewS3Presigner(ctx, cfg.Region)
	if err != nil {
		slog.Warn("S3 presigner unavailable, s3:// metadata URLs will fail", slog.String("error", err.Error()))
	} else {
		opts = append(opts, fetch.WithPresigner(presigner))
	}

	return fetch.New(cfg, opts...)
}

// newSource picks the local inventory file when given, the collection's S3 inventory otherwise.
func newSource(ctx context.Context, col *collections.Collection, inventoryFile string, logger *slog.Logger) (inventory.Source, error) {
	if inventoryFile != "" {
		return &inventory.FileInventory{Path: inventoryFile}, nil
	}

	if col.Endpoints.InventoryBucket == "" {
		return nil, fmt.Errorf("collection %s has no inventory bucket; use --inventory-file", col.ID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(col.Endpoints.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return inventory.NewS3Inventory(
		s3.NewFromConfig(awsCfg),
		col.Endpoints.InventoryBucket,
		col.Endpoints.InventoryPrefix,
		logger,
	), nil
}

type sinkOptions struct {
	quiet        bool
	asJSON       bool
	saveDir      string
	pathTemplate string
	topics       []string
	index        sink.Indexer
}

// newSinks assembles the fan-out sink. The returned cleanup closes every sink
// and logs close failures.
func newSinks(ctx context.Context, opts sinkOptions) (*sink.Multi, func(*slog.Logger), error) {
	var sinks []sink.Sink

	if !opts.quiet {
		sinks = append(sinks, sink.NewStdout(opts.asJSON))
	}

	if opts.saveDir != "" {
		f, err := sink.NewFile(opts.saveDir, opts.pathTemplate)
		if err != nil {
			return nil, nil, err
		}

		sinks = append(sinks, f)
	} else if opts.pathTemplate != "" {
		return nil, nil, errors.New("--path-template requires --save")
	}

	closeAll := func(s *sink.Multi) func(*slog.Logger) {
		return func(logger *slog.Logger) {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close sinks", slog.String("error", err.Error()))
			}
		}
	}

	for _, topic := range opts.topics {
		s, err := sink.ForTopic(ctx, topic)
		if err != nil {
			_ = sink.NewMulti(sinks...).Close()

			return nil, nil, err
		}

		sinks = append(sinks, s)
	}

	if opts.index != nil {
		sinks = append(sinks, sink.NewIndex(opts.index))
	}

	out := sink.NewMulti(sinks...)

	return out, closeAll(out), nil
}

// indexDeps holds the item index handles opened for one command.
type indexDeps struct {
	conn   *storage.Connection
	items  *storage.ItemStore
	runs   *storage.RunStore
	closer io.Closer
	logger *slog.Logger
}

func openIndex(ctx context.Context, logger *slog.Logger) (*indexDeps, error) {
	cfg := storage.LoadConfig()

	conn, err := storage.NewConnection(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to item index: %w", err)
	}

	logger.Info("Connected to item index", slog.String("database_url", cfg.MaskDatabaseURL()))

	items, err := storage.NewItemStore(conn, logger)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	runs, err := storage.NewRunStore(conn)
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	return &indexDeps{conn: conn, items: items, runs: runs, closer: conn, logger: logger}, nil
}

// itemStore returns the index as a sink.Indexer, nil when no index is open.
func (d *indexDeps) itemStore() sink.Indexer {
	if d == nil {
		return nil
	}

	return d.items
}

func (d *indexDeps) Close() {
	if d == nil {
		return
	}

	if err := d.closer.Close(); err != nil {
		d.logger.Warn("Failed to close item index connection", slog.String("error", err.Error()))
	}
}
