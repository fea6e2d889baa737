package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/satstac/stac-sentinel/internal/ingestion"
	"github.com/satstac/stac-sentinel/internal/inventory"
	"github.com/satstac/stac-sentinel/internal/sentinel"
)

var (
	logVerbosity int

	ingestPrefix        string
	ingestStartDate     string
	ingestEndDate       string
	ingestSave          string
	ingestPathTemplate  string
	ingestPublish       []string
	ingestIndex         bool
	ingestInventoryFile string
	ingestLimit         int
	ingestStrict        bool
	ingestJSON          bool
	ingestQuiet         bool
)

var rootCmd = &cobra.Command{
	Use:   name + " <collection>",
	Short: "Convert Sentinel scene metadata into STAC Items",
	Long: `stac-sentinel walks the inventory of a Sentinel collection on AWS, converts each
scene's metadata into a STAC Item and writes it to stdout, a directory, a Kafka
topic, an SNS topic or the PostgreSQL item index.

Collections: sentinel-s1-l1c, sentinel-s2-l1c, sentinel-s2-l2a.`,
	Example: `  stac-sentinel sentinel-s2-l1c --prefix tiles/57/U --start_date 2017-10-23 --save ./items
  stac-sentinel sentinel-s1-l1c --inventory-file scenes.csv --publish arn:aws:sns:eu-central-1:123456789012:stac
  stac-sentinel sentinel-s2-l2a --publish kafka://localhost:9092/stac-items --index --strict`,
	Version:       version,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runIngest,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&logVerbosity, "log", defaultVerbosity,
		"0:all, 1:debug, 2:info, 3:warning, 4:error, 5:critical (default from STAC_SENTINEL_LOG_LEVEL)")

	flags := rootCmd.Flags()
	flags.StringVar(&ingestPrefix, "prefix", "", "Only ingest scenes with a path starting with prefix")
	flags.StringVar(&ingestStartDate, "start_date", "", "Only ingest scenes last modified on or after this date")
	flags.StringVar(&ingestEndDate, "end_date", "", "Only ingest scenes last modified on or before this date")
	flags.StringVar(&ingestSave, "save", "", "Save Items as <id>.json files to this folder")
	flags.StringVar(&ingestPathTemplate, "path-template", "",
		"Path of saved Items relative to --save, e.g. ${collection}/${year}/${id}.json")
	flags.StringSliceVar(&ingestPublish, "publish", nil,
		"Publish Items to an SNS topic ARN or kafka://broker[,broker]/topic (repeatable)")
	flags.BoolVar(&ingestIndex, "index", false, "Upsert Items into the PostgreSQL item index (DATABASE_URL)")
	flags.StringVar(&ingestInventoryFile, "inventory-file", "",
		"Read scenes from a local datetime,path CSV instead of the S3 inventory")
	flags.IntVar(&ingestLimit, "limit", 0, "Stop after this many Items (0 = no limit)")
	flags.BoolVar(&ingestStrict, "strict", false, "Exit non-zero when any scene fails")
	flags.BoolVar(&ingestJSON, "json", false, "Print Items as JSON lines instead of '<datetime> <id>'")
	flags.BoolVar(&ingestQuiet, "quiet", false, "Do not print Items to stdout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger(cmd)

	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	col, err := registry.Get(args[0])
	if err != nil {
		return err
	}

	filter, err := parseFilter(ingestPrefix, ingestStartDate, ingestEndDate)
	if err != nil {
		return err
	}

	fetcher, err := newFetcher(ctx, col.Endpoints.Region)
	if err != nil {
		return err
	}

	source, err := newSource(ctx, col, ingestInventoryFile, logger)
	if err != nil {
		return err
	}

	var index *indexDeps
	if ingestIndex {
		if index, err = openIndex(ctx, logger); err != nil {
			return err
		}
		defer index.Close()
	}

	out, closeSinks, err := newSinks(ctx, sinkOptions{
		quiet:        ingestQuiet,
		asJSON:       ingestJSON,
		saveDir:      ingestSave,
		pathTemplate: ingestPathTemplate,
		topics:       ingestPublish,
		index:        index.itemStore(),
	})
	if err != nil {
		return err
	}
	defer closeSinks(logger)

	opts := []ingestion.Option{
		ingestion.WithFilter(filter),
		ingestion.WithLimit(ingestLimit),
		ingestion.WithLogger(logger),
	}

	if index != nil {
		opts = append(opts, ingestion.WithRecorder(index.runs))
	}

	driver := ingestion.NewDriver(col, source, fetcher, sentinel.NewConverter(fetcher), out, opts...)

	logger.Info("Starting ingestion",
		slog.String("collection", col.ID),
		slog.String("prefix", filter.Prefix),
		slog.Int("sinks", out.Len()),
	)

	stats, err := driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion of %s stopped: %w", col.ID, err)
	}

	if ingestStrict {
		return stats.Err()
	}

	return nil
}

func parseFilter(prefix, start, end string) (inventory.Filter, error) {
	filter := inventory.Filter{Prefix: prefix}

	var err error

	if start != "" {
		if filter.StartDate, err = inventory.ParseDate(start); err != nil {
			return filter, fmt.Errorf("invalid --start_date: %w", err)
		}
	}

	if end != "" {
		if filter.EndDate, err = inventory.ParseDate(end); err != nil {
			return filter, fmt.Errorf("invalid --end_date: %w", err)
		}
	}

	if start != "" && end != "" && filter.EndDate.Before(filter.StartDate) {
		return filter, errors.New("--end_date is before --start_date")
	}

	return filter, nil
}
