// Package ingestion drives batch conversion of inventoried scenes into STAC Items.
//
// The Driver walks an inventory, filters records, fetches each scene's metadata
// document, converts it and hands the Item to a sink. Scenes are processed one
// at a time. A failing scene is logged once, counted and skipped.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/inventory"
	"github.com/satstac/stac-sentinel/internal/sentinel"
	"github.com/satstac/stac-sentinel/internal/sink"
	"github.com/satstac/stac-sentinel/internal/stac"
)

const defaultProgressEvery = 1000

// ErrPartialFailure is returned by Stats.Err when at least one scene failed.
var ErrPartialFailure = errors.New("one or more scenes failed")

type (
	// Fetcher retrieves metadata documents.
	Fetcher interface {
		Fetch(ctx context.Context, url string) ([]byte, error)
	}

	// Converter turns a metadata document into a validated Item. *sentinel.Converter satisfies it.
	Converter interface {
		Convert(ctx context.Context, col *collections.Collection, doc []byte, base sentinel.Base) (*stac.Item, error)
	}

	// Stats counts what a run did with the inventory.
	Stats struct {
		Scanned  int // records read from the inventory
		Filtered int // records dropped by the filter
		Ingested int // Items handed to the sink
		Failed   int // scenes that failed to fetch, convert or write
	}

	// Driver runs one batch conversion over one collection.
	Driver struct {
		collection    *collections.Collection
		source        inventory.Source
		fetcher       Fetcher
		converter     Converter
		sink          sink.Sink
		filter        inventory.Filter
		limit         int
		progressEvery int
		recorder      RunRecorder
		logger        *slog.Logger
		now           func() time.Time
	}

	// Option configures a Driver.
	Option func(*Driver)
)

var _ Converter = (*sentinel.Converter)(nil)

// Err returns ErrPartialFailure when any scene failed, nil otherwise.
func (s Stats) Err() error {
	if s.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrPartialFailure, s.Failed, s.Failed+s.Ingested)
	}

	return nil
}

// WithFilter sets the inventory filter. An empty Suffix defaults to the
// collection's metadata filename.
func WithFilter(f inventory.Filter) Option {
	return func(d *Driver) {
		d.filter = f
	}
}

// WithLimit stops the run after n Items. 0 means no limit.
func WithLimit(n int) Option {
	return func(d *Driver) {
		d.limit = n
	}
}

// WithProgressEvery logs progress every n scanned records.
func WithProgressEvery(n int) Option {
	return func(d *Driver) {
		d.progressEvery = n
	}
}

// WithRecorder records the run.
func WithRecorder(r RunRecorder) Option {
	return func(d *Driver) {
		d.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// NewDriver creates a Driver.
func NewDriver(
	col *collections.Collection,
	source inventory.Source,
	fetcher Fetcher,
	converter Converter,
	out sink.Sink,
	opts ...Option,
) *Driver {
	d := &Driver{
		collection:    col,
		source:        source,
		fetcher:       fetcher,
		converter:     converter,
		sink:          out,
		progressEvery: defaultProgressEvery,
		logger:        slog.Default(),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.filter.Suffix == "" {
		d.filter.Suffix = col.MetadataFile
	}

	return d
}

// Run walks the inventory once. The returned error reports why the walk itself
// stopped (inventory failure, cancellation); per-scene failures only show in Stats.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	var (
		stats   Stats
		runID   = uuid.New()
		started = d.now()
		logger  = d.logger.With(
			slog.String("run_id", runID.String()),
			slog.String("collection", d.collection.ID))
	)

	d.recordStart(ctx, logger, runID, started)

	logger.Info("Starting ingestion run",
		slog.String("prefix", d.filter.Prefix),
		slog.String("suffix", d.filter.Suffix),
		slog.Int("limit", d.limit))

	err := d.source.Walk(ctx, func(rec inventory.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats.Scanned++

		if d.progressEvery > 0 && stats.Scanned%d.progressEvery == 0 {
			logger.Info("Ingestion progress",
				slog.Int("scanned", stats.Scanned),
				slog.Int("ingested", stats.Ingested),
				slog.Int("failed", stats.Failed))
		}

		if !d.filter.Match(rec) {
			stats.Filtered++

			return nil
		}

		item, err := d.Ingest(ctx, rec.Key)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			stats.Failed++

			logger.Error("Failed to ingest scene",
				slog.String("key", rec.Key),
				slog.String("error", err.Error()))

			return nil
		}

		stats.Ingested++

		logger.Debug("Ingested scene",
			slog.String("key", rec.Key),
			slog.String("item_id", item.ID))

		if d.limit > 0 && stats.Ingested >= d.limit {
			return inventory.ErrStop
		}

		return nil
	})
	if errors.Is(err, inventory.ErrStop) {
		err = nil
	}

	finished := d.now()
	d.recordFinish(logger, runID, finished, stats)

	logger.Info("Ingestion run finished",
		slog.Int("scanned", stats.Scanned),
		slog.Int("filtered", stats.Filtered),
		slog.Int("ingested", stats.Ingested),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", finished.Sub(started)))

	if err != nil {
		return stats, fmt.Errorf("ingestion run %s: %w", runID, err)
	}

	return stats, nil
}

// Ingest converts the scene whose metadata document is at key and writes it to the sink.
func (d *Driver) Ingest(ctx context.Context, key string) (*stac.Item, error) {
	doc, err := d.fetcher.Fetch(ctx, d.collection.MetadataURL(key))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}

	base := sentinel.Base{
		Assets:   d.collection.AssetBase(key),
		Metadata: d.collection.MetadataBase(key),
	}

	item, err := d.converter.Convert(ctx, d.collection, doc, base)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", key, err)
	}

	if err := d.sink.Write(ctx, item); err != nil {
		return nil, fmt.Errorf("write %s: %w", item.ID, err)
	}

	return item, nil
}

func (d *Driver) recordStart(ctx context.Context, logger *slog.Logger, runID uuid.UUID, started time.Time) {
	if d.recorder == nil {
		return
	}

	if err := d.recorder.StartRun(ctx, runID, d.collection.ID, started); err != nil {
		logger.Warn("Failed to record run start", slog.String("error", err.Error()))
	}
}

// recordFinish runs on a fresh context so a cancelled run still gets its totals stored.
func (d *Driver) recordFinish(logger *slog.Logger, runID uuid.UUID, finished time.Time, stats Stats) {
	if d.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second) //nolint:mnd
	defer cancel()

	if err := d.recorder.FinishRun(ctx, runID, finished, stats); err != nil {
		logger.Warn("Failed to record run finish", slog.String("error", err.Error()))
	}
}
