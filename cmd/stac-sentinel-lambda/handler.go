package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/stac"
)

// Ingester converts and publishes the scene whose metadata file lives at key.
// *ingestion.Driver satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, key string) (*stac.Item, error)
}

// Handler turns "new object" notifications into Items.
//
// Each SNS record wraps an S3 event. The collection is fixed by configuration or
// taken from the bucket name; objects that are not the collection's metadata file
// are ignored.
type Handler struct {
	Registry   *collections.Registry
	Collection string
	NewIngest  func(*collections.Collection) Ingester
	Logger     *slog.Logger

	ingesters map[string]Ingester
}

// Summary counts what one invocation did.
type Summary struct {
	Ingested int `json:"ingested"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Invoke handles one SNS delivery. Per-object failures are logged and counted,
// never returned, so a single bad scene does not make SNS redeliver the batch.
func (h *Handler) Invoke(ctx context.Context, event events.SNSEvent) (Summary, error) {
	var summary Summary

	for _, record := range event.Records {
		var s3Event events.S3Event
		if err := json.Unmarshal([]byte(record.SNS.Message), &s3Event); err != nil {
			h.Logger.Error("Failed to decode S3 notification",
				slog.String("message_id", record.SNS.MessageID),
				slog.String("error", err.Error()),
			)

			summary.Failed++

			continue
		}

		for _, s3Record := range s3Event.Records {
			h.handleObject(ctx, s3Record.S3, &summary)
		}
	}

	h.Logger.Info("Processed notification",
		slog.Int("ingested", summary.Ingested),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
	)

	return summary, nil
}

func (h *Handler) handleObject(ctx context.Context, entity events.S3Entity, summary *Summary) {
	key, err := url.QueryUnescape(entity.Object.Key)
	if err != nil {
		key = entity.Object.Key
	}

	logger := h.Logger.With(slog.String("bucket", entity.Bucket.Name), slog.String("key", key))

	col, err := h.collectionFor(entity.Bucket.Name)
	if err != nil {
		logger.Warn("No collection for bucket", slog.String("error", err.Error()))

		summary.Skipped++

		return
	}

	if !strings.HasSuffix(key, col.MetadataFile) {
		logger.Debug("Ignoring object that is not a metadata file")

		summary.Skipped++

		return
	}

	item, err := h.ingester(col).Ingest(ctx, key)
	if err != nil {
		logger.Error("Failed to ingest scene", slog.String("error", err.Error()))

		summary.Failed++

		return
	}

	logger.Info("Ingested scene", slog.String("item_id", item.ID))

	summary.Ingested++
}

func (h *Handler) collectionFor(bucket string) (*collections.Collection, error) {
	if h.Collection != "" {
		return h.Registry.Get(h.Collection)
	}

	return h.Registry.Get(bucket)
}

func (h *Handler) ingester(col *collections.Collection) Ingester {
	if h.ingesters == nil {
		h.ingesters = make(map[string]Ingester)
	}

	ing, ok := h.ingesters[col.ID]
	if !ok {
		ing = h.NewIngest(col)
		h.ingesters[col.ID] = ing
	}

	return ing
}
