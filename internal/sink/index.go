package sink

import (
	"context"
	"fmt"

	"github.com/satstac/stac-sentinel/internal/stac"
)

// Indexer stores Items. *storage.ItemStore satisfies it.
type Indexer interface {
	Upsert(ctx context.Context, item *stac.Item) (bool, error)
}

// Index writes Items into the item index.
type Index struct {
	store Indexer
}

// NewIndex creates an Index sink over store.
func NewIndex(store Indexer) *Index {
	return &Index{store: store}
}

// Write upserts item. Unchanged Items are skipped by the store.
func (i *Index) Write(ctx context.Context, item *stac.Item) error {
	if _, err := i.store.Upsert(ctx, item); err != nil {
		return fmt.Errorf("failed to index item %s: %w", item.ID, err)
	}

	return nil
}

// Close is a no-op; the store's connection is owned by the caller.
func (i *Index) Close() error {
	return nil
}
