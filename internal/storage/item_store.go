package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/satstac/stac-sentinel/internal/stac"
)

var (
	// ErrItemNotFound is returned by Get for unknown ids.
	ErrItemNotFound = errors.New("item not found")
	// ErrItemStoreFailed wraps failed index writes and reads.
	ErrItemStoreFailed = errors.New("item store operation failed")
)

// ItemStore is the PostgreSQL item index.
type ItemStore struct {
	conn      *Connection
	validator *stac.Validator
	logger    *slog.Logger
}

// NewItemStore creates an ItemStore over conn.
func NewItemStore(conn *Connection, logger *slog.Logger) (*ItemStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &ItemStore{conn: conn, validator: stac.NewValidator(), logger: logger}, nil
}

const upsertItemSQL = `
INSERT INTO stac_items (id, collection, datetime, bbox_west, bbox_south, bbox_east, bbox_north, document, content_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    collection   = EXCLUDED.collection,
    datetime     = EXCLUDED.datetime,
    bbox_west    = EXCLUDED.bbox_west,
    bbox_south   = EXCLUDED.bbox_south,
    bbox_east    = EXCLUDED.bbox_east,
    bbox_north   = EXCLUDED.bbox_north,
    document     = EXCLUDED.document,
    content_hash = EXCLUDED.content_hash,
    updated_at   = NOW()
WHERE stac_items.content_hash <> EXCLUDED.content_hash
RETURNING id`

// Upsert stores item. It returns false without writing when the stored
// document has the same content hash.
func (s *ItemStore) Upsert(ctx context.Context, item *stac.Item) (bool, error) {
	if err := s.validator.Validate(item); err != nil {
		return false, fmt.Errorf("%w: %w", ErrItemStoreFailed, err)
	}

	when, err := item.Datetime()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrItemStoreFailed, err)
	}

	document, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("%w: failed to encode item %s: %w", ErrItemStoreFailed, item.ID, err)
	}

	hash := ContentHash(document)

	var id string

	err = s.conn.QueryRowContext(ctx, upsertItemSQL,
		item.ID, item.Collection, when,
		item.BBox[0], item.BBox[1], item.BBox[2], item.BBox[3],
		document, hash,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("Item unchanged",
			slog.String("item_id", item.ID),
			slog.String("content_hash", hash))

		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("%w: upsert %s: %w", ErrItemStoreFailed, item.ID, classify(err))
	}

	s.logger.Debug("Item indexed",
		slog.String("item_id", item.ID),
		slog.String("collection", item.Collection))

	return true, nil
}

// Get returns the stored Item with the given id.
func (s *ItemStore) Get(ctx context.Context, id string) (*stac.Item, error) {
	var document []byte

	err := s.conn.QueryRowContext(ctx, `SELECT document FROM stac_items WHERE id = $1`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrItemStoreFailed, id, classify(err))
	}

	var item stac.Item
	if err := json.Unmarshal(document, &item); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrItemStoreFailed, id, err)
	}

	return &item, nil
}

// Count returns the number of Items in collection, or in all collections when it is empty.
func (s *ItemStore) Count(ctx context.Context, collection string) (int, error) {
	var n int

	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stac_items WHERE $1::text = '' OR collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrItemStoreFailed, classify(err))
	}

	return n, nil
}
