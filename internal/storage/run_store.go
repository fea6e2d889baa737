package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/satstac/stac-sentinel/internal/ingestion"
)

// ErrRunNotFound is returned when finishing a run that was never started.
var ErrRunNotFound = errors.New("ingestion run not found")

var _ ingestion.RunRecorder = (*RunStore)(nil)

// RunStore records batch ingestion runs in ingestion_runs.
type RunStore struct {
	conn *Connection
}

// NewRunStore creates a RunStore over conn.
func NewRunStore(conn *Connection) (*RunStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &RunStore{conn: conn}, nil
}

// StartRun inserts a run row.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, collection string, started time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO ingestion_runs (run_id, collection, started_at) VALUES ($1, $2, $3)`,
		runID, collection, started.UTC())
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", runID, classify(err))
	}

	return nil
}

// FinishRun stores the final counts of a run.
func (s *RunStore) FinishRun(ctx context.Context, runID uuid.UUID, finished time.Time, counts ingestion.Stats) error {
	res, err := s.conn.ExecContext(ctx, `
UPDATE ingestion_runs
SET finished_at = $2, scanned = $3, filtered = $4, ingested = $5, failed = $6
WHERE run_id = $1`,
		runID, finished.UTC(), counts.Scanned, counts.Filtered, counts.Ingested, counts.Failed)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, classify(err))
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return nil
}
