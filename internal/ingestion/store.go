package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunRecorder persists batch runs. Implementations live in internal/storage.
//
// Recording is best-effort: a failing recorder is logged and never fails the run.
type RunRecorder interface {
	StartRun(ctx context.Context, runID uuid.UUID, collection string, started time.Time) error
	FinishRun(ctx context.Context, runID uuid.UUID, finished time.Time, stats Stats) error
}
