package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/satstac/stac-sentinel/internal/stac"
)

// Stdout prints one line per Item: "<datetime> <id>", or the Item as JSON.
type Stdout struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

// NewStdout creates a Stdout sink writing to os.Stdout.
func NewStdout(asJSON bool) *Stdout {
	return NewStdoutWithWriter(os.Stdout, asJSON)
}

// NewStdoutWithWriter creates a Stdout sink writing to w.
func NewStdoutWithWriter(w io.Writer, asJSON bool) *Stdout {
	return &Stdout{w: w, json: asJSON}
}

// Write prints item.
func (s *Stdout) Write(_ context.Context, item *stac.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.json {
		if err := json.NewEncoder(s.w).Encode(item); err != nil {
			return fmt.Errorf("failed to write item %s: %w", item.ID, err)
		}

		return nil
	}

	dt, _ := item.Properties[stac.PropDatetime].(string)
	if _, err := fmt.Fprintf(s.w, "%s %s\n", dt, item.ID); err != nil {
		return fmt.Errorf("failed to write item %s: %w", item.ID, err)
	}

	return nil
}

// Close is a no-op.
func (s *Stdout) Close() error {
	return nil
}
