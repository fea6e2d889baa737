// Package inventory enumerates scene metadata objects from bucket inventories.
package inventory

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNoManifest is returned when no inventory manifest exists for today or yesterday.
	ErrNoManifest = errors.New("no inventory manifest found")
	// ErrInvalidRecord is returned for inventory rows that cannot be parsed.
	ErrInvalidRecord = errors.New("invalid inventory record")
	// ErrStop may be returned by a WalkFunc to end the walk early without error.
	ErrStop = errors.New("stop walk")
)

// Record is one inventoried object.
type Record struct {
	Bucket       string
	Key          string
	LastModified time.Time
}

// WalkFunc is called for each record in inventory order.
type WalkFunc func(Record) error

// Source yields inventory records.
type Source interface {
	Walk(ctx context.Context, fn WalkFunc) error
}

// Filter selects records. Empty fields match everything.
// StartDate and EndDate compare calendar dates in UTC, both inclusive.
type Filter struct {
	Prefix    string
	Suffix    string
	StartDate time.Time
	EndDate   time.Time
}

// Match reports whether r passes every configured criterion.
func (f Filter) Match(r Record) bool {
	if f.Prefix != "" && !strings.HasPrefix(r.Key, f.Prefix) {
		return false
	}

	if f.Suffix != "" && !strings.HasSuffix(r.Key, f.Suffix) {
		return false
	}

	day := truncateDay(r.LastModified)

	if !f.StartDate.IsZero() && day.Before(truncateDay(f.StartDate)) {
		return false
	}

	if !f.EndDate.IsZero() && day.After(truncateDay(f.EndDate)) {
		return false
	}

	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD and full RFC 3339 timestamps. Empty input gives the zero time.
func ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	return parseTime(raw)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: raw, Message: ": unrecognized date"}
}
