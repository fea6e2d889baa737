// Package sink delivers converted Items to their destinations: stdout, a directory,
// Kafka, SNS and the PostgreSQL item index.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/satstac/stac-sentinel/internal/stac"
)

// ErrUnsupportedTopic is returned by ForTopic for destinations it cannot parse.
var ErrUnsupportedTopic = errors.New("unsupported publish topic")

// Sink consumes Items.
type Sink interface {
	Write(ctx context.Context, item *stac.Item) error
	Close() error
}

// Multi fans every Item out to all sinks. A failing sink does not stop the others.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a Multi over sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Write sends item to every sink and joins their errors.
func (m *Multi) Write(ctx context.Context, item *stac.Item) error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Write(ctx, item); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error

	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ForTopic builds a publishing sink from a destination string:
// kafka://host:port[,host:port]/topic or an SNS topic ARN.
func ForTopic(ctx context.Context, topic string) (Sink, error) {
	switch {
	case strings.HasPrefix(topic, kafkaScheme):
		brokers, name, err := parseKafkaTopic(topic)
		if err != nil {
			return nil, err
		}

		return NewKafka(brokers, name), nil
	case strings.HasPrefix(topic, "arn:aws:sns:"):
		return NewSNSFromConfig(ctx, topic)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTopic, topic)
	}
}

// attribute is one piece of routing metadata attached to a published Item.
type attribute struct {
	key     string
	value   string
	numeric bool
}

// attributes lets subscribers filter on time, footprint and collection without
// decoding the Item.
func attributes(item *stac.Item) []attribute {
	attrs := []attribute{
		{key: "collection", value: item.Collection},
	}

	if dt, ok := item.Properties[stac.PropDatetime].(string); ok {
		attrs = append(attrs, attribute{key: "datetime", value: dt})
	}

	if len(item.BBox) == 4 { //nolint:mnd
		for i, name := range []string{"bbox_west", "bbox_south", "bbox_east", "bbox_north"} {
			attrs = append(attrs, attribute{
				key:     name,
				value:   strconv.FormatFloat(item.BBox[i], 'f', -1, 64),
				numeric: true,
			})
		}
	}

	return attrs
}
