package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/satstac/stac-sentinel/internal/stac"
)

const (
	kafkaScheme       = "kafka://"
	kafkaWriteTimeout = 10 * time.Second
)

// MessageWriter is the part of *kafka.Writer the Kafka sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ MessageWriter = (*kafka.Writer)(nil)

// Kafka publishes each Item as one message keyed by Item id.
type Kafka struct {
	writer MessageWriter
}

// NewKafka creates a Kafka sink producing to topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return NewKafkaWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           kafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	})
}

// NewKafkaWithWriter wraps an existing writer.
func NewKafkaWithWriter(w MessageWriter) *Kafka {
	return &Kafka{writer: w}
}

// Write publishes item.
func (k *Kafka) Write(ctx context.Context, item *stac.Item) error {
	msg, err := kafkaMessage(item)
	if err != nil {
		return err
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish item %s to kafka: %w", item.ID, err)
	}

	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}

	return nil
}

func kafkaMessage(item *stac.Item) (kafka.Message, error) {
	value, err := json.Marshal(item)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode item %s: %w", item.ID, err)
	}

	attrs := attributes(item)
	headers := make([]kafka.Header, 0, len(attrs))

	for _, a := range attrs {
		headers = append(headers, kafka.Header{Key: a.key, Value: []byte(a.value)})
	}

	return kafka.Message{Key: []byte(item.ID), Value: value, Headers: headers}, nil
}

// parseKafkaTopic splits kafka://host:port[,host:port]/topic.
func parseKafkaTopic(raw string) ([]string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUnsupportedTopic, err)
	}

	topic := strings.Trim(u.Path, "/")
	if u.Host == "" || topic == "" {
		return nil, "", fmt.Errorf("%w: %q needs brokers and a topic", ErrUnsupportedTopic, raw)
	}

	return strings.Split(u.Host, ","), topic, nil
}
