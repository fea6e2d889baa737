package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/logging"
	"github.com/satstac/stac-sentinel/internal/stac"
)

type fakeIngester struct {
	collection string
	keys       *[]string
	fail       map[string]bool
}

func (f fakeIngester) Ingest(_ context.Context, key string) (*stac.Item, error) {
	*f.keys = append(*f.keys, f.collection+":"+key)

	if f.fail[key] {
		return nil, errors.New("convert failed")
	}

	return &stac.Item{ID: key}, nil
}

func newTestHandler(t *testing.T, collection string, fail map[string]bool) (*Handler, *[]string, *bytes.Buffer) {
	t.Helper()

	reg, err := collections.NewRegistry()
	require.NoError(t, err)

	var (
		keys []string
		logs bytes.Buffer
	)

	return &Handler{
		Registry:   reg,
		Collection: collection,
		Logger:     logging.NewWithWriter(&logs, slog.LevelInfo),
		NewIngest: func(col *collections.Collection) Ingester {
			return fakeIngester{collection: col.ID, keys: &keys, fail: fail}
		},
	}, &keys, &logs
}

func snsEvent(t *testing.T, messages ...any) events.SNSEvent {
	t.Helper()

	var event events.SNSEvent

	for i, msg := range messages {
		raw, ok := msg.(string)
		if !ok {
			data, err := json.Marshal(msg)
			require.NoError(t, err)

			raw = string(data)
		}

		event.Records = append(event.Records, events.SNSEventRecord{
			SNS: events.SNSEntity{MessageID: string(rune('a' + i)), Message: raw},
		})
	}

	return event
}

func s3Event(bucket string, keys ...string) events.S3Event {
	var event events.S3Event

	for _, key := range keys {
		event.Records = append(event.Records, events.S3EventRecord{
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: bucket},
				Object: events.S3Object{Key: key},
			},
		})
	}

	return event
}

func TestHandler_Invoke(t *testing.T) {
	h, keys, _ := newTestHandler(t, "", nil)

	summary, err := h.Invoke(context.Background(), snsEvent(t,
		s3Event("sentinel-s2-l1c",
			"tiles/57/U/VB/2017/10/23/0/tileInfo.json",
			"tiles/57/U/VB/2017/10/23/0/B01.jp2",
		),
	))
	require.NoError(t, err)

	assert.Equal(t, Summary{Ingested: 1, Skipped: 1}, summary)
	assert.Equal(t, []string{"sentinel-s2-l1c:tiles/57/U/VB/2017/10/23/0/tileInfo.json"}, *keys)
}

func TestHandler_FixedCollectionAndEncodedKey(t *testing.T) {
	h, keys, _ := newTestHandler(t, collections.SentinelS1L1C, nil)

	summary, err := h.Invoke(context.Background(), snsEvent(t,
		s3Event("my-mirror", "GRD/2017/6/15/IW/DV/S1B%2BIW/productInfo.json"),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Ingested)
	assert.Equal(t, []string{"sentinel-s1-l1c:GRD/2017/6/15/IW/DV/S1B+IW/productInfo.json"}, *keys)
}

func TestHandler_FailuresAreLoggedNotReturned(t *testing.T) {
	bad := "tiles/1/C/CV/2018/1/1/0/tileInfo.json"
	h, keys, logs := newTestHandler(t, "", map[string]bool{bad: true})

	summary, err := h.Invoke(context.Background(), snsEvent(t,
		"{not json",
		s3Event("sentinel-s2-l1c", bad, "tiles/57/U/VB/2017/10/23/0/tileInfo.json"),
		s3Event("unknown-bucket", "x/tileInfo.json"),
	))
	require.NoError(t, err)

	assert.Equal(t, Summary{Ingested: 1, Skipped: 1, Failed: 2}, summary)
	assert.Len(t, *keys, 2)
	assert.Contains(t, logs.String(), "Failed to decode S3 notification")
	assert.Contains(t, logs.String(), "Failed to ingest scene")
}

func TestHandler_ReusesIngesterPerCollection(t *testing.T) {
	h, _, _ := newTestHandler(t, "", nil)

	created := 0
	newIngest := h.NewIngest
	h.NewIngest = func(col *collections.Collection) Ingester {
		created++

		return newIngest(col)
	}

	_, err := h.Invoke(context.Background(), snsEvent(t,
		s3Event("sentinel-s2-l1c", "a/tileInfo.json", "b/tileInfo.json"),
		s3Event("sentinel-s2-l2a", "c/tileInfo.json"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, created)
}

func TestNewSink_DefaultsToStdout(t *testing.T) {
	s, err := newSink(context.Background(), nil)
	require.NoError(t, err)

	assert.NotNil(t, s)
}
