package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/inventory"
	"github.com/satstac/stac-sentinel/internal/logging"
	"github.com/satstac/stac-sentinel/internal/sink"
)

func TestParseFilter(t *testing.T) {
	filter, err := parseFilter("tiles/57", "2017-10-01", "2017-10-31")
	require.NoError(t, err)

	assert.Equal(t, "tiles/57", filter.Prefix)
	assert.Equal(t, time.Date(2017, 10, 1, 0, 0, 0, 0, time.UTC), filter.StartDate)
	assert.Equal(t, time.Date(2017, 10, 31, 0, 0, 0, 0, time.UTC), filter.EndDate)

	_, err = parseFilter("", "yesterday", "")
	require.Error(t, err)

	_, err = parseFilter("", "2017-10-31", "2017-10-01")
	require.Error(t, err)

	filter, err = parseFilter("", "", "")
	require.NoError(t, err)
	assert.True(t, filter.StartDate.IsZero())
}

func TestNewSinks(t *testing.T) {
	ctx := context.Background()

	t.Run("stdout only", func(t *testing.T) {
		out, cleanup, err := newSinks(ctx, sinkOptions{})
		require.NoError(t, err)
		defer cleanup(logging.Discard())

		assert.Equal(t, 1, out.Len())
	})

	t.Run("quiet with save dir", func(t *testing.T) {
		out, cleanup, err := newSinks(ctx, sinkOptions{quiet: true, saveDir: t.TempDir()})
		require.NoError(t, err)
		defer cleanup(logging.Discard())

		assert.Equal(t, 1, out.Len())
	})

	t.Run("kafka topic", func(t *testing.T) {
		out, cleanup, err := newSinks(ctx, sinkOptions{topics: []string{"kafka://localhost:9092/items"}})
		require.NoError(t, err)
		defer cleanup(logging.Discard())

		assert.Equal(t, 2, out.Len())
	})

	t.Run("unsupported topic", func(t *testing.T) {
		_, _, err := newSinks(ctx, sinkOptions{topics: []string{"amqp://broker/items"}})
		assert.ErrorIs(t, err, sink.ErrUnsupportedTopic)
	})

	t.Run("template without save", func(t *testing.T) {
		_, _, err := newSinks(ctx, sinkOptions{pathTemplate: "${id}.json"})
		assert.Error(t, err)
	})
}

func TestNewSource_InventoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.csv")
	require.NoError(t, os.WriteFile(path, []byte("datetime,path\n2017-10-23,tiles/57/U/VB/2017/10/23/0/tileInfo.json\n"), 0o600))

	reg, err := collections.NewRegistry()
	require.NoError(t, err)

	col, err := reg.Get(collections.SentinelS2L1C)
	require.NoError(t, err)

	source, err := newSource(context.Background(), col, path, logging.Discard())
	require.NoError(t, err)

	var keys []string

	require.NoError(t, source.Walk(context.Background(), func(r inventory.Record) error {
		keys = append(keys, r.Key)

		return nil
	}))

	assert.Equal(t, []string{"tiles/57/U/VB/2017/10/23/0/tileInfo.json"}, keys)
}

func TestIndexDeps_Nil(t *testing.T) {
	var deps *indexDeps

	assert.Nil(t, deps.itemStore())
	assert.NotPanics(t, deps.Close)
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("connection reset") }

func TestIndexDeps_CloseFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer

	deps := &indexDeps{closer: failingCloser{}, logger: logging.NewWithWriter(&buf, slog.LevelInfo)}
	deps.Close()

	assert.Contains(t, buf.String(), "Failed to close item index connection")
	assert.Contains(t, buf.String(), "connection reset")
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestRootCommand_UnknownCollection(t *testing.T) {
	t.Setenv("STAC_SENTINEL_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	var stderr bytes.Buffer

	rootCmd.SetArgs([]string{"landsat-8-l1", "--inventory-file", "scenes.csv", "--log", "4"})
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, collections.ErrUnsupportedCollection)
}

func TestRootCommand_RequiresCollection(t *testing.T) {
	rootCmd.SetArgs([]string{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Error(t, rootCmd.ExecuteContext(context.Background()))
}
