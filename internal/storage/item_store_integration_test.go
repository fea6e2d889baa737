package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/satstac/stac-sentinel/internal/config"
	"github.com/satstac/stac-sentinel/internal/ingestion"
	"github.com/satstac/stac-sentinel/internal/logging"
	"github.com/satstac/stac-sentinel/internal/stac"
)

func setupConnection(t *testing.T) *Connection {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	conn, err := NewConnection(ctx, NewConfig(testDB.URL))
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func indexItem(id string) *stac.Item {
	ring := orb.Ring{{5.77, 51.72}, {10.09, 51.72}, {10.09, 53.62}, {5.77, 53.62}, {5.77, 51.72}}

	item := stac.NewItem(id, "sentinel-s1-l1c", []string{"sar"}, ring, ring.Bound())
	item.Properties[stac.PropDatetime] = stac.FormatDatetime(time.Date(2017, 6, 15, 5, 33, 2, 0, time.UTC))

	return item
}

func TestItemStore_Integration(t *testing.T) {
	conn := setupConnection(t)
	ctx := context.Background()

	store, err := NewItemStore(conn, logging.Discard())
	require.NoError(t, err)

	item := indexItem("S1B_IW_GRDH_1SDV_20170615T053302_20170615T053327_006062_00AA3C")

	written, err := store.Upsert(ctx, item)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = store.Upsert(ctx, item)
	require.NoError(t, err)
	assert.False(t, written, "unchanged item is not rewritten")

	item.Properties["sat:relative_orbit"] = 34

	written, err = store.Upsert(ctx, item)
	require.NoError(t, err)
	assert.True(t, written)

	got, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.InDelta(t, 34, got.Properties["sat:relative_orbit"], 0)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrItemNotFound)

	n, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.Count(ctx, "sentinel-s2-l1c")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestItemStore_RejectsInvalidItem(t *testing.T) {
	conn := setupConnection(t)

	store, err := NewItemStore(conn, logging.Discard())
	require.NoError(t, err)

	item := indexItem("bad")
	delete(item.Properties, stac.PropDatetime)

	_, err = store.Upsert(context.Background(), item)
	require.ErrorIs(t, err, stac.ErrInvalidDatetime)
}

func TestRunStore_Integration(t *testing.T) {
	conn := setupConnection(t)
	ctx := context.Background()

	runs, err := NewRunStore(conn)
	require.NoError(t, err)

	id := uuid.New()
	start := time.Now()

	require.NoError(t, runs.StartRun(ctx, id, "sentinel-s2-l1c", start))
	require.NoError(t, runs.FinishRun(ctx, id, start.Add(time.Minute), ingestion.Stats{Scanned: 10, Filtered: 6, Ingested: 3, Failed: 1}))

	var ingested, failed int
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT ingested, failed FROM ingestion_runs WHERE run_id = $1`, id).Scan(&ingested, &failed))
	assert.Equal(t, 3, ingested)
	assert.Equal(t, 1, failed)

	require.ErrorIs(t, runs.FinishRun(ctx, uuid.New(), time.Now(), ingestion.Stats{}), ErrRunNotFound)
}

func TestMigrator_Integration(t *testing.T) {
	conn := setupConnection(t)

	m, err := NewMigrator(conn, logging.Discard())
	require.NoError(t, err)

	t.Cleanup(func() { _ = m.Close() })

	// SetupTestDatabase already applied everything
	require.NoError(t, m.Up())

	status, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(2), status.Version)
	assert.False(t, status.Dirty)
	assert.Equal(t, 2, status.Available)
}
