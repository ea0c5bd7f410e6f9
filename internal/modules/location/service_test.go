package location

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLocationService(t *testing.T) (*Service, *GeoIndex, *WriteBackQueue, *fakeWriter) {
	t.Helper()
	idx, _ := newTestIndex(t)
	w := &fakeWriter{}
	q := NewWriteBackQueue(w, slowQueueCfg(100), testLogger())
	q.Start()
	t.Cleanup(q.Stop)
	return NewService(idx, q, testLogger()), idx, q, w
}

func TestReportUpdatesIndexBeforeDurableWrite(t *testing.T) {
	svc, idx, q, w := newTestLocationService(t)
	ctx := context.Background()

	svc.Report(ctx, pos("c1"))

	// The position is queryable immediately, while the history write is
	// still only queued.
	hits, err := idx.QueryRadius(ctx, testPickup, 5000)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, types.ID("c1"), hits[0].CourierID)
	assert.Empty(t, w.ids())

	require.NoError(t, q.Flush(ctx))
	assert.Equal(t, []types.ID{"c1"}, w.ids())
}

func TestReportDefaultsCapturedAt(t *testing.T) {
	svc, _, q, w := newTestLocationService(t)
	ctx := context.Background()

	svc.Report(ctx, Position{CourierID: "c1", Point: testPickup})
	require.NoError(t, q.Flush(ctx))

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.rows, 1)
	assert.False(t, w.rows[0].CapturedAt.IsZero())
}

func TestReportSurvivesIndexOutage(t *testing.T) {
	mr := newClosedRedis(t)
	idx := NewGeoIndex(mr)
	w := &fakeWriter{}
	q := NewWriteBackQueue(w, slowQueueCfg(100), testLogger())
	q.Start()
	t.Cleanup(q.Stop)
	svc := NewService(idx, q, testLogger())

	// The index write fails but the durable write still goes through.
	svc.Report(context.Background(), pos("c1"))
	require.NoError(t, q.Flush(context.Background()))
	assert.Equal(t, []types.ID{"c1"}, w.ids())
}

func TestOfflineRemovesFromIndex(t *testing.T) {
	svc, idx, _, _ := newTestLocationService(t)
	ctx := context.Background()

	svc.Report(ctx, pos("c1"))
	svc.Report(ctx, pos("c2"))
	svc.Offline(ctx, "c1")

	hits, err := idx.QueryRadius(ctx, testPickup, 5000)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, types.ID("c2"), hits[0].CourierID)
}

// newClosedRedis returns a client whose backend is already gone, for the
// degraded-index paths.
func newClosedRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
