package location

import (
	"context"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/types"
)

// Pickup reference point used across the geo tests. 0.001 degrees of
// latitude is roughly 111 meters.
var testPickup = types.Point{Lat: 40.7128, Lng: -74.0060}

func newTestIndex(t *testing.T) (*GeoIndex, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewGeoIndex(rdb), mr
}

func TestGeoIndexQueryRadiusReturnsSortedHitsWithinRadius(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	// Couriers laid out north of the pickup at increasing latitude offsets;
	// the last one sits about 6.7km out and must not appear in a 5km query.
	offsets := map[types.ID]float64{
		"c_near":  0.001,
		"c_mid":   0.004,
		"c_far":   0.010,
		"c_edge":  0.030,
		"c_outer": 0.060,
	}
	for id, dLat := range offsets {
		pt := types.Point{Lat: testPickup.Lat + dLat, Lng: testPickup.Lng}
		require.NoError(t, idx.Upsert(ctx, id, pt))
	}

	hits, err := idx.QueryRadius(ctx, testPickup, 5000)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	want := []types.ID{"c_near", "c_mid", "c_far", "c_edge"}
	for i, id := range want {
		assert.Equal(t, id, hits[i].CourierID, "position %d", i)
	}
	for i := 1; i < len(hits); i++ {
		assert.Less(t, hits[i-1].DistanceM, hits[i].DistanceM)
	}

	// Reported distances should agree with the great-circle distance.
	for _, h := range hits {
		expected := haversineM(testPickup.Lat, testPickup.Lng,
			testPickup.Lat+offsets[h.CourierID], testPickup.Lng)
		assert.InEpsilon(t, expected, h.DistanceM, 0.02, "courier %s", h.CourierID)
	}
}

// haversineM is the great-circle distance in meters between two points in
// decimal degrees, cross-checking the distances Redis reports.
func haversineM(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusM = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	rLat1 := toRad(lat1)
	rLat2 := toRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

func TestGeoIndexUpsertIsLatestWins(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "c1",
		types.Point{Lat: testPickup.Lat + 0.030, Lng: testPickup.Lng}))
	require.NoError(t, idx.Upsert(ctx, "c1",
		types.Point{Lat: testPickup.Lat + 0.001, Lng: testPickup.Lng}))

	hits, err := idx.QueryRadius(ctx, testPickup, 5000)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, types.ID("c1"), hits[0].CourierID)
	assert.Less(t, hits[0].DistanceM, 200.0, "the newer, closer position must win")
}

func TestGeoIndexRemoveDropsCourierImmediately(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "c1",
		types.Point{Lat: testPickup.Lat + 0.001, Lng: testPickup.Lng}))
	require.NoError(t, idx.Remove(ctx, "c1"))

	hits, err := idx.QueryRadius(ctx, testPickup, 5000)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestGeoIndexRemoveUnknownCourierIsNoError(t *testing.T) {
	idx, _ := newTestIndex(t)
	assert.NoError(t, idx.Remove(context.Background(), "nobody"))
}

func TestGeoIndexQueryRadiusEmptyIndex(t *testing.T) {
	idx, _ := newTestIndex(t)

	hits, err := idx.QueryRadius(context.Background(), testPickup, 5000)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestGeoIndexQueryRadiusZeroFallsBackToDefault(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "c1",
		types.Point{Lat: testPickup.Lat + 0.030, Lng: testPickup.Lng}))

	hits, err := idx.QueryRadius(ctx, testPickup, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1, "default radius must cover a courier 3.3km out")
}

func TestGeoIndexQueryRadiusBackendDown(t *testing.T) {
	idx, mr := newTestIndex(t)
	mr.Close()

	_, err := idx.QueryRadius(context.Background(), testPickup, 5000)
	assert.Error(t, err)
}
