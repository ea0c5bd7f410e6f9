package location

import (
	"context"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/types"
)

const (
	// DefaultRadiusM is used when an order does not override the search radius.
	DefaultRadiusM = 5000

	courierGeoKey = "geo:couriers"
)

// GeoIndex is the Redis GEO adapter. Entries are latest-wins; a removed
// courier disappears from radius queries immediately.
type GeoIndex struct {
	rdb *redis.Client
	key string
}

func NewGeoIndex(rdb *redis.Client) *GeoIndex {
	return &GeoIndex{rdb: rdb, key: courierGeoKey}
}

// Upsert replaces the courier's last known position.
func (g *GeoIndex) Upsert(ctx context.Context, id types.ID, pt types.Point) error {
	return g.rdb.GeoAdd(ctx, g.key, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pt.Lng,
		Latitude:  pt.Lat,
	}).Err()
}

// Remove deletes the courier's entry (courier went offline).
func (g *GeoIndex) Remove(ctx context.Context, id types.ID) error {
	return g.rdb.ZRem(ctx, g.key, string(id)).Err()
}

// QueryRadius returns every indexed courier within radiusM meters of pt,
// ascending by distance. Zero hits is an empty slice, not an error.
func (g *GeoIndex) QueryRadius(ctx context.Context, pt types.Point, radiusM float64) ([]Nearby, error) {
	if radiusM <= 0 {
		radiusM = DefaultRadiusM
	}
	results, err := g.rdb.GeoRadius(ctx, g.key, pt.Lng, pt.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusM,
		Unit:     "m",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Nearby, 0, len(results))
	for _, r := range results {
		out = append(out, Nearby{CourierID: types.ID(r.Name), DistanceM: r.Dist})
	}
	return out, nil
}
