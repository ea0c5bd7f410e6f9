package infra

import "github.com/redis/go-redis/v9"

// NewRedis builds the Redis client backing the geospatial index.
func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}
