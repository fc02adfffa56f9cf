// Package cache provides byte caches for fetched backing data.
//
// Three backends implement [Cache]:
//   - [FileCache]: one JSON file per entry, for the CLI (~/.cache/automation/)
//   - [RedisCache]: shared cache for several server instances
//   - [NullCache]: caching disabled
//
// Keys are built by a [Keyer] so that every backend sees the same key space,
// and [Instrument] reports hits, misses and writes to the observability hooks.
package cache

import (
	"context"
	"time"
)

// Default TTLs.
const (
	// FetchTTL bounds how long a fetched backing document is served from cache.
	FetchTTL = 5 * time.Minute

	// HTTPTTL bounds raw HTTP response caching.
	HTTPTTL = time.Hour
)

// Cache stores opaque byte values with an optional TTL.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}
