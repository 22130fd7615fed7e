// Package cache stores opaque byte payloads with a per-entry TTL.
//
// Three backends share the [Cache] interface:
//
//   - [FileCache]: hash-sharded JSON files, used by the CLI
//   - [RedisCache]: go-redis with a key prefix, used by the API server
//   - [NullCache]: stores nothing, used in tests and with --no-cache
//
// Keys are built by a [Keyer] so that HTTP responses from ProductBoard and
// Azure DevOps, built hierarchies and sync plans never collide. Wrap a keyer
// in a [ScopedKeyer] to isolate one workspace's entries from another's.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the stored bytes and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// GetJSON reads key and decodes it into v. Entries that no longer decode are
// reported as misses.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		_ = c.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// NullCache stores nothing: every Get misses and clients always call the live
// API.
type NullCache struct{}

// NewNullCache returns a cache that never hits.
func NewNullCache() *NullCache { return &NullCache{} }

func (*NullCache) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, nil }
func (*NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (*NullCache) Delete(context.Context, string) error                      { return nil }
func (*NullCache) Close() error                                              { return nil }

var _ Cache = (*NullCache)(nil)
