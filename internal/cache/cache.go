// Package cache stores scan results and upstream lookups keyed by content hash.
package cache

import (
	"context"
	"encoding/json"
	"time"

	errs "menu-allergen-scanner/pkg/errors"
)

// Cache is a byte-oriented TTL store. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Name() string
	Close() error
}

// GetJSON decodes the value at key into T.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var v T
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, errs.NewParse("cache.GetJSON", c.Name(), "corrupt cache entry", string(b), err)
	}
	return v, true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errs.NewBiz("cache.SetJSON", "encode cache entry", err)
	}
	return c.Set(ctx, key, b, ttl)
}
