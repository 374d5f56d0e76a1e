package cache

import (
	"context"
	"fmt"

	"menu-allergen-scanner/internal/constants"
	"menu-allergen-scanner/pkg/config"
	"menu-allergen-scanner/pkg/metrics"
)

// Instrumented counts hits and misses of the wrapped cache.
type Instrumented struct {
	Cache
	reg *metrics.Registry
}

func NewInstrumented(c Cache, reg *metrics.Registry) *Instrumented {
	if reg == nil {
		reg = metrics.Default
	}
	return &Instrumented{Cache: c, reg: reg}
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok, err := i.Cache.Get(ctx, key)
	if err == nil {
		i.reg.ObserveCache(i.Cache.Name(), ok)
	}
	return b, ok, err
}

// New builds the backend named by cfg.CacheBackend, instrumented with reg.
func New(cfg *config.Config, reg *metrics.Registry) (Cache, error) {
	var c Cache
	switch cfg.CacheBackend {
	case config.CacheRedis:
		r, err := NewRedis(cfg.Redis, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		c = r
	case config.CacheMemory, "":
		c = NewMemory(cfg.CacheMaxSize, cfg.CacheTTL, constants.CacheCleanupInterval)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.CacheBackend)
	}
	return NewInstrumented(c, reg), nil
}
