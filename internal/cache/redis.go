package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
)

// Redis stores entries in a shared Redis so scans are reused across replicas.
type Redis struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedis dials lazily; the first command or Ping reports connectivity.
func NewRedis(cfg config.RedisConfig, defaultTTL time.Duration) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errs.MissingKey("cache.NewRedis", "REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisWithClient(client, cfg.KeyPrefix, defaultTTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, defaultTTL time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.NewExternal("cache.Redis.Get", "redis", "get failed", err)
	}
	return b, true, nil
}

// Set stores value; ttl 0 uses the default TTL, negative stores without expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.defaultTTL
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return errs.NewExternal("cache.Redis.Set", "redis", "set failed", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errs.NewExternal("cache.Redis.Delete", "redis", "delete failed", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errs.NewExternal("cache.Redis.Ping", "redis", "ping failed", err)
	}
	return nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Close() error { return r.client.Close() }
