package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menu-allergen-scanner/pkg/config"
	errs "menu-allergen-scanner/pkg/errors"
)

func TestRedis_GetHitAndMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisWithClient(client, "menuscan:", time.Hour)
	ctx := context.Background()

	mock.ExpectGet("menuscan:hit").SetVal(`{"items":1}`)
	mock.ExpectGet("menuscan:miss").RedisNil()

	b, ok, err := c.Get(ctx, "hit")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"items":1}`, string(b))

	_, ok, err = c.Get(ctx, "miss")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_SetUsesDefaultTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisWithClient(client, "p:", 30*time.Minute)
	ctx := context.Background()

	mock.ExpectSet("p:k", []byte("v"), 30*time.Minute).SetVal("OK")
	mock.ExpectSet("p:short", []byte("v"), time.Minute).SetVal("OK")
	mock.ExpectSet("p:forever", []byte("v"), 0).SetVal("OK")

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), -1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_ErrorsAreExternal(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisWithClient(client, "", time.Hour)
	ctx := context.Background()

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	mock.ExpectPing().SetErr(errors.New("connection refused"))
	mock.ExpectDel("k").SetErr(errors.New("connection refused"))

	_, _, err := c.Get(ctx, "k")
	assert.True(t, errs.Is(err, errs.ErrExternal))
	assert.True(t, errs.Is(c.Ping(ctx), errs.ErrExternal))
	assert.True(t, errs.Is(c.Delete(ctx, "k"), errs.ErrExternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_JSONRoundTripThroughHelpers(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisWithClient(client, "", time.Hour)
	ctx := context.Background()

	mock.ExpectGet("scan").SetVal(`{"status":"menu"}`)
	got, ok, err := GetJSON[map[string]string](ctx, c, "scan")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "menu", got["status"])
}

func TestNewRedis_RequiresAddr(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{}, time.Hour)
	assert.True(t, errs.Is(err, errs.ErrConfig))

	r, err := NewRedis(config.RedisConfig{Addr: "localhost:6379"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "redis", r.Name())
	_ = r.Close()
}

func TestNew_SelectsBackend(t *testing.T) {
	c, err := New(&config.Config{CacheBackend: config.CacheMemory, CacheMaxSize: 5, CacheTTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Name())
	_ = c.Close()

	_, err = New(&config.Config{CacheBackend: "memcached"}, nil)
	assert.Error(t, err)
}
