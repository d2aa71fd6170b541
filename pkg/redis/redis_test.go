package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authgate/pkg/redis"
)

func config(addr string) redis.Config {
	return redis.Config{
		ConnectionString: "redis://" + addr + "/0",
		PoolSize:         2,
		RetryAttempts:    1,
		RetryInterval:    10 * time.Millisecond,
	}
}

func TestConnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr := miniredis.RunT(t)

	client, err := redis.Connect(ctx, config(mr.Addr()))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx).Err())

	require.NoError(t, redis.Healthcheck(client)(ctx))
	require.NoError(t, redis.Shutdown(client)(ctx))
}

func TestConnect_BadURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := redis.Connect(ctx, redis.Config{})
	require.ErrorIs(t, err, redis.ErrEmptyConnectionURL)

	_, err = redis.Connect(ctx, redis.Config{ConnectionString: "http://nope"})
	require.ErrorIs(t, err, redis.ErrFailedToParseURL)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := config("127.0.0.1:1")
	cfg.DialTimeout = 50 * time.Millisecond
	_, err := redis.Connect(ctx, cfg)
	require.ErrorIs(t, err, redis.ErrConnectionFailed)
}

func TestHealthcheck_NilClient(t *testing.T) {
	t.Parallel()
	require.ErrorIs(t, redis.Healthcheck(nil)(context.Background()), redis.ErrHealthcheckFailed)
}
