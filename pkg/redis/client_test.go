package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitInvalidURL(t *testing.T) {
	err := Init("://invalid-url", "")
	assert.Error(t, err)
}

func TestBasicOps(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	SetClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	assert.NotNil(t, GetClient())

	ctx := context.Background()

	assert.NoError(t, Set(ctx, "k", "v", time.Minute))

	val, err := Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, "v", val)

	assert.NoError(t, Del(ctx, "k"))

	_, err = Get(ctx, "k")
	assert.ErrorIs(t, err, goredis.Nil)
}

func TestBasicOpsWithUnreachableRedis(t *testing.T) {
	cli := goredis.NewClient(&goredis.Options{
		Addr:         "127.0.0.1:0", // invalid/unreachable
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	SetClient(cli)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Error(t, Set(ctx, "k", "v", time.Second))
	_, err := Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, Del(ctx, "k"))
}
