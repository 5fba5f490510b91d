package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/encore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestWithLockSerializesHolders(t *testing.T) {
	srv, client := newRedis(t)
	locker := NewLocker(client, time.Second)
	ctx := context.Background()

	err := locker.WithLock(ctx, "finance:payment:1", func() error {
		assert.True(t, srv.Exists("finance:payment:1"))

		inner := locker.WithLock(ctx, "finance:payment:1", func() error {
			t.Fatal("second holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockBusy)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, srv.Exists("finance:payment:1"))
}

func TestWithLockReleasesOnError(t *testing.T) {
	srv, client := newRedis(t)
	locker := NewLocker(client, time.Second)

	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), "k", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, srv.Exists("k"))
}

func TestNilLockerRunsUnguarded(t *testing.T) {
	var locker *Locker
	ran := false
	require.NoError(t, locker.WithLock(context.Background(), "k", func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	assert.Nil(t, NewLocker(nil, time.Second))
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	srv, client := newRedis(t)
	locker := NewLocker(client, time.Second)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "k", "not-the-owner"))
	assert.True(t, srv.Exists("k"))
}

func TestUploadLimiterExhaustsBurst(t *testing.T) {
	_, client := newRedis(t)
	cfg := config.Config{Redis: config.RedisConfig{UploadRate: 0.01, UploadBurst: 2}}
	limiter := NewUploadLimiter(cfg, NewTokenBucket(client))
	require.True(t, limiter.Enabled())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "42")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := limiter.Allow(ctx, "42")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// Buckets are per user.
	res, err = limiter.Allow(ctx, "43")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestUploadLimiterDisabled(t *testing.T) {
	limiter := NewUploadLimiter(config.Config{}, nil)
	assert.False(t, limiter.Enabled())
	res, err := limiter.Allow(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
