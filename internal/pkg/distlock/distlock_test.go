package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "sequence-runner", time.Minute)
	b := NewRedisLock(client, "sequence-runner", time.Minute)

	got, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, got, "second holder must not acquire a held lock")

	require.NoError(t, a.Release(ctx))

	got, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestRedisLockReleaseIsOwnershipChecked(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "ab-evaluator", time.Minute)
	b := NewRedisLock(client, "ab-evaluator", time.Minute)

	got, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)

	// b never held the lock, so its release must be a no-op.
	require.NoError(t, b.Release(ctx))

	got, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, got, "a's lock must survive b's release attempt")
}

func TestRedisLockKeysAreIndependent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	runner := NewRedisLock(client, "sequence-runner", time.Minute)
	poller := NewRedisLock(client, "rss-poller", time.Minute)

	got, err := runner.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)

	got, err = poller.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, got, "different keys must not contend")
}

func TestNewLockPrefersRedis(t *testing.T) {
	client := newTestClient(t)

	lock := NewLock(client, nil, "rss-poller", time.Minute)
	_, ok := lock.(*RedisLock)
	assert.True(t, ok)

	lock = NewLock(nil, nil, "rss-poller", time.Minute)
	_, ok = lock.(*PGAdvisoryLock)
	assert.True(t, ok)
}
