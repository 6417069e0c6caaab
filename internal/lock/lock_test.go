package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "installments"), mr
}

func TestTryLockExcludesSecondHolder(t *testing.T) {
	l, mr := setupLocker(t)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "overdue", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("installments:overdue"))

	_, ok, err = l.TryLock(ctx, "overdue", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("installments:overdue"))

	release, ok, err = l.TryLock(ctx, "overdue", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, release(ctx))
}

func TestReleaseLeavesAnotherHoldersKey(t *testing.T) {
	l, mr := setupLocker(t)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "reminders", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The first holder's lease runs out and another replica takes over.
	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, "reminders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists("installments:reminders"))
}

func TestTryLockRejectsEmptyKey(t *testing.T) {
	l, _ := setupLocker(t)
	_, _, err := l.TryLock(context.Background(), "  ", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = Connect(context.Background(), mr.Addr())
	assert.Error(t, err)
}
