package redisclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*miniredis.Miniredis, Locker) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisSlotLocker(client, 5*time.Second)
}

func slotKey(doctorID uuid.UUID, date, start string) string {
	return fmt.Sprintf("lock:slot:%s:%s:%s", doctorID, date, start)
}

func TestWithSlotLockRunsCriticalSection(t *testing.T) {
	mr, locker := newTestLocker(t)
	doctorID := uuid.New()

	ran := false
	err := locker.WithSlotLock(context.Background(), doctorID, "2025-09-01", "09:00", func(ctx context.Context) error {
		ran = true
		// the lock key is held while fn runs
		assert.True(t, mr.Exists(slotKey(doctorID, "2025-09-01", "09:00")))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// released on return
	assert.False(t, mr.Exists(slotKey(doctorID, "2025-09-01", "09:00")))
}

func TestWithSlotLockHeldByAnother(t *testing.T) {
	mr, locker := newTestLocker(t)
	doctorID := uuid.New()

	require.NoError(t, mr.Set(slotKey(doctorID, "2025-09-01", "09:00"), "someone-else"))

	err := locker.WithSlotLock(context.Background(), doctorID, "2025-09-01", "09:00", func(ctx context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// the foreign holder's key is untouched
	val, err := mr.Get(slotKey(doctorID, "2025-09-01", "09:00"))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestWithSlotLockDifferentSlotsDoNotContend(t *testing.T) {
	mr, locker := newTestLocker(t)
	doctorID := uuid.New()

	require.NoError(t, mr.Set(slotKey(doctorID, "2025-09-01", "09:00"), "someone-else"))

	err := locker.WithSlotLock(context.Background(), doctorID, "2025-09-01", "09:30", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithSlotLockReleasedOnError(t *testing.T) {
	mr, locker := newTestLocker(t)
	doctorID := uuid.New()
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), doctorID, "2025-09-01", "09:00", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.False(t, mr.Exists(slotKey(doctorID, "2025-09-01", "09:00")))
}

func TestWithSlotLockTokenSafeRelease(t *testing.T) {
	mr, locker := newTestLocker(t)
	doctorID := uuid.New()
	key := slotKey(doctorID, "2025-09-01", "09:00")

	err := locker.WithSlotLock(context.Background(), doctorID, "2025-09-01", "09:00", func(ctx context.Context) error {
		// the lock expires mid-section and another writer takes it
		mr.Del(key)
		require.NoError(t, mr.Set(key, "new-owner"))
		return nil
	})
	require.NoError(t, err)

	// the release must not delete a lock it no longer owns
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "new-owner", val)
}
