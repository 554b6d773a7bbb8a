package rwlock_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockcache/pkg/blockcache/internal/rwlock"
)

func TestLockUnlockRoundTrip(t *testing.T) {
	t.Parallel()

	l := rwlock.New(nil)

	require.NoError(t, l.Lock())
	l.Unlock(nil)

	require.NoError(t, l.RLock())
	l.RUnlock()
}

func TestPoisonsOnPanicRecover(t *testing.T) {
	t.Parallel()

	l := rwlock.New(nil)

	err := rwlock.WithWriteLock(l, func() error {
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.False(t, l.Poisoned())

	assert.Panics(t, func() {
		_ = rwlock.WithWriteLock(l, func() error {
			panic("writer panic")
		})
	})

	assert.True(t, l.Poisoned())

	assert.ErrorIs(t, l.Lock(), rwlock.ErrPoisoned)

	assert.ErrorIs(t, l.RLock(), rwlock.ErrPoisoned)
}

func TestCloneSharesLockAndRefcount(t *testing.T) {
	t.Parallel()

	destroyed := false
	l := rwlock.New(func() { destroyed = true })
	clone := l.Clone()

	require.NoError(t, clone.Lock())
	assert.False(t, l.TryLock())
	clone.Unlock(nil)

	l.Release()
	assert.False(t, destroyed)

	clone.Release()
	assert.True(t, destroyed)
}

func TestTryLockFailsWhenHeld(t *testing.T) {
	t.Parallel()

	l := rwlock.New(nil)
	require.NoError(t, l.Lock())

	assert.False(t, l.TryLock())
	assert.False(t, l.TryRLock())

	l.Unlock(nil)

	assert.True(t, l.TryLock())
	l.Unlock(nil)
}
