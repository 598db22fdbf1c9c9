package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLock_Exclusive(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	token, ok, err := l.Lock(ctx, "slot:2025-03-03:3", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Lock(ctx, "slot:2025-03-03:3", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held key must not be granted twice")

	_, ok, err = l.Lock(ctx, "slot:2025-03-03:4", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys stay independent")

	require.NoError(t, l.Unlock(ctx, "slot:2025-03-03:3", token))

	_, ok, err = l.Lock(ctx, "slot:2025-03-03:3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLock_UnlockWithStaleToken(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	_, ok, err := l.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Unlock(ctx, "k", "not-the-owner"))

	_, ok, err = l.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalLock_Expires(t *testing.T) {
	l := NewLocalLock()
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := l.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)

	_, ok, err = l.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease is reclaimable")
}

func TestAcquire_TimesOut(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	_, ok, err := l.Lock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	release, err := Acquire(ctx, l, "k", time.Minute, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, release)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	release, err := Acquire(ctx, l, "k", time.Minute, time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	release2, err := Acquire(ctx, l, "k", time.Minute, time.Second)
	require.NoError(t, err)
	release2()
}

func TestAcquire_SerializesCriticalSection(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := Acquire(ctx, l, "k", time.Minute, 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	l := NewLocalLock()
	_, ok, err := l.Lock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = Acquire(ctx, l, "k", time.Minute, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
