package lib

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.LockCtx(context.Background(), "0xsigner")
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Zero(t, km.Len(), "released keys are dropped")
}

func TestKeyedMutexDifferentKeysIndependent(t *testing.T) {
	km := NewKeyedMutex()
	unlockA, err := km.LockCtx(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	unlockB, err := km.LockCtx(ctx, "b")
	require.NoError(t, err)
	unlockB()

	_, err = km.LockCtx(ctx, "a")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, km.Len())
}

func TestKeyedMutexDoubleUnlock(t *testing.T) {
	km := NewKeyedMutex()
	unlock, err := km.LockCtx(context.Background(), "a")
	require.NoError(t, err)
	unlock()
	unlock()

	unlock, err = km.LockCtx(context.Background(), "a")
	require.NoError(t, err)
	unlock()
	require.Zero(t, km.Len())
}
