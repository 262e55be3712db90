package lib

import (
	"context"
	"sync"
)

type keyedLock struct {
	ch      chan struct{}
	waiters int // holders plus callers waiting for ch
}

// KeyedMutex serializes callers sharing the same key, e.g. transactions of one signer
// or syncs of one attestation. Entries are dropped once no caller holds or waits for them
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *KeyedMutex) acquire(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.waiters++
	return l
}

func (k *KeyedMutex) release(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l.waiters--
	if l.waiters == 0 {
		delete(k.locks, key)
	}
}

// LockCtx acquires the lock for key and returns the function releasing it.
// The returned function must be called exactly once
func (k *KeyedMutex) LockCtx(ctx context.Context, key string) (unlock func(), err error) {
	l := k.acquire(key)

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.release(key, l)
		})
	}, nil
}

func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
