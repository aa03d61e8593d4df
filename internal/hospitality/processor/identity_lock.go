package processor

import (
	"context"
	"sync"
)

// identityLocks serializes ingestion per identity while leaving different
// identities fully independent. Entries are reference counted and removed
// once the last waiter releases, so the map does not grow with the number
// of identities ever seen.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	ch   chan struct{}
	refs int
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*identityLock)}
}

// acquire takes the lock for key, waiting until the holder releases or ctx
// expires. On success the returned release function must be called exactly
// once.
func (l *identityLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &identityLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			l.release(key, entry)
		}, nil
	case <-ctx.Done():
		l.release(key, entry)
		return nil, ctx.Err()
	}
}

func (l *identityLocks) release(key string, entry *identityLock) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
