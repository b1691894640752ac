package service

import (
	"context"
	"sync"
)

// productLocks serializes writers of the same product within this process.
// Writers in other processes are still caught by the version check in CommitEntry.
type productLocks struct {
	mu    sync.Mutex
	locks map[string]*productLock
}

type productLock struct {
	sem  chan struct{}
	refs int
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[string]*productLock)}
}

// acquire blocks until the product is free or ctx is done.
func (l *productLocks) acquire(ctx context.Context, productID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[productID]
	if !ok {
		lock = &productLock{sem: make(chan struct{}, 1)}
		l.locks[productID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
		return func() {
			<-lock.sem
			l.release(productID, lock)
		}, nil
	case <-ctx.Done():
		l.release(productID, lock)
		return nil, ctx.Err()
	}
}

func (l *productLocks) release(productID string, lock *productLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, productID)
	}
}
