package points

import (
	"context"
	"sync"
)

// familyLocks serializes redemptions per family within this process.
// Entries are reference counted and dropped once nobody holds or waits on them.
type familyLocks struct {
	mu    sync.Mutex
	locks map[int64]*familyLock
}

type familyLock struct {
	ch   chan struct{}
	refs int
}

func newFamilyLocks() *familyLocks {
	return &familyLocks{locks: make(map[int64]*familyLock)}
}

// lock blocks until the family's lock is held or ctx is done. The returned
// func releases it.
func (l *familyLocks) lock(ctx context.Context, familyID int64) (func(), error) {
	l.mu.Lock()
	fl, ok := l.locks[familyID]
	if !ok {
		fl = &familyLock{ch: make(chan struct{}, 1)}
		l.locks[familyID] = fl
	}
	fl.refs++
	l.mu.Unlock()

	select {
	case fl.ch <- struct{}{}:
		return func() {
			<-fl.ch
			l.release(familyID, fl)
		}, nil
	case <-ctx.Done():
		l.release(familyID, fl)
		return nil, ctx.Err()
	}
}

func (l *familyLocks) release(familyID int64, fl *familyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fl.refs--
	if fl.refs == 0 {
		delete(l.locks, familyID)
	}
}

func (l *familyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
