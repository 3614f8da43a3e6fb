package alerting

import (
	"context"
	"sync"
)

// trainLocks serializes evaluations per train. Entries are reference counted
// and removed once no evaluation holds or waits for them.
type trainLocks struct {
	mu    sync.Mutex
	locks map[string]*trainLock
}

type trainLock struct {
	sem  chan struct{}
	refs int
}

func newTrainLocks() *trainLocks {
	return &trainLocks{locks: make(map[string]*trainLock)}
}

// Lock blocks until the train's lock is held or ctx is done. The returned
// function releases it.
func (l *trainLocks) Lock(ctx context.Context, trainNumber string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[trainNumber]
	if !ok {
		lock = &trainLock{sem: make(chan struct{}, 1)}
		l.locks[trainNumber] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.sem <- struct{}{}:
		return func() {
			<-lock.sem
			l.release(trainNumber, lock)
		}, nil
	case <-ctx.Done():
		l.release(trainNumber, lock)
		return nil, ctx.Err()
	}
}

func (l *trainLocks) release(trainNumber string, lock *trainLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, trainNumber)
	}
}

func (l *trainLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
