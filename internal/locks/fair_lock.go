package locks

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// FairLock is a mutex that grants waiters in arrival order.
// A semaphore.Weighted of size one never lets a new caller jump a queued waiter.
type FairLock struct {
	sem *semaphore.Weighted
}

func NewFairLock() *FairLock {
	return &FairLock{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the lock is granted. It cannot be cancelled once queued.
func (l *FairLock) Lock() {
	// Acquire only fails when ctx is done; Background never is.
	_ = l.sem.Acquire(context.Background(), 1)
}

func (l *FairLock) Unlock() {
	l.sem.Release(1)
}

// TryLock takes the lock only if it is free and nobody is waiting for it.
func (l *FairLock) TryLock() bool {
	return l.sem.TryAcquire(1)
}
