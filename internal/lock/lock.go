// Package lock provides keyed mutual exclusion for version allocation.
// Local guards keys inside one process; Redis guards them across processes
// sharing a database.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired is returned when a lock could not be taken before the
// context ended.
var ErrNotAcquired = errors.New("lock: not acquired")

// retryInterval is how long Lock waits between attempts.
const retryInterval = 25 * time.Millisecond

// Locker takes a lock on key and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process Locker backed by a sync.Map.
type Local struct {
	store sync.Map
}

// NewLocal returns an empty in-process Locker.
func NewLocal() *Local {
	return &Local{}
}

// TryLock takes key if it is free.
func (l *Local) TryLock(key string) bool {
	_, loaded := l.store.LoadOrStore(key, struct{}{})
	return !loaded
}

// Unlock frees key.
func (l *Local) Unlock(key string) {
	l.store.Delete(key)
}

// Lock waits until key is free or ctx ends.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	for {
		if l.TryLock(key) {
			return func() { l.Unlock(key) }, nil
		}
		if err := wait(ctx); err != nil {
			return nil, err
		}
	}
}

func wait(ctx context.Context) error {
	t := time.NewTimer(retryInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.Join(ErrNotAcquired, ctx.Err())
	case <-t.C:
		return nil
	}
}
