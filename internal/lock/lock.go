// Package lock provides keyed mutual exclusion for sync and credential
// refresh. Local serializes within one process; Redis serializes across
// replicas sharing a Redis instance.
package lock

import (
	"context"
	"sync"
)

// Locker acquires named locks. The returned unlock func is safe to call more
// than once.
type Locker interface {
	// TryLock acquires key without waiting. ok is false when the key is held.
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
	// Lock waits until key is acquired or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process keyed semaphore.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// TryLock acquires key if it is free.
func (l *Local) TryLock(_ context.Context, key string) (func(), bool, error) {
	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
		return l.unlocker(key, s), true, nil
	default:
		l.unref(key, s)
		return nil, false, nil
	}
}

// Lock waits for key.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
		return l.unlocker(key, s), nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

// Held reports whether key is currently locked.
func (l *Local) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	return ok && len(s.ch) == 1
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *Local) unlocker(key string, s *slot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}
}
