// Package keymutex provides at-most-one-in-flight-per-key execution for
// compound operations that touch more than one record without a multi-document
// transaction. Operations on the same key run strictly one at a time in
// arrival order; operations on different keys run fully concurrently.
package keymutex

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAcquireTimeout is returned when a caller waited the full acquisition
// timeout without the key being released. Callers should retry later; the
// data itself is untouched.
var ErrAcquireTimeout = errors.New("keymutex: timed out waiting for key")

const DefaultAcquireTimeout = 5 * time.Second

type waiter struct {
	ready chan struct{}
}

type entry struct {
	held    bool
	waiters []*waiter
}

// Serializer is a registry of per-key FIFO mutexes. Entries are created on
// first use and removed as soon as a key's queue drains, so the table never
// grows beyond the set of keys currently in flight.
type Serializer struct {
	mu             sync.Mutex
	keys           map[string]*entry
	acquireTimeout time.Duration
}

func New(acquireTimeout time.Duration) *Serializer {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &Serializer{
		keys:           make(map[string]*entry),
		acquireTimeout: acquireTimeout,
	}
}

// RunExclusive runs fn while holding the key exclusively. The key is released
// when fn returns, whether or not it returned an error, so a failing
// operation never wedges the queue behind it. A caller that cannot acquire
// the key within the timeout gets ErrAcquireTimeout; a caller whose ctx is
// cancelled while queued gets the ctx error. Neither runs fn.
func (s *Serializer) RunExclusive(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := s.acquire(ctx, key); err != nil {
		return err
	}
	defer s.release(key)
	return fn(ctx)
}

func (s *Serializer) acquire(ctx context.Context, key string) error {
	s.mu.Lock()
	e, ok := s.keys[key]
	if !ok {
		e = &entry{}
		s.keys[key] = e
	}
	if !e.held && len(e.waiters) == 0 {
		e.held = true
		s.mu.Unlock()
		return nil
	}

	// Queue behind the current holder. Waiters are granted in FIFO order.
	w := &waiter{ready: make(chan struct{})}
	e.waiters = append(e.waiters, w)
	s.mu.Unlock()

	timer := time.NewTimer(s.acquireTimeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		return s.giveUp(key, w, ctx.Err())
	case <-timer.C:
		return s.giveUp(key, w, ErrAcquireTimeout)
	}
}

// giveUp removes an abandoned waiter from the queue. If the grant raced the
// abandonment, ownership already transferred to us and must be passed on so
// the key does not stay locked forever.
func (s *Serializer) giveUp(key string, w *waiter, cause error) error {
	s.mu.Lock()
	e := s.keys[key]
	if e == nil {
		s.mu.Unlock()
		return cause
	}
	for i, q := range e.waiters {
		if q == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			s.mu.Unlock()
			return cause
		}
	}
	s.mu.Unlock()

	s.release(key)
	return cause
}

func (s *Serializer) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.keys[key]
	if e == nil {
		return
	}
	if len(e.waiters) > 0 {
		// Hand the key to the oldest waiter; held stays true.
		w := e.waiters[0]
		e.waiters = e.waiters[1:]
		close(w.ready)
		return
	}
	delete(s.keys, key)
}

// inFlight reports the number of keys with live entries. Used by tests to
// verify the registry drains.
func (s *Serializer) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
