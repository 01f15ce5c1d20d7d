// Package queue implements the wait/notify registry that bridges
// publishers and long-polling receivers without requiring receivers to
// poll the database. A receiver with nothing to return parks here;
// a publisher that inserted at least one message signals here.
//
// The registry never holds its lock across a park: Wait registers under
// lock, releases it, blocks on the channel/timer, then re-acquires the
// lock only to remove its own entry.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps a queue name to the set of receivers currently parked on
// it. It holds only transient notification handles, keyed by queue name
// and a per-waiter UUID; it owns no queue or message state.
type Registry struct {
	mu      sync.Mutex
	waiters map[string]map[uuid.UUID]chan struct{}
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{waiters: make(map[string]map[uuid.UUID]chan struct{})}
}

// Wait parks on queue for up to maxWait, returning true iff a Signal
// fired before the timeout. The registry entry is always removed before
// Wait returns, regardless of which way it exits.
func (r *Registry) Wait(queue string, maxWait time.Duration) bool {
	id := uuid.New()
	ch := make(chan struct{}, 1)

	r.mu.Lock()
	set, ok := r.waiters[queue]
	if !ok {
		set = make(map[uuid.UUID]chan struct{})
		r.waiters[queue] = set
	}
	set[id] = ch
	r.mu.Unlock()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	var signalled bool
	select {
	case <-ch:
		signalled = true
	case <-timer.C:
		signalled = false
	}

	r.mu.Lock()
	if set, ok := r.waiters[queue]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.waiters, queue)
		}
	}
	r.mu.Unlock()

	return signalled
}

// Signal wakes at most one waiter parked on queue — the first one found
// in the set's iteration order — and removes it from the registry. If no
// waiter exists, Signal does nothing. A spurious or racing wakeup is
// safe: callers re-check the store after being woken.
func (r *Registry) Signal(queue string) {
	r.mu.Lock()
	set, ok := r.waiters[queue]
	if !ok || len(set) == 0 {
		r.mu.Unlock()
		return
	}
	var id uuid.UUID
	var ch chan struct{}
	for k, v := range set {
		id, ch = k, v
		break
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.waiters, queue)
	}
	r.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}
}
