// Package backoff tracks per-node retry delays for requeued reconciles.
//
// The controller requeues failed operations itself instead of returning the
// error to the workqueue, so delays are computed here per node identity
// rather than per queue item. Successive failures for the same node back off
// exponentially; a success or node removal resets the node's history.
package backoff

import (
	"sync"
	"time"

	"github.com/dc-tec/node-label-preserver/internal/constants"
)

// Tracker computes exponential retry delays keyed by node name.
// It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	attempts map[string]int
	base     time.Duration
	max      time.Duration
}

// NewTracker creates a Tracker with the given base delay and ceiling.
// Non-positive values fall back to the service defaults.
func NewTracker(base, max time.Duration) *Tracker {
	if base <= 0 {
		base = constants.BackoffBase
	}
	if max <= 0 {
		max = constants.MaxRetryTime
	}
	return &Tracker{
		attempts: map[string]int{},
		base:     base,
		max:      max,
	}
}

// Next returns the delay before the next retry for key and advances the
// failure count. The first call for a key returns the base delay; each
// subsequent call doubles it up to the ceiling.
func (t *Tracker) Next(key string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempt := t.attempts[key]
	t.attempts[key] = attempt + 1

	// Guard the shift: beyond 62 doublings the duration overflows int64,
	// and the ceiling applies long before that anyway.
	if attempt > 62 {
		return t.max
	}

	delay := t.base << uint(attempt)
	if delay <= 0 || delay > t.max {
		return t.max
	}
	return delay
}

// Forget clears the failure history for key. Called on success and when the
// node no longer exists.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, key)
}
