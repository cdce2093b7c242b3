package source

import (
	"sync"
	"time"
)

// State is the health of a source as observed by the fetcher.
type State string

const (
	Healthy     State = "healthy"
	Degraded    State = "degraded"
	CircuitOpen State = "circuit-open"
)

const circuitThreshold = 3

// Health is a thread-safe per-source state machine:
// healthy -> degraded -> circuit-open, with a timed reset back through
// a half-open probe. Multiple concurrent queries share one registry, so
// all transitions happen under the mutex.
type Health struct {
	mu        sync.Mutex
	state     State
	failures  int
	openUntil time.Time
	cooldown  time.Duration
}

func NewHealth(cooldown time.Duration) *Health {
	return &Health{state: Healthy, cooldown: cooldown}
}

// Allow reports whether the source may be fetched right now. An open
// circuit past its cool-down admits a single half-open probe by dropping
// back to degraded.
func (h *Health) Allow(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != CircuitOpen {
		return true
	}
	if now.Before(h.openUntil) {
		return false
	}
	h.state = Degraded
	h.failures = circuitThreshold - 1
	return true
}

// RecordSuccess resets the source to healthy.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Healthy
	h.failures = 0
}

// RecordFailure counts a transport-level failure; the third consecutive
// one opens the circuit for the cool-down period.
func (h *Health) RecordFailure(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures++
	if h.failures >= circuitThreshold {
		h.state = CircuitOpen
		h.openUntil = now.Add(h.cooldown)
		return
	}
	h.state = Degraded
}

// State returns the current state.
func (h *Health) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Reset forces the source back to healthy. Used by the sources command.
func (h *Health) Reset() {
	h.RecordSuccess()
}
