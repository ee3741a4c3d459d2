// Package circuitbreaker guards the chain submission path during
// sustained outages so a flush burst does not hammer a dead bundler.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"
)

// Breaker trips after a threshold of failures inside a rolling window
// and recloses after a reset timeout.
type Breaker struct {
	enabled       bool
	failThreshold int
	failureWindow time.Duration
	resetTimeout  time.Duration

	mu           sync.Mutex
	failureCount int
	lastFailure  time.Time
	tripped      bool
	tripTime     time.Time
}

// New creates a breaker. A disabled breaker never opens.
func New(enabled bool, threshold int, window, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
	}
}

// RecordFailure notes a submission failure. It returns true when the
// circuit is (now) open.
func (b *Breaker) RecordFailure() bool {
	if !b.enabled {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	if b.tripped {
		if now.Sub(b.tripTime) > b.resetTimeout {
			slog.Info("Circuit breaker reset after timeout")
			b.tripped = false
			b.failureCount = 0
		} else {
			return true
		}
	}

	if now.Sub(b.lastFailure) > b.failureWindow {
		b.failureCount = 0
	}

	b.failureCount++
	b.lastFailure = now

	if b.failureCount >= b.failThreshold {
		b.tripped = true
		b.tripTime = now
		slog.Warn("Circuit breaker tripped", "failures", b.failureCount, "window", b.failureWindow)
		return true
	}

	return false
}

// IsOpen reports whether submissions should be skipped right now.
func (b *Breaker) IsOpen() bool {
	if !b.enabled {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tripped && time.Since(b.tripTime) > b.resetTimeout {
		b.tripped = false
		b.failureCount = 0
		return false
	}

	return b.tripped
}

// Reset manually closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tripped = false
	b.failureCount = 0
}
