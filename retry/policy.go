// Package retry decides whether and when a failed job may be retried.
//
// The policy is a deterministic function of its recorded state and an
// injected clock, so it is unit-testable without mocking I/O.
package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Clock abstracts time.Now so tests can drive the policy directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Config is immutable per policy instance.
type Config struct {
	// MaxRetries is the attempt budget. Zero means a failed job is
	// never retried.
	MaxRetries int

	// InitialDelay is the backoff after the first failed attempt.
	InitialDelay time.Duration

	// BackoffMultiplier grows the delay per attempt:
	// delay = InitialDelay * BackoffMultiplier^(attempts-1).
	BackoffMultiplier float64

	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration

	// Jitter adds up to 25% random slack to each delay so a burst of
	// queued jobs does not retry in lockstep when connectivity returns.
	Jitter bool
}

// DefaultConfig mirrors the production queue settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        5,
		InitialDelay:      2 * time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          2 * time.Minute,
		Jitter:            true,
	}
}

type entry struct {
	attempts    int
	nextRetryAt time.Time
}

// Policy tracks failed attempts per job id and answers retry decisions.
type Policy struct {
	cfg   Config
	clock Clock

	mu      sync.Mutex
	entries map[string]*entry
	rng     *rand.Rand
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock injects a clock, used by tests to control time.
func WithClock(c Clock) Option {
	return func(p *Policy) { p.clock = c }
}

// NewPolicy creates a policy with the given immutable configuration.
func NewPolicy(cfg Config, options ...Option) *Policy {
	p := &Policy{
		cfg:     cfg,
		clock:   SystemClock,
		entries: make(map[string]*entry),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// ShouldRetry reports whether the job may be attempted now. A job with
// no recorded attempts is always eligible.
func (p *Policy) ShouldRetry(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return true
	}
	if e.attempts >= p.cfg.MaxRetries {
		return false
	}
	return !p.clock.Now().Before(e.nextRetryAt)
}

// RecordAttempt registers a failed attempt and schedules the next
// eligible retry time with exponential backoff.
func (p *Policy) RecordAttempt(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		e = &entry{}
		p.entries[id] = e
	}
	e.attempts++
	e.nextRetryAt = p.clock.Now().Add(p.delay(e.attempts))
}

func (p *Policy) delay(attempts int) time.Duration {
	d := time.Duration(float64(p.cfg.InitialDelay) *
		math.Pow(p.cfg.BackoffMultiplier, float64(attempts-1)))
	if p.cfg.MaxDelay > 0 && d > p.cfg.MaxDelay {
		d = p.cfg.MaxDelay
	}
	if p.cfg.Jitter && d > 0 {
		d += time.Duration(p.rng.Int63n(int64(d)/4 + 1))
	}
	return d
}

// Exhausted reports whether the job's retry budget is spent.
func (p *Policy) Exhausted(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	return ok && e.attempts >= p.cfg.MaxRetries
}

// Attempts returns the recorded failed attempts for a job id.
func (p *Policy) Attempts(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[id]; ok {
		return e.attempts
	}
	return 0
}

// Forget drops the retry state for a job, typically after it completes
// or fails permanently.
func (p *Policy) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.entries, id)
}

// Config returns the immutable policy configuration.
func (p *Policy) Config() Config { return p.cfg }
