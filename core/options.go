package core

import (
	"time"

	"github.com/greengoods/gardenqueue/retry"
)

// Config holds engine configuration.
type Config struct {
	// ChainID used when a job's meta does not carry one.
	ChainID int64

	// ProcessingCeiling bounds a single encode+execute pass so a hung
	// submission cannot pin a job in processing forever.
	ProcessingCeiling time.Duration

	// SenderConcurrency caps how many sender lanes flush in parallel.
	// Jobs within one lane always run sequentially, in creation order.
	SenderConcurrency int

	// FlushOnOnline triggers an automatic flush on the offline to
	// online transition.
	FlushOnOnline bool
}

// EngineOption is a function that modifies engine configuration.
type EngineOption func(*Engine)

// defaultConfig returns default configuration.
func defaultConfig() *Config {
	return &Config{
		ChainID:           42161,
		ProcessingCeiling: 2 * time.Minute,
		SenderConcurrency: 4,
		FlushOnOnline:     true,
	}
}

// WithChainID sets the default chain id for new jobs.
func WithChainID(id int64) EngineOption {
	return func(e *Engine) { e.config.ChainID = id }
}

// WithProcessingCeiling bounds one job's processing pass.
func WithProcessingCeiling(d time.Duration) EngineOption {
	return func(e *Engine) { e.config.ProcessingCeiling = d }
}

// WithSenderConcurrency caps parallel sender lanes during a flush.
func WithSenderConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.config.SenderConcurrency = n
		}
	}
}

// WithFlushOnOnline toggles the automatic flush on reconnect.
func WithFlushOnOnline(enabled bool) EngineOption {
	return func(e *Engine) { e.config.FlushOnOnline = enabled }
}

// WithNetworkMonitor attaches a connectivity source; without one the
// engine only flushes on explicit Flush calls.
func WithNetworkMonitor(m NetworkMonitor) EngineOption {
	return func(e *Engine) { e.netmon = m }
}

// WithBreaker guards submissions with a circuit breaker.
func WithBreaker(b Breaker) EngineOption {
	return func(e *Engine) { e.breaker = b }
}

// WithClock injects a clock, used by tests to control timestamps.
func WithClock(c retry.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}
