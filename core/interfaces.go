package core

import (
	"context"

	"github.com/greengoods/gardenqueue/job"
	"github.com/greengoods/gardenqueue/registry"
	"github.com/greengoods/gardenqueue/retry"
)

// Store interface defines what the engine needs from a job store.
// Implementations must make Put atomic with respect to concurrent
// reads: no partial-write visibility.
type Store interface {
	// Job records
	Put(ctx context.Context, j job.Job) error
	Get(ctx context.Context, id string) (job.Job, error)
	List(ctx context.Context, f job.Filter) ([]job.Job, error)
	Remove(ctx context.Context, id string) error

	// Binary attachments, addressable independently of the job record
	PutAttachment(ctx context.Context, att job.Attachment) error
	GetAttachments(ctx context.Context, jobID string) ([]job.Attachment, error)
	RemoveAttachment(ctx context.Context, jobID, name string) error

	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Health() error
}

// Registry interface defines what the engine needs from the processor
// registry.
type Registry interface {
	Get(kind job.Kind) (registry.Processor, bool)
	Has(kind job.Kind) bool
}

// RetryPolicy interface defines what the engine needs from the retry
// decision logic.
type RetryPolicy interface {
	ShouldRetry(id string) bool
	RecordAttempt(id string, err error)
	Exhausted(id string) bool
	Forget(id string)
	Config() retry.Config
}

// EventBus interface defines what the engine needs from the event
// delivery layer.
type EventBus interface {
	Publish(ev job.Event)
	Subscribe(fn func(job.Event)) func()
}

// NetworkMonitor supplies the online/offline state and its transitions,
// which drive automatic flushing.
type NetworkMonitor interface {
	Online() bool
	Subscribe(fn func(online bool)) func()
}

// Breaker guards the submission path during sustained outages.
type Breaker interface {
	IsOpen() bool
	RecordFailure() bool
	Reset()
}
