// Package registry maps job kinds to their processors. Registration is
// explicit and total: every kind that can appear in a job must be
// registered before the engine starts processing.
package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
)

// Processor turns a typed payload into a blockchain transaction.
// Implementations are stateless between calls.
//
// EncodePayload failures are permanent: re-encoding identical input
// fails identically, so they are never retried by network backoff.
// Execute failures are classified per attempt and may be retried.
type Processor interface {
	// Kind returns the job kind this processor handles.
	Kind() job.Kind

	// EncodePayload converts the payload into calldata for the target chain.
	EncodePayload(ctx context.Context, payload json.RawMessage, chainID int64) ([]byte, error)

	// Execute submits the encoded call through the smart-account client
	// and returns the confirmed transaction hash.
	Execute(ctx context.Context, encoded []byte, meta map[string]any, client chain.SmartAccountClient) (string, error)
}

// Registry is a thread-safe kind-to-processor registry.
type Registry struct {
	mu         sync.RWMutex
	processors map[job.Kind]Processor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[job.Kind]Processor),
	}
}

// Register adds a processor for its kind.
func (r *Registry) Register(p Processor) error {
	if p == nil {
		return errors.ErrNilProcessor
	}
	if p.Kind() == "" {
		return errors.ErrEmptyKind
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.processors[p.Kind()] = p
	return nil
}

// Get retrieves the processor for a kind.
func (r *Registry) Get(kind job.Kind) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processors[kind]
	return p, ok
}

// Has reports whether a processor is registered for the kind.
func (r *Registry) Has(kind job.Kind) bool {
	_, ok := r.Get(kind)
	return ok
}

// Kinds returns all registered kinds.
func (r *Registry) Kinds() []job.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]job.Kind, 0, len(r.processors))
	for k := range r.processors {
		kinds = append(kinds, k)
	}

	return kinds
}

// Remove unregisters the processor for a kind.
func (r *Registry) Remove(kind job.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.processors, kind)
}

// Clear removes all registered processors.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processors = make(map[job.Kind]Processor)
}
