package core

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/job"
)

// Mock implementations for testing

// mockClient implements chain.SmartAccountClient. Responses can be
// scripted per call.
type mockClient struct {
	mu    sync.Mutex
	calls []mockCall
	// errs are consumed in order; nil entries mean success. When the
	// slice runs out every call succeeds.
	errs []error
}

type mockCall struct {
	chainID int64
	sender  common.Address
}

func (c *mockClient) SendCall(ctx context.Context, chainID int64, sender common.Address, callData []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.calls)
	c.calls = append(c.calls, mockCall{chainID: chainID, sender: sender})
	if n < len(c.errs) && c.errs[n] != nil {
		return common.Hash{}, c.errs[n]
	}
	return crypto.Keccak256Hash(callData, []byte{byte(n)}), nil
}

func (c *mockClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// mockProcessor lets tests script encode and execute behavior per kind.
type mockProcessor struct {
	kind       job.Kind
	encodeErr  error
	executeErr func(call int) error

	mu       sync.Mutex
	executed int
}

func (p *mockProcessor) Kind() job.Kind { return p.kind }

func (p *mockProcessor) EncodePayload(ctx context.Context, payload json.RawMessage, chainID int64) ([]byte, error) {
	if p.encodeErr != nil {
		return nil, p.encodeErr
	}
	return payload, nil
}

func (p *mockProcessor) Execute(ctx context.Context, encoded []byte, meta map[string]any, client chain.SmartAccountClient) (string, error) {
	p.mu.Lock()
	call := p.executed
	p.executed++
	p.mu.Unlock()

	if p.executeErr != nil {
		if err := p.executeErr(call); err != nil {
			return "", err
		}
	}
	hash, err := client.SendCall(ctx, 1, common.Address{}, encoded)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (p *mockProcessor) executeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executed
}

// mockMonitor is a settable connectivity source.
type mockMonitor struct {
	mu     sync.Mutex
	online bool
	subs   []func(bool)
}

func newMockMonitor(online bool) *mockMonitor {
	return &mockMonitor{online: online}
}

func (m *mockMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *mockMonitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
	return func() {}
}

func (m *mockMonitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := append([]func(bool){}, m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// eventRecorder captures bus events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []job.Event
}

func (r *eventRecorder) record(ev job.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) types() []job.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]job.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *eventRecorder) last() (job.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return job.Event{}, false
	}
	return r.events[len(r.events)-1], true
}
