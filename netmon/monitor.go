// Package netmon tracks connectivity and notifies subscribers on
// offline/online transitions, which drive automatic queue flushes.
package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ProbeFunc reports nil when the network is reachable.
type ProbeFunc func(ctx context.Context) error

// Options configure the monitor.
type Options struct {
	// ProbeURL is HEAD-requested to detect connectivity.
	ProbeURL string

	// Interval between probes.
	Interval time.Duration

	// Timeout per probe.
	Timeout time.Duration

	// Probe overrides the HTTP probe entirely (used by tests).
	Probe ProbeFunc
}

// DefaultOptions returns monitor defaults.
func DefaultOptions() Options {
	return Options{
		ProbeURL: "https://rpc.ankr.com/base",
		Interval: 15 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Monitor polls connectivity and fans transitions out to subscribers.
type Monitor struct {
	options Options
	probe   ProbeFunc

	mu     sync.Mutex
	online bool
	known  bool
	next   int
	subs   map[int]func(online bool)
}

// NewMonitor creates a monitor; call Run to start probing.
func NewMonitor(options Options) *Monitor {
	m := &Monitor{
		options: options,
		subs:    make(map[int]func(bool)),
	}
	if options.Probe != nil {
		m.probe = options.Probe
	} else {
		client := &http.Client{Timeout: options.Timeout}
		m.probe = func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, options.ProbeURL, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		}
	}
	return m
}

// Online returns the last observed connectivity state. Before the first
// probe completes the monitor assumes online, matching a browser's
// default navigator state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known {
		return true
	}
	return m.online
}

// Subscribe registers a transition callback and returns its
// unsubscribe function. The callback fires only on state changes.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Run probes until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.options.Interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// SetOnline forces a state, notifying subscribers on transition. Used
// by tests and by hosts with their own connectivity signal.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := !m.known || m.online != online
	m.known = true
	m.online = online
	var fns []func(bool)
	if changed {
		for _, fn := range m.subs {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		slog.Info("Network state changed", "online", online)
		for _, fn := range fns {
			fn(online)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.options.Timeout)
	defer cancel()

	err := m.probe(probeCtx)
	m.SetOnline(err == nil)
}
