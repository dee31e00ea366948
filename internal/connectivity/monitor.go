// Package connectivity tracks device network reachability as a tri-state and
// raises an edge-triggered callback when the device transitions back online.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rlacuesta/campusd/internal/bus"
	"go.uber.org/zap"
)

// State is the observed network reachability.
type State string

const (
	StateUnknown State = "unknown"
	StateOffline State = "offline"
	StateOnline  State = "online"
)

// Monitor polls a Probe and tracks reachability. Callbacks registered with
// OnOnline fire at most once per observed offline→online edge: never on
// startup, and never on repeated online observations.
type Monitor struct {
	probe    Probe
	interval time.Duration
	bus      *bus.Bus
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	callbacks []func()
	cancel    context.CancelFunc
}

// NewMonitor creates a monitor polling probe at the given interval.
func NewMonitor(probe Probe, interval time.Duration, b *bus.Bus, logger *zap.Logger) *Monitor {
	return &Monitor{
		probe:    probe,
		interval: interval,
		bus:      b,
		logger:   logger,
		state:    StateUnknown,
	}
}

// Current returns the last observed state.
func (m *Monitor) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnOnline registers a callback invoked on each offline→online edge.
// Multiple callbacks may be registered; invocation order is unspecified.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Start begins polling the probe in the background.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	go m.loop(ctx)
}

// Stop halts polling. Registered callbacks and the last observed state survive.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.observe(m.probe.Check(ctx))
	for {
		select {
		case <-ticker.C:
			m.observe(m.probe.Check(ctx))
		case <-ctx.Done():
			return
		}
	}
}

// observe records a new state reading and fires callbacks on a genuine
// offline→online edge. An unknown→online transition is not an edge: the
// device was never observed offline.
func (m *Monitor) observe(next State) {
	m.mu.Lock()
	prev := m.state
	if next == prev {
		m.mu.Unlock()
		return
	}
	m.state = next
	var fire []func()
	if prev == StateOffline && next == StateOnline {
		fire = append(fire, m.callbacks...)
	}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("connectivity changed",
			zap.String("from", string(prev)),
			zap.String("to", string(next)))
	}
	if m.bus != nil {
		switch next {
		case StateOnline:
			m.bus.Emit("net.online", Transition{From: prev, To: next})
		case StateOffline:
			m.bus.Emit("net.offline", Transition{From: prev, To: next})
		}
	}
	for _, fn := range fire {
		fn()
	}
}

// Transition is the payload for net.* events.
type Transition struct {
	From State
	To   State
}
