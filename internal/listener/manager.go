// Package listener manages the lifecycle of realtime collection
// subscriptions for the active session. A freshly started subscription never
// treats pre-existing documents as new: the first delivered snapshot is
// swallowed whole, and only later additions reach the callback.
package listener

import (
	"context"
	"sync"

	"github.com/rlacuesta/campusd/internal/bus"
	"github.com/rlacuesta/campusd/internal/remote"
	"go.uber.org/zap"
)

// NewRecordFunc receives each record added after the initial snapshot.
type NewRecordFunc func(remote.Record)

// handle tracks one live subscription. firstSnapshot flips to false exactly
// once, on the first delivered snapshot, and is never reset for the life of
// the handle.
type handle struct {
	key  string
	stop func()

	mu            sync.Mutex
	firstSnapshot bool
}

func (h *handle) deliver(snap remote.Snapshot, onNew NewRecordFunc, b *bus.Bus) {
	h.mu.Lock()
	if h.firstSnapshot {
		h.firstSnapshot = false
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	for _, ch := range snap.Changes {
		if ch.Kind != remote.Added {
			continue
		}
		if b != nil {
			b.Emit("rt.record_added", Addition{Key: h.key, Record: ch.Record})
		}
		onNew(ch.Record)
	}
}

// Addition is the payload for rt.record_added events.
type Addition struct {
	Key    string
	Record remote.Record
}

// Manager holds at most one subscription handle per collection key.
// Start and Stop serialize handle bookkeeping, so restarting a subscription
// always replays the first-snapshot suppression.
type Manager struct {
	watcher remote.Watcher
	bus     *bus.Bus
	logger  *zap.Logger

	mu      sync.Mutex
	handles map[string]*handle
}

// New creates a manager with no active subscriptions.
func New(watcher remote.Watcher, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		watcher: watcher,
		bus:     b,
		logger:  logger,
		handles: make(map[string]*handle),
	}
}

// Start subscribes to the collection identified by key. Starting an already
// started key is a no-op.
func (m *Manager) Start(key string, onNew NewRecordFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.handles[key]; ok {
		return nil
	}

	h := &handle{key: key, firstSnapshot: true}
	stop, err := m.watcher.Watch(context.Background(), key, func(snap remote.Snapshot) {
		h.deliver(snap, onNew, m.bus)
	})
	if err != nil {
		return err
	}
	h.stop = stop
	m.handles[key] = h
	m.logger.Info("realtime listener started", zap.String("collection", key))
	return nil
}

// Stop unsubscribes and discards the handle for key. Stopping an absent key
// is a no-op.
func (m *Manager) Stop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(key)
}

// StopAll stops every active handle. Called on sign-out before any new
// session's Start calls, so a switched account never inherits handles.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.handles {
		m.stopLocked(key)
	}
}

func (m *Manager) stopLocked(key string) {
	h, ok := m.handles[key]
	if !ok {
		return
	}
	h.stop()
	delete(m.handles, key)
	m.logger.Info("realtime listener stopped", zap.String("collection", key))
}

// Active reports whether a handle exists for key.
func (m *Manager) Active(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[key]
	return ok
}

// ActiveCount returns the number of live handles.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}
