// Package session owns the authenticated user's lifecycle: realtime
// listeners start on sign-in, stop on sign-out, and every addition they
// deliver passes through the notification gate.
package session

import (
	"context"
	"sync"

	"github.com/rlacuesta/campusd/internal/bus"
	"github.com/rlacuesta/campusd/internal/listener"
	"github.com/rlacuesta/campusd/internal/metrics"
	"github.com/rlacuesta/campusd/internal/notify"
	"github.com/rlacuesta/campusd/internal/remote"
	"go.uber.org/zap"
)

// userHintKey stores the last signed-in user so a daemon restart can resume
// the session without a fresh auth round-trip.
const userHintKey = "session.user_id"

// Listeners is the slice of the listener manager the session needs.
type Listeners interface {
	Start(key string, onNew listener.NewRecordFunc) error
	StopAll()
}

// KV is the subset of the local store used for the session hint.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Manager starts and stops the per-collection subscriptions for the current
// user and routes additions through the gate to the notifier.
type Manager struct {
	listeners   Listeners
	gate        *notify.Gate
	notifier    notify.Notifier
	store       KV
	collections map[notify.Category]string
	bus         *bus.Bus
	logger      *zap.Logger

	mu     sync.Mutex
	userID string
}

// New creates a signed-out manager. collections maps each notification
// category to its remote collection name.
func New(listeners Listeners, gate *notify.Gate, notifier notify.Notifier, store KV, collections map[notify.Category]string, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		listeners:   listeners,
		gate:        gate,
		notifier:    notifier,
		store:       store,
		collections: collections,
		bus:         b,
		logger:      logger,
	}
}

// CurrentUserID returns the signed-in user, or "" when signed out.
func (m *Manager) CurrentUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// SignIn starts one listener per collection for the given user. Signing in
// over an existing session stops the previous session's listeners first, so
// an account switch can never leave two handles on one collection.
func (m *Manager) SignIn(ctx context.Context, userID string) error {
	m.mu.Lock()
	if m.userID != "" {
		m.listeners.StopAll()
	}
	m.userID = userID
	m.mu.Unlock()

	// The hint is best effort: a failed write only costs the restart resume.
	if err := m.store.Set(ctx, userHintKey, userID); err != nil {
		m.logger.Warn("session hint write failed", zap.Error(err))
	}

	for _, cat := range notify.Categories {
		col, ok := m.collections[cat]
		if !ok {
			continue
		}
		cat := cat
		if err := m.listeners.Start(col, func(rec remote.Record) {
			m.handleRecord(cat, rec)
		}); err != nil {
			return err
		}
	}

	if m.bus != nil {
		m.bus.Emit("session.signed_in", userID)
	}
	m.logger.Info("session started", zap.String("user_id", userID))
	return nil
}

// SignOut stops every listener and clears the session hint. Safe to call
// when already signed out.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.listeners.StopAll()
	signedOut := m.userID != ""
	m.userID = ""
	m.mu.Unlock()

	if err := m.store.Delete(ctx, userHintKey); err != nil {
		m.logger.Warn("session hint delete failed", zap.Error(err))
	}
	if signedOut {
		if m.bus != nil {
			m.bus.Emit("session.signed_out", nil)
		}
		m.logger.Info("session ended")
	}
}

// Shutdown stops the listeners without ending the session: the hint stays
// on disk so the next daemon start can resume it.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.listeners.StopAll()
	m.userID = ""
	m.mu.Unlock()
}

// Restore signs back in using the persisted hint, if any. Returns whether a
// session was resumed. Storage failures only cost the resume.
func (m *Manager) Restore(ctx context.Context) bool {
	userID, ok, err := m.store.Get(ctx, userHintKey)
	if err != nil {
		m.logger.Warn("session hint read failed", zap.Error(err))
		return false
	}
	if !ok || userID == "" {
		return false
	}
	if err := m.SignIn(ctx, userID); err != nil {
		m.logger.Warn("session restore failed", zap.Error(err))
		return false
	}
	return true
}

// handleRecord is background work: every failure is logged and swallowed —
// a broken notification pipeline must never interrupt the user.
func (m *Manager) handleRecord(cat notify.Category, rec remote.Record) {
	ctx := context.Background()
	if !m.gate.ShouldNotify(ctx, cat, rec.AuthorID, m.CurrentUserID()) {
		metrics.NotificationsSuppressed.WithLabelValues(string(cat)).Inc()
		return
	}

	title, body := render(cat, rec)
	if err := m.notifier.Notify(ctx, title, body, map[string]string{
		"category": string(cat),
		"id":       rec.ID,
	}); err != nil {
		m.logger.Warn("notification failed",
			zap.String("category", string(cat)),
			zap.String("record_id", rec.ID),
			zap.Error(err))
		return
	}
	metrics.NotificationsSent.WithLabelValues(string(cat)).Inc()
}

func render(cat notify.Category, rec remote.Record) (title, body string) {
	switch cat {
	case notify.CategoryTasks:
		title = "New task"
	case notify.CategoryAnnouncements:
		title = "New announcement"
	default:
		title = "New post on the Freedom Wall"
	}
	if rec.Title != "" {
		title = rec.Title
	}
	return title, truncate(rec.Body, 120)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
