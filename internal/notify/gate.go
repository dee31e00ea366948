package notify

import "context"

// Gate decides whether a realtime addition should produce a notification.
// Pure function of persisted preferences plus inputs; no side effects.
type Gate struct {
	prefs *Prefs
}

// NewGate creates a gate over the given preferences.
func NewGate(prefs *Prefs) *Gate {
	return &Gate{prefs: prefs}
}

// ShouldNotify returns false when the record was authored by the current
// user — users are never notified about their own writes, regardless of
// preference state — or when the category preference is disabled.
func (g *Gate) ShouldNotify(ctx context.Context, cat Category, authorID, currentUserID string) bool {
	if authorID == currentUserID {
		return false
	}
	return g.prefs.Enabled(ctx, cat)
}
