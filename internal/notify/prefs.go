// Package notify filters realtime additions through per-category user
// preferences and authorship before raising a device notification.
package notify

import (
	"context"
	"strconv"

	"github.com/rlacuesta/campusd/internal/kv"
	"go.uber.org/zap"
)

// Category of notifiable records.
type Category string

const (
	CategoryTasks         Category = "tasks"
	CategoryAnnouncements Category = "announcements"
	CategoryWall          Category = "wall"
)

// Categories lists every known category.
var Categories = []Category{CategoryTasks, CategoryAnnouncements, CategoryWall}

const prefKeyPrefix = "notify.pref."

// Prefs persists one boolean per category. A category with no stored value
// is disabled until the user explicitly enables it.
type Prefs struct {
	store  kv.Store
	logger *zap.Logger
}

// NewPrefs creates a preference reader/writer over the given store.
func NewPrefs(store kv.Store, logger *zap.Logger) *Prefs {
	return &Prefs{store: store, logger: logger}
}

// Enabled reports whether notifications for the category are on. Read
// failures fall back to the disabled default and are logged, never surfaced.
func (p *Prefs) Enabled(ctx context.Context, cat Category) bool {
	raw, ok, err := p.store.Get(ctx, prefKeyPrefix+string(cat))
	if err != nil {
		p.logger.Warn("preference read failed, using default",
			zap.String("category", string(cat)), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		p.logger.Warn("preference value corrupt, using default",
			zap.String("category", string(cat)), zap.String("value", raw))
		return false
	}
	return enabled
}

// SetEnabled persists the preference for a category.
func (p *Prefs) SetEnabled(ctx context.Context, cat Category, enabled bool) error {
	err := p.store.Set(ctx, prefKeyPrefix+string(cat), strconv.FormatBool(enabled))
	if err != nil {
		p.logger.Warn("preference write failed",
			zap.String("category", string(cat)), zap.Error(err))
	}
	return err
}
