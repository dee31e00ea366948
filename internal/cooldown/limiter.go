// Package cooldown enforces a minimum interval between consecutive user
// actions of the same kind, persisted across process restarts.
package cooldown

import (
	"context"
	"strconv"
	"time"

	"github.com/rlacuesta/campusd/internal/kv"
	"go.uber.org/zap"
)

const keyPrefix = "cooldown."

// Status is the result of a cooldown check.
type Status struct {
	Active    bool
	Remaining time.Duration
}

// Limiter computes remaining cooldown from a persisted last-action timestamp.
// Storage failures fail open: a broken local cache must not block posting,
// but every such failure is logged.
type Limiter struct {
	store  kv.Store
	logger *zap.Logger
	now    func() time.Time
}

// New creates a limiter over the given store.
func New(store kv.Store, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Check reports whether the cooldown for key is still active and how long
// remains. A missing or unreadable record means the cooldown is satisfied.
func (l *Limiter) Check(ctx context.Context, key string, window time.Duration) Status {
	raw, ok, err := l.store.Get(ctx, keyPrefix+key)
	if err != nil {
		l.logger.Warn("cooldown read failed, failing open",
			zap.String("key", key), zap.Error(err))
		return Status{}
	}
	if !ok {
		return Status{}
	}
	lastMillis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.logger.Warn("cooldown value corrupt, failing open",
			zap.String("key", key), zap.String("value", raw), zap.Error(err))
		return Status{}
	}

	elapsed := l.now().Sub(time.UnixMilli(lastMillis))
	remaining := window - elapsed
	if remaining <= 0 {
		return Status{}
	}
	return Status{Active: true, Remaining: remaining}
}

// Record stores now() as the last action time for key. The previous value is
// simply superseded; no cleanup of old keys is needed. A storage failure is
// logged and otherwise ignored (fail open).
func (l *Limiter) Record(ctx context.Context, key string) {
	value := strconv.FormatInt(l.now().UnixMilli(), 10)
	if err := l.store.Set(ctx, keyPrefix+key, value); err != nil {
		l.logger.Warn("cooldown write failed, failing open",
			zap.String("key", key), zap.Error(err))
	}
}
