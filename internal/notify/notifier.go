package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier raises a device notification. Fire-and-forget: failures are
// non-fatal and only logged by callers.
type Notifier interface {
	Notify(ctx context.Context, title, body string, data map[string]string) error
}

// LogNotifier writes notifications to the log instead of a device; used in
// headless runs and whenever no push credentials are configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, title, body string, data map[string]string) error {
	n.logger.Info("notification",
		zap.String("title", title),
		zap.String("body", body),
		zap.Any("data", data))
	return nil
}
