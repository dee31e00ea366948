// Package metrics exposes operational counters for the sync layer on a
// Prometheus /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PostsQueued counts wall posts accepted while offline.
	PostsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusd_posts_queued_total",
		Help: "Total number of wall posts enqueued while offline.",
	})

	// PostsConfirmed counts remote-confirmed wall posts by write path.
	PostsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusd_posts_confirmed_total",
		Help: "Total number of wall posts confirmed by the remote store.",
	}, []string{"mode"}) // direct | flush

	// QueueDepth tracks the current number of pending writes.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campusd_pending_queue_depth",
		Help: "Current number of pending writes awaiting flush.",
	})

	// FlushRuns counts flush passes started on reconnect edges.
	FlushRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusd_flush_runs_total",
		Help: "Total number of flush passes started.",
	})

	// FlushFailures counts flush passes stopped by a remote write failure.
	FlushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusd_flush_failures_total",
		Help: "Total number of flush passes stopped by a failed remote write.",
	})

	// NotificationsSent counts notifications that passed the gate.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusd_notifications_sent_total",
		Help: "Total number of notifications raised, per category.",
	}, []string{"category"})

	// NotificationsSuppressed counts records the gate filtered out.
	NotificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusd_notifications_suppressed_total",
		Help: "Total number of notifications suppressed by preferences or authorship.",
	}, []string{"category"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Router builds the HTTP surface for metrics and health checks.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", Handler())
	return r
}
