// Package syncer coordinates wall-post writes against the remote store:
// direct writes while online, queueing while offline, and ordered replay of
// the queue on each reconnect edge.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rlacuesta/campusd/internal/bus"
	"github.com/rlacuesta/campusd/internal/connectivity"
	"github.com/rlacuesta/campusd/internal/cooldown"
	"github.com/rlacuesta/campusd/internal/metrics"
	"github.com/rlacuesta/campusd/internal/queue"
	"github.com/rlacuesta/campusd/internal/remote"
	"github.com/rlacuesta/campusd/internal/wall"
	"go.uber.org/zap"
)

// Status of a submitted write.
type Status string

const (
	// StatusConfirmed means the remote store accepted the write.
	StatusConfirmed Status = "confirmed"
	// StatusQueued means the write is held locally until reconnect.
	StatusQueued Status = "queued"
)

// Result of Submit: the outcome and either the server-assigned ID or the
// temporary queue ID.
type Result struct {
	Status Status
	ID     string
}

// ErrOffline is returned for actions that cannot be queued, like toggling a
// like while unreachable.
var ErrOffline = errors.New("action requires connectivity")

// ErrPendingPost is returned when a like targets a post that only exists in
// the local queue.
var ErrPendingPost = errors.New("post has not been synced yet")

// CooldownError reports that the posting cooldown is still active.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("posting cooldown active, %s remaining", e.Remaining.Round(time.Second))
}

// Connectivity is the slice of the monitor the coordinator needs.
type Connectivity interface {
	Current() connectivity.State
}

// cooldownKey partitions the posting cooldown from any other rate limits.
const cooldownKey = "wall_post"

// Coordinator owns the pending queue and decides, per submission, between a
// direct remote write and enqueueing.
type Coordinator struct {
	conn    Connectivity
	queue   *queue.Queue
	writer  remote.Writer
	limiter *cooldown.Limiter
	window  time.Duration
	bus     *bus.Bus
	logger  *zap.Logger

	flushing atomic.Bool
}

// New creates a coordinator. limiter may be nil to disable the posting
// cooldown; window is the cooldown applied between submissions.
func New(conn Connectivity, q *queue.Queue, writer remote.Writer, limiter *cooldown.Limiter, window time.Duration, b *bus.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		conn:    conn,
		queue:   q,
		writer:  writer,
		limiter: limiter,
		window:  window,
		bus:     b,
		logger:  logger,
	}
}

// Submit persists a wall post. While online it writes directly and any
// failure propagates to the caller — the user is online, so the failure is
// actionable and the post must not be silently queued. While offline (or
// with unknown connectivity) the post is enqueued and returned immediately
// with its temporary ID, without any network attempt.
func (c *Coordinator) Submit(ctx context.Context, post wall.Post) (Result, error) {
	if c.limiter != nil && c.window > 0 {
		if st := c.limiter.Check(ctx, cooldownKey, c.window); st.Active {
			return Result{}, &CooldownError{Remaining: st.Remaining}
		}
	}

	if c.conn.Current() == connectivity.StateOnline {
		id, err := c.writer.CreatePost(ctx, post)
		if err != nil {
			return Result{}, remote.Classify(err)
		}
		if c.limiter != nil {
			c.limiter.Record(ctx, cooldownKey)
		}
		metrics.PostsConfirmed.WithLabelValues("direct").Inc()
		c.emit("wall.post_confirmed", Confirmed{ServerID: id})
		c.logger.Info("post confirmed", zap.String("server_id", id))
		return Result{Status: StatusConfirmed, ID: id}, nil
	}

	entry := c.queue.Enqueue(post)
	if c.limiter != nil {
		c.limiter.Record(ctx, cooldownKey)
	}
	metrics.PostsQueued.Inc()
	metrics.QueueDepth.Set(float64(c.queue.Len()))
	c.emit("wall.post_queued", Queued{TempID: entry.TempID})
	c.logger.Info("post queued while offline", zap.String("temp_id", entry.TempID))
	return Result{Status: StatusQueued, ID: entry.TempID}, nil
}

// FlushPending replays the queue in insertion order, removing each entry
// only after the remote store confirms it. The first failure stops the pass;
// the failed entry and everything after it stay queued for the next
// reconnect edge. Overlapping invocations are ignored while a pass is
// running, so rapidly toggling connectivity yields exactly one pass.
func (c *Coordinator) FlushPending(ctx context.Context) {
	if !c.flushing.CompareAndSwap(false, true) {
		c.logger.Debug("flush already in progress, ignoring reconnect")
		return
	}
	defer c.flushing.Store(false)

	entries := c.queue.List()
	if len(entries) == 0 {
		return
	}
	metrics.FlushRuns.Inc()
	c.emit("sync.flush_started", len(entries))
	c.logger.Info("flushing pending posts", zap.Int("count", len(entries)))

	for _, e := range entries {
		post := e.Post
		post.ID = ""
		post.Pending = false

		id, err := c.writer.CreatePost(ctx, post)
		if err != nil {
			c.logger.Warn("flush stopped at first failure",
				zap.String("temp_id", e.TempID), zap.Error(err))
			metrics.FlushFailures.Inc()
			c.emit("sync.flush_failed", FlushFailed{TempID: e.TempID, Err: err.Error()})
			return
		}
		c.queue.Remove(e.TempID)
		metrics.PostsConfirmed.WithLabelValues("flush").Inc()
		metrics.QueueDepth.Set(float64(c.queue.Len()))
		c.emit("wall.post_confirmed", Confirmed{TempID: e.TempID, ServerID: id})
		c.logger.Info("pending post flushed",
			zap.String("temp_id", e.TempID), zap.String("server_id", id))
	}
	c.emit("sync.flush_completed", nil)
}

// Feed returns the read model: confirmed remote posts followed by still-
// pending entries, flagged so presentation can distinguish them. A pending
// entry disappears from the tail the moment its confirmed twin appears in
// the remote list.
func (c *Coordinator) Feed(ctx context.Context) ([]wall.Post, error) {
	posts, err := c.writer.ListPosts(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	for _, e := range c.queue.List() {
		posts = append(posts, e.Post)
	}
	return posts, nil
}

// ToggleLike flips the current user's like on a post. Likes are never
// queued: offline attempts fail fast, and pending posts have no server
// document to like yet.
func (c *Coordinator) ToggleLike(ctx context.Context, postID, userID string) error {
	if wall.IsTempID(postID) {
		return ErrPendingPost
	}
	if c.conn.Current() != connectivity.StateOnline {
		return ErrOffline
	}
	if err := c.writer.ToggleLike(ctx, postID, userID); err != nil {
		return remote.Classify(err)
	}
	return nil
}

func (c *Coordinator) emit(kind string, payload any) {
	if c.bus != nil {
		c.bus.Emit(kind, payload)
	}
}

// Queued is the payload for wall.post_queued events.
type Queued struct {
	TempID string
}

// Confirmed is the payload for wall.post_confirmed events. TempID is empty
// for direct writes.
type Confirmed struct {
	TempID   string
	ServerID string
}

// FlushFailed is the payload for sync.flush_failed events.
type FlushFailed struct {
	TempID string
	Err    string
}
