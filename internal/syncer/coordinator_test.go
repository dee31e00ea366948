package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rlacuesta/campusd/internal/bus"
	"github.com/rlacuesta/campusd/internal/connectivity"
	"github.com/rlacuesta/campusd/internal/cooldown"
	"github.com/rlacuesta/campusd/internal/kv"
	"github.com/rlacuesta/campusd/internal/queue"
	"github.com/rlacuesta/campusd/internal/remote"
	"github.com/rlacuesta/campusd/internal/wall"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeConn is a settable connectivity reading.
type fakeConn struct {
	mu    sync.Mutex
	state connectivity.State
}

func (c *fakeConn) Current() connectivity.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) set(s connectivity.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// fakeWriter records calls and returns configurable results.
type fakeWriter struct {
	mu      sync.Mutex
	creates []wall.Post
	likes   []string
	posts   []wall.Post
	failAt  int // 1-based create call index at which failures start; 0 = never
	err     error
	delay   time.Duration // artificial delay to observe interleavings
}

func (w *fakeWriter) CreatePost(_ context.Context, p wall.Post) (string, error) {
	w.mu.Lock()
	w.creates = append(w.creates, p)
	n := len(w.creates)
	w.mu.Unlock()

	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	if w.failAt > 0 && n >= w.failAt {
		if w.err != nil {
			return "", w.err
		}
		return "", errors.New("write failed")
	}
	return fmt.Sprintf("srv-%d", n), nil
}

func (w *fakeWriter) ToggleLike(_ context.Context, postID, userID string) error {
	w.mu.Lock()
	w.likes = append(w.likes, postID+"/"+userID)
	w.mu.Unlock()
	return w.err
}

func (w *fakeWriter) ListPosts(_ context.Context) ([]wall.Post, error) {
	return w.posts, w.err
}

func (w *fakeWriter) createCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.creates)
}

func testCoordinator(conn *fakeConn, w *fakeWriter) (*Coordinator, *queue.Queue) {
	q := queue.New()
	c := New(conn, q, w, nil, 0, bus.New(), zap.NewNop())
	return c, q
}

func TestSubmitOnlineConfirmed(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOnline}
	w := &fakeWriter{}
	c, q := testCoordinator(conn, w)

	res, err := c.Submit(context.Background(), wall.Post{AuthorID: "u1", Content: "hello"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Status != StatusConfirmed {
		t.Errorf("Status = %q, want confirmed", res.Status)
	}
	if res.ID != "srv-1" {
		t.Errorf("ID = %q, want server-assigned srv-1", res.ID)
	}
	if q.Len() != 0 {
		t.Errorf("queue depth = %d, want 0 after direct write", q.Len())
	}
}

func TestSubmitOnlineFailurePropagates(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOnline}
	w := &fakeWriter{failAt: 1, err: status.Error(codes.PermissionDenied, "rules rejected write")}
	c, q := testCoordinator(conn, w)

	_, err := c.Submit(context.Background(), wall.Post{Content: "nope"})
	if err == nil {
		t.Fatal("Submit() should propagate the online failure")
	}
	if !errors.Is(err, remote.ErrPermission) {
		t.Errorf("error = %v, want remote.ErrPermission", err)
	}
	// An online failure must never be silently queued.
	if q.Len() != 0 {
		t.Errorf("queue depth = %d, want 0", q.Len())
	}
}

func TestSubmitOfflineQueuesWithoutNetworkAttempt(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	w := &fakeWriter{}
	c, q := testCoordinator(conn, w)

	res, err := c.Submit(context.Background(), wall.Post{Content: "hello"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Status != StatusQueued {
		t.Errorf("Status = %q, want queued", res.Status)
	}
	if !wall.IsTempID(res.ID) {
		t.Errorf("ID = %q, want a temp id", res.ID)
	}
	if w.createCount() != 0 {
		t.Errorf("remote writes = %d, want 0 while offline", w.createCount())
	}
	if q.Len() != 1 {
		t.Errorf("queue depth = %d, want 1", q.Len())
	}
}

func TestSubmitUnknownConnectivityQueues(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateUnknown}
	w := &fakeWriter{}
	c, _ := testCoordinator(conn, w)

	res, err := c.Submit(context.Background(), wall.Post{Content: "maybe offline"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Status != StatusQueued {
		t.Errorf("Status = %q, want queued when connectivity is unknown", res.Status)
	}
}

func TestFlushDrainsInInsertionOrder(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	w := &fakeWriter{}
	c, q := testCoordinator(conn, w)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Submit(ctx, wall.Post{Content: fmt.Sprintf("post %d", i)}); err != nil {
			t.Fatal(err)
		}
	}

	conn.set(connectivity.StateOnline)
	c.FlushPending(ctx)

	if q.Len() != 0 {
		t.Errorf("queue depth = %d, want 0 after flush", q.Len())
	}
	if w.createCount() != 3 {
		t.Fatalf("remote writes = %d, want 3", w.createCount())
	}
	for i, p := range w.creates {
		if want := fmt.Sprintf("post %d", i); p.Content != want {
			t.Errorf("write %d content = %q, want %q (insertion order)", i, p.Content, want)
		}
		if p.ID != "" || p.Pending {
			t.Errorf("write %d carried queue bookkeeping: id=%q pending=%v", i, p.ID, p.Pending)
		}
	}
}

func TestFlushStopsAtFirstFailure(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	w := &fakeWriter{failAt: 3}
	c, q := testCoordinator(conn, w)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		res, err := c.Submit(ctx, wall.Post{Content: fmt.Sprintf("post %d", i)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, res.ID)
	}

	conn.set(connectivity.StateOnline)
	c.FlushPending(ctx)

	// Writes 1 and 2 succeeded, write 3 failed: entries 3..5 must survive in order.
	if w.createCount() != 3 {
		t.Errorf("remote writes = %d, want 3 (stop at first failure)", w.createCount())
	}
	rest := q.List()
	if len(rest) != 3 {
		t.Fatalf("queue depth = %d, want 3", len(rest))
	}
	for i, e := range rest {
		if e.TempID != ids[i+2] {
			t.Errorf("survivor %d = %q, want %q (original order)", i, e.TempID, ids[i+2])
		}
	}
}

func TestFlushRetriesRemainderOnNextReconnect(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	w := &fakeWriter{failAt: 2}
	c, q := testCoordinator(conn, w)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Submit(ctx, wall.Post{Content: fmt.Sprintf("post %d", i)}); err != nil {
			t.Fatal(err)
		}
	}

	conn.set(connectivity.StateOnline)
	c.FlushPending(ctx)
	if q.Len() != 2 {
		t.Fatalf("queue depth after failed flush = %d, want 2", q.Len())
	}

	// Next reconnect: remote recovered.
	w.mu.Lock()
	w.failAt = 0
	w.mu.Unlock()
	c.FlushPending(ctx)

	if q.Len() != 0 {
		t.Errorf("queue depth after retry = %d, want 0", q.Len())
	}
}

// Scenario from the wall screen: post while offline, then reconnect.
func TestOfflinePostThenReconnect(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	w := &fakeWriter{}
	c, q := testCoordinator(conn, w)
	ctx := context.Background()

	res, err := c.Submit(ctx, wall.Post{Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusQueued || w.createCount() != 0 {
		t.Fatalf("offline submit: status=%q writes=%d, want queued and 0", res.Status, w.createCount())
	}

	conn.set(connectivity.StateOnline)
	c.FlushPending(ctx)

	if w.createCount() != 1 {
		t.Fatalf("remote writes = %d, want exactly 1", w.createCount())
	}
	if w.creates[0].Content != "hello" {
		t.Errorf("flushed content = %q, want hello", w.creates[0].Content)
	}
	for _, e := range q.List() {
		if e.TempID == res.ID {
			t.Error("temp id still present in queue after successful flush")
		}
	}
}

// Scenario: a flaky connection fires the reconnect callback twice while the
// first flush is still waiting on network I/O. Exactly one pass must run.
func TestConcurrentReconnectSinglePass(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	w := &fakeWriter{delay: 30 * time.Millisecond}
	c, q := testCoordinator(conn, w)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Submit(ctx, wall.Post{Content: fmt.Sprintf("post %d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	conn.set(connectivity.StateOnline)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.FlushPending(ctx)
		}()
	}
	wg.Wait()

	if w.createCount() != 3 {
		t.Errorf("remote writes = %d, want 3 (one full pass, not two interleaved)", w.createCount())
	}
	if q.Len() != 0 {
		t.Errorf("queue depth = %d, want 0", q.Len())
	}
}

func TestCooldownBlocksRapidSubmissions(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOnline}
	w := &fakeWriter{}
	q := queue.New()
	limiter := cooldown.New(kv.NewMemory(), zap.NewNop())
	c := New(conn, q, w, limiter, 90*time.Second, bus.New(), zap.NewNop())
	ctx := context.Background()

	if _, err := c.Submit(ctx, wall.Post{Content: "first"}); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	_, err := c.Submit(ctx, wall.Post{Content: "second"})
	var cdErr *CooldownError
	if !errors.As(err, &cdErr) {
		t.Fatalf("second Submit() error = %v, want CooldownError", err)
	}
	if cdErr.Remaining <= 0 || cdErr.Remaining > 90*time.Second {
		t.Errorf("Remaining = %v, want within (0, 90s]", cdErr.Remaining)
	}
}

func TestOfflineSubmitAlsoStartsCooldown(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	w := &fakeWriter{}
	q := queue.New()
	limiter := cooldown.New(kv.NewMemory(), zap.NewNop())
	c := New(conn, q, w, limiter, 90*time.Second, bus.New(), zap.NewNop())
	ctx := context.Background()

	if _, err := c.Submit(ctx, wall.Post{Content: "queued"}); err != nil {
		t.Fatal(err)
	}
	_, err := c.Submit(ctx, wall.Post{Content: "too soon"})
	var cdErr *CooldownError
	if !errors.As(err, &cdErr) {
		t.Errorf("error = %v, want CooldownError (cooldown applies offline too)", err)
	}
}

func TestFeedConcatenatesPending(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	w := &fakeWriter{posts: []wall.Post{
		{ID: "srv-b", Content: "newer"},
		{ID: "srv-a", Content: "older"},
	}}
	c, _ := testCoordinator(conn, w)
	ctx := context.Background()

	res, err := c.Submit(ctx, wall.Post{Content: "mine, pending"})
	if err != nil {
		t.Fatal(err)
	}

	feed, err := c.Feed(ctx)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("feed len = %d, want 3", len(feed))
	}
	last := feed[2]
	if !last.Pending || last.ID != res.ID {
		t.Errorf("pending entry = %+v, want pending with id %q", last, res.ID)
	}
	for _, p := range feed[:2] {
		if p.Pending {
			t.Errorf("confirmed post %q flagged pending", p.ID)
		}
	}
}

func TestToggleLikeOffline(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOffline}
	c, _ := testCoordinator(conn, &fakeWriter{})

	err := c.ToggleLike(context.Background(), "srv-1", "u1")
	if !errors.Is(err, ErrOffline) {
		t.Errorf("error = %v, want ErrOffline", err)
	}
}

func TestToggleLikePendingPost(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOnline}
	c, _ := testCoordinator(conn, &fakeWriter{})

	err := c.ToggleLike(context.Background(), wall.NewTempID(), "u1")
	if !errors.Is(err, ErrPendingPost) {
		t.Errorf("error = %v, want ErrPendingPost", err)
	}
}

func TestToggleLikeOnline(t *testing.T) {
	conn := &fakeConn{state: connectivity.StateOnline}
	w := &fakeWriter{}
	c, _ := testCoordinator(conn, w)

	if err := c.ToggleLike(context.Background(), "srv-1", "u1"); err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if len(w.likes) != 1 || w.likes[0] != "srv-1/u1" {
		t.Errorf("likes = %v, want [srv-1/u1]", w.likes)
	}
}
