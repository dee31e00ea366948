// Package queue holds writes made while offline until the coordinator can
// replay them. The queue is in-memory by design: entries pending at process
// exit are dropped, and that limitation is part of the contract — only the
// cooldown state is durable.
package queue

import (
	"sync"
	"time"

	"github.com/rlacuesta/campusd/internal/wall"
)

// Status of a queued entry. Entries are never mutated after creation; a
// flush either removes one or leaves it untouched for the next attempt.
type Status string

// StatusPending is the only status a live entry ever has.
const StatusPending Status = "pending"

// Pending is a not-yet-persisted wall post tagged with its client-generated
// identifier.
type Pending struct {
	TempID     string
	Post       wall.Post
	EnqueuedAt time.Time
	Status     Status
}

// Queue is an ordered in-memory collection of pending writes. Enqueue and
// Remove are the only mutations and both are atomic.
type Queue struct {
	mu      sync.Mutex
	entries []Pending
	now     func() time.Time
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{now: time.Now}
}

// Enqueue appends a new entry with a fresh temp ID and returns it
// synchronously so the caller can render the post immediately.
func (q *Queue) Enqueue(post wall.Post) Pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	post.ID = wall.NewTempID()
	post.Pending = true
	if post.CreatedAt.IsZero() {
		post.CreatedAt = q.now()
	}
	entry := Pending{
		TempID:     post.ID,
		Post:       post,
		EnqueuedAt: q.now(),
		Status:     StatusPending,
	}
	q.entries = append(q.entries, entry)
	return entry
}

// List returns a snapshot of the queue in insertion order.
func (q *Queue) List() []Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Pending, len(q.entries))
	copy(out, q.entries)
	return out
}

// Remove deletes the entry with the given temp ID. Removing an absent entry
// is a no-op, so a flush and a retry can race harmlessly.
func (q *Queue) Remove(tempID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.TempID == tempID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
