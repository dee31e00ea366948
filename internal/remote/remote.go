// Package remote defines the contract this layer expects from the backing
// document store, plus the Cloud Firestore implementation of it.
package remote

import (
	"context"
	"time"

	"github.com/rlacuesta/campusd/internal/wall"
)

// Record is the generic shape of a realtime document delivered to listeners.
// Tasks and announcements carry a title; wall posts only a body.
type Record struct {
	ID        string
	AuthorID  string
	Title     string
	Body      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ChangeKind classifies a document change within a snapshot.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

// Change is one document change delivered by a realtime subscription.
type Change struct {
	Kind   ChangeKind
	Record Record
}

// Snapshot is one realtime push: the set of changes since the previous one.
// The first snapshot after subscribing describes every pre-existing document
// as Added.
type Snapshot struct {
	Changes []Change
}

// SnapshotFunc receives snapshots from a subscription.
type SnapshotFunc func(Snapshot)

// Writer is the write-side contract used by the sync coordinator.
type Writer interface {
	// CreatePost persists a wall post and returns the server-assigned ID.
	CreatePost(ctx context.Context, p wall.Post) (string, error)
	// ToggleLike atomically adds or removes userID from the post's like set
	// and adjusts the counter, safe against concurrent likers.
	ToggleLike(ctx context.Context, postID, userID string) error
	// ListPosts returns live posts newest first. Expired posts are filtered
	// out and opportunistically deleted.
	ListPosts(ctx context.Context) ([]wall.Post, error)
}

// Watcher is the realtime contract used by the listener manager. Watch
// subscribes to a collection and returns a stop function releasing the
// subscription.
type Watcher interface {
	Watch(ctx context.Context, collection string, fn SnapshotFunc) (func(), error)
}
