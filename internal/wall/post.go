// Package wall holds the Freedom Wall domain records shared by the queue,
// the sync coordinator and the remote store adapter.
package wall

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix namespaces client-generated identifiers so they can never
// collide with server-assigned Firestore document IDs.
const TempIDPrefix = "local-"

// NewTempID returns a fresh client-side identifier, unique for the process
// lifetime.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was generated client-side.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Post is a Freedom Wall post. Pending marks posts that only exist in the
// local queue and have not been confirmed by the remote store yet.
type Post struct {
	ID        string
	AuthorID  string
	Content   string
	CreatedAt time.Time
	ExpiresAt time.Time
	Likes     int
	LikedBy   []string
	Pending   bool
}

// Expired reports whether the post's expiry has passed. Zero ExpiresAt means
// the post never expires.
func (p Post) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && p.ExpiresAt.Before(now)
}
