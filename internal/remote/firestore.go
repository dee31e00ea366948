package remote

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rlacuesta/campusd/internal/wall"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Collections names the three realtime collections the app subscribes to.
type Collections struct {
	Tasks         string
	Announcements string
	Wall          string
}

// FirestoreStore implements Writer and Watcher on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
	cols   Collections
	logger *zap.Logger
}

// NewFirestore connects to Firestore for the given project.
func NewFirestore(ctx context.Context, projectID, credentialsFile string, cols Collections, logger *zap.Logger) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreStore{client: client, cols: cols, logger: logger}, nil
}

// Close releases the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type postDoc struct {
	AuthorID  string    `firestore:"authorId"`
	Content   string    `firestore:"content"`
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp"`
	ExpiresAt time.Time `firestore:"expiresAt"`
	Likes     int       `firestore:"likes"`
	LikedBy   []string  `firestore:"likedBy"`
}

// CreatePost persists a wall post with a server-generated timestamp and
// returns the server-assigned document ID.
func (s *FirestoreStore) CreatePost(ctx context.Context, p wall.Post) (string, error) {
	ref, _, err := s.client.Collection(s.cols.Wall).Add(ctx, map[string]any{
		"authorId":  p.AuthorID,
		"content":   p.Content,
		"createdAt": firestore.ServerTimestamp,
		"expiresAt": p.ExpiresAt,
		"likes":     0,
		"likedBy":   []string{},
	})
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return ref.ID, nil
}

// ToggleLike flips userID's membership in the post's like set inside a
// transaction, so concurrent likes from other users never lose updates.
func (s *FirestoreStore) ToggleLike(ctx context.Context, postID, userID string) error {
	ref := s.client.Collection(s.cols.Wall).Doc(postID)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc postDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode post %s: %w", postID, err)
		}

		liked := false
		for _, id := range doc.LikedBy {
			if id == userID {
				liked = true
				break
			}
		}

		likes := doc.Likes
		likedBy := doc.LikedBy
		if liked {
			likes--
			if likes < 0 {
				likes = 0
			}
			filtered := likedBy[:0:0]
			for _, id := range likedBy {
				if id != userID {
					filtered = append(filtered, id)
				}
			}
			likedBy = filtered
		} else {
			likes++
			likedBy = append(likedBy, userID)
		}
		if likedBy == nil {
			likedBy = []string{}
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "likes", Value: likes},
			{Path: "likedBy", Value: likedBy},
		})
	})
}

// ListPosts returns live posts newest first. Posts whose expiresAt has
// passed are filtered out and deleted in the background; the server-side
// scheduled cleanup remains authoritative.
func (s *FirestoreStore) ListPosts(ctx context.Context) ([]wall.Post, error) {
	iter := s.client.Collection(s.cols.Wall).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	now := time.Now()
	var posts []wall.Post
	var expired []*firestore.DocumentRef
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		var doc postDoc
		if err := snap.DataTo(&doc); err != nil {
			s.logger.Warn("skipping undecodable post",
				zap.String("id", snap.Ref.ID), zap.Error(err))
			continue
		}
		if !doc.ExpiresAt.IsZero() && doc.ExpiresAt.Before(now) {
			expired = append(expired, snap.Ref)
			continue
		}
		posts = append(posts, wall.Post{
			ID:        snap.Ref.ID,
			AuthorID:  doc.AuthorID,
			Content:   doc.Content,
			CreatedAt: doc.CreatedAt,
			ExpiresAt: doc.ExpiresAt,
			Likes:     doc.Likes,
			LikedBy:   doc.LikedBy,
		})
	}

	if len(expired) > 0 {
		go s.deleteExpired(expired)
	}
	return posts, nil
}

// deleteExpired removes expired documents in batches. Best effort: whichever
// client observes them first cleans them up, and failures only get logged.
func (s *FirestoreStore) deleteExpired(refs []*firestore.DocumentRef) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch := s.client.Batch()
	count := 0
	for _, ref := range refs {
		batch.Delete(ref)
		count++
		// Firestore batch limit is 500.
		if count >= 500 {
			if _, err := batch.Commit(ctx); err != nil {
				s.logger.Warn("expired post cleanup failed", zap.Error(err))
				return
			}
			batch = s.client.Batch()
			count = 0
		}
	}
	if count > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			s.logger.Warn("expired post cleanup failed", zap.Error(err))
			return
		}
	}
	s.logger.Info("expired posts cleaned up", zap.Int("count", len(refs)))
}

// Watch subscribes to a collection ordered by creation time and forwards
// each query snapshot to fn until the returned stop function is called.
func (s *FirestoreStore) Watch(ctx context.Context, collection string, fn SnapshotFunc) (func(), error) {
	wctx, cancel := context.WithCancel(ctx)
	it := s.client.Collection(collection).
		OrderBy("createdAt", firestore.Asc).
		Snapshots(wctx)

	go func() {
		defer it.Stop()
		for {
			qsnap, err := it.Next()
			if err != nil {
				if grpcstatus.Code(err) == codes.Canceled || wctx.Err() != nil {
					return
				}
				s.logger.Error("realtime subscription ended",
					zap.String("collection", collection), zap.Error(err))
				return
			}
			snap := Snapshot{}
			for _, ch := range qsnap.Changes {
				snap.Changes = append(snap.Changes, Change{
					Kind:   changeKind(ch.Kind),
					Record: recordFromDoc(ch.Doc),
				})
			}
			fn(snap)
		}
	}()

	return cancel, nil
}

func changeKind(k firestore.DocumentChangeKind) ChangeKind {
	switch k {
	case firestore.DocumentAdded:
		return Added
	case firestore.DocumentModified:
		return Modified
	default:
		return Removed
	}
}

// recordFromDoc decodes the fields shared across the three collections.
// Wall posts store their text under "content", tasks and announcements under
// "body".
func recordFromDoc(doc *firestore.DocumentSnapshot) Record {
	data := doc.Data()
	rec := Record{ID: doc.Ref.ID}
	if v, ok := data["authorId"].(string); ok {
		rec.AuthorID = v
	}
	if v, ok := data["title"].(string); ok {
		rec.Title = v
	}
	if v, ok := data["content"].(string); ok {
		rec.Body = v
	} else if v, ok := data["body"].(string); ok {
		rec.Body = v
	}
	if v, ok := data["createdAt"].(time.Time); ok {
		rec.CreatedAt = v
	}
	if v, ok := data["expiresAt"].(time.Time); ok {
		rec.ExpiresAt = v
	}
	return rec
}
