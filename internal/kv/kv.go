// Package kv provides the minimal async key-value storage contract used for
// cooldown timestamps, notification preferences and session hints.
package kv

import "context"

// Store is a per-key atomic string store. There are no transactions and no
// cross-key atomicity guarantees.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
