// Package kvstore models the external asynchronous key-value store the
// checker persists its registry cache and settings into. The core assumes
// eventual, single-key-atomic semantics only.
package kvstore

import "context"

// Store is the capability interface for the external key-value store.
// Absent keys are simply missing from the Get result; that is a valid, not
// exceptional, state.
type Store interface {
	// Get returns the stored values for the requested keys. Keys with no
	// stored value are omitted from the result map.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Set stores every entry of values. Each key is written atomically;
	// there is no cross-key transaction.
	Set(ctx context.Context, values map[string][]byte) error
	// Subscribe returns a channel emitting the name of every key changed
	// through this store type, until ctx is cancelled.
	Subscribe(ctx context.Context, keys ...string) (<-chan string, error)
}
