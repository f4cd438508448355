package chaindict

import "context"

// Store is a write-once blob store. Implementations must be safe for
// concurrent use, including by multiple processes sharing the same backend.
//
// PutIfAbsent is the only serialization point between writers: a backend which
// cannot guarantee that at most one PutIfAbsent succeeds per key (natively or
// through a conditional put) cannot safely host a chain.
type Store interface {
	// Get returns the object stored at key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// PutIfAbsent stores data at key unless an object already exists there, in
	// which case it returns ErrAlreadyExists. The put must be all-or-nothing.
	PutIfAbsent(ctx context.Context, key string, data []byte) error
	// List returns all keys starting with prefix, in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}
