package store

import "context"

// Store is a key-value store of opaque JSON blobs. Every record is written
// whole; there is no partial-field update at this layer.
type Store interface {
	// Get returns the stored value. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Pinger is an optional capability used by health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
