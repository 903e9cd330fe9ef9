// Package storage provides the durable key-value string stores used to keep
// the session credential between process runs.
package storage

import "context"

// Store is a key-value string store.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set creates or overwrites the value for key.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Missing keys are ignored.
	Remove(ctx context.Context, key string) error
}
