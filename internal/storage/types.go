package storage

import (
	"context"
	"io"
)

// Provider abstracts blob storage operations.
type Provider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the long-lived URL for a storage key.
	PublicURL(key string) string
}
