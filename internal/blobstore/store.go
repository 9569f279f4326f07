// Package blobstore holds large artifact payloads outside the model
// context. Keys are content-addressed unless the caller supplies one.
package blobstore

import "context"

// BlobStore stores artifact payloads referenced by key.
type BlobStore interface {
	// Put stores data and returns its key. An empty key requests
	// content addressing.
	Put(ctx context.Context, key string, data []byte, mediaType string) (string, error)

	// Get returns the payload for key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the payload for key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
