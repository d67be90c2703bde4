// Package blob provides byte-stream object storage by container and path.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound indicates no object exists at the requested path.
var ErrNotFound = errors.New("blob not found")

// Ref points at a stored object.
type Ref struct {
	Container string `json:"container"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// Store is the blob storage interface used by processors.
type Store interface {
	Download(ctx context.Context, container, path string) ([]byte, error)
	Upload(ctx context.Context, container, path string, data []byte, contentType string) (Ref, error)
}
