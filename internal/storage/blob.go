package storage

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned when no node holds the requested handle.
var ErrBlobNotFound = errors.New("blob not found")

// Blob describes bytes persisted by a BlobStore.
type Blob struct {
	Handle   string
	Size     int64
	Checksum string
}

// BlobStore durably stores raw bytes behind an opaque handle.
type BlobStore interface {
	Save(ctx context.Context, data []byte) (Blob, error)
	Open(ctx context.Context, handle string) ([]byte, error)
	Delete(ctx context.Context, handle string) error
}
