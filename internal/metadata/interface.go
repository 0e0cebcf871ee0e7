package metadata

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("file metadata not found")

// FileInfo describes a stored blob. It is written once and never updated.
type FileInfo struct {
	ID          string    `bson:"_id" json:"id"`
	BlobHandle  string    `bson:"blob_handle" json:"blobHandle"`
	Filename    string    `bson:"filename" json:"filename"`
	ContentType string    `bson:"content_type" json:"contentType"`
	Size        int64     `bson:"size" json:"size"`
	Checksum    string    `bson:"checksum" json:"checksum"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}

// NewFile carries the fields needed to create a FileInfo.
type NewFile struct {
	BlobHandle  string
	Filename    string
	ContentType string
	Size        int64
	Checksum    string
}

// Store persists FileInfo records.
type Store interface {
	Persist(ctx context.Context, file NewFile) (*FileInfo, error)
	Find(ctx context.Context, id string) (*FileInfo, error)
	Delete(ctx context.Context, info *FileInfo) error
}
