package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yashlad/fserver/internal/metadata"
)

const (
	msgFileStored = "File Store :- "
	msgFileFound  = "File Found :- "
)

// StoreSingle validates content, writes its bytes and records its FileInfo.
// An invalid content type fails with *InvalidFileFormatError before any I/O;
// store failures return *StorageError. If the metadata write fails the blob
// just written is deleted.
func (s *Service) StoreSingle(ctx context.Context, content FileContent) (Envelope[metadata.FileInfo], error) {
	start := time.Now()
	info, err := s.storeFile(ctx, content)
	s.observe(OpStoreSingle, start, 1, int64(len(content.Data)), err)
	if err != nil {
		return Envelope[metadata.FileInfo]{}, err
	}
	return Success(msgFileStored, info), nil
}

func (s *Service) storeFile(ctx context.Context, content FileContent) (*metadata.FileInfo, error) {
	if err := s.checkContent(content); err != nil {
		return nil, err
	}

	blob, err := s.blobs.Save(ctx, content.Data)
	if err != nil {
		return nil, &StorageError{Op: OpBlobWrite, Index: -1, Err: err}
	}

	info, err := s.files.Persist(ctx, newFileRecord(blob, content))
	if err != nil {
		s.deleteBlob(ctx, blob.Handle)
		return nil, &StorageError{Op: OpMetadataWrite, Index: -1, Err: err}
	}

	s.logger.Debug("file stored",
		zap.String("file_id", info.ID),
		zap.String("filename", info.Filename),
		zap.Int64("size", info.Size))
	return info, nil
}

// FindFile returns the FileInfo stored under id.
func (s *Service) FindFile(ctx context.Context, id string) (Envelope[metadata.FileInfo], error) {
	info, err := s.findFile(ctx, id)
	if err != nil {
		return Envelope[metadata.FileInfo]{}, err
	}
	return Success(msgFileFound, info), nil
}

// OpenFile returns the FileInfo stored under id together with its bytes.
func (s *Service) OpenFile(ctx context.Context, id string) (*metadata.FileInfo, []byte, error) {
	info, err := s.findFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.blobs.Open(ctx, info.BlobHandle)
	if err != nil {
		return nil, nil, &StorageError{Op: OpBlobRead, Index: -1, Err: err}
	}
	return info, data, nil
}

func (s *Service) findFile(ctx context.Context, id string) (*metadata.FileInfo, error) {
	info, err := s.files.Find(ctx, id)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, &StorageError{Op: OpMetadataRead, Index: -1, Err: err}
	}
	return info, nil
}
