package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/yashlad/fserver/internal/contenttype"
	"github.com/yashlad/fserver/internal/metadata"
)

// StoreMany stores every entry of contents, in order.
//
// An empty batch fails with *EmptyBatchError. If any entry has a rejected
// content type the whole batch fails with *ValidationAggregateError and
// nothing is stored. A storage failure on entry i rolls back entries 0..i-1
// and returns *StorageError with Index i; no partial results survive.
func (s *Service) StoreMany(ctx context.Context, contents []FileContent) ([]Envelope[metadata.FileInfo], error) {
	start := time.Now()
	out, err := s.storeMany(ctx, contents)
	s.observe(OpStoreMany, start, len(contents), totalSize(contents), err)
	return out, err
}

func (s *Service) storeMany(ctx context.Context, contents []FileContent) ([]Envelope[metadata.FileInfo], error) {
	if len(contents) == 0 {
		return nil, &EmptyBatchError{Size: 0}
	}

	if offenders := screen(contents); len(offenders) > 0 {
		return nil, &ValidationAggregateError{
			Offenders: offenders,
			Accepted:  contenttype.Accepted(),
		}
	}

	stored := make([]*metadata.FileInfo, 0, len(contents))
	for i, content := range contents {
		info, err := s.storeFile(ctx, content)
		if err != nil {
			s.rollbackFiles(ctx, stored)
			return nil, atIndex(err, i)
		}
		stored = append(stored, info)
	}

	out := make([]Envelope[metadata.FileInfo], len(stored))
	for i, info := range stored {
		out[i] = Success(msgFileStored, info)
	}
	return out, nil
}

// atIndex records the batch position on a StorageError.
func atIndex(err error, i int) error {
	var se *StorageError
	if errors.As(err, &se) {
		se.Index = i
	}
	return err
}
