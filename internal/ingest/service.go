// Package ingest validates uploaded images and stores them: bytes go to a
// BlobStore, the derived FileInfo to a metadata Store, and optionally an
// Account referencing the file to an account Store.
//
// Every call is handled sequentially on the caller's goroutine. Batches are
// all-or-nothing: content types are checked for the whole batch before any
// store is touched, and a storage failure part way through rolls back every
// item the call already stored.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yashlad/fserver/internal/account"
	"github.com/yashlad/fserver/internal/contenttype"
	"github.com/yashlad/fserver/internal/metadata"
	"github.com/yashlad/fserver/internal/storage"
)

// Operation names passed to the Observer.
const (
	OpStoreSingle      = "store_single"
	OpStoreMany        = "store_many"
	OpStoreWithAccount = "store_with_account"
	OpStoreAccounts    = "store_accounts"
)

// Outcomes passed to the Observer.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// FileContent is an upload decoded by the transport layer.
type FileContent struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Observer receives one call per ingest operation.
type Observer interface {
	ObserveIngest(op, outcome string, duration time.Duration, files int, bytes int64)
}

type nopObserver struct{}

func (nopObserver) ObserveIngest(string, string, time.Duration, int, int64) {}

// Service runs the upload pipeline against its collaborators. It holds no
// per-call state and is safe for concurrent use if the stores are.
type Service struct {
	blobs    storage.BlobStore
	files    metadata.Store
	accounts account.Store
	observer Observer
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(observer Observer) Option {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// New creates a Service.
func New(blobs storage.BlobStore, files metadata.Store, accounts account.Store, opts ...Option) *Service {
	s := &Service{
		blobs:    blobs,
		files:    files,
		accounts: accounts,
		observer: nopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkContent rejects content types outside the whitelist.
func (s *Service) checkContent(content FileContent) error {
	if contenttype.IsAccepted(content.ContentType) {
		s.logger.Debug("file content accepted",
			zap.String("filename", content.Filename),
			zap.String("content_type", content.ContentType))
		return nil
	}
	s.logger.Info("file content rejected",
		zap.String("filename", content.Filename),
		zap.String("content_type", content.ContentType))
	return &InvalidFileFormatError{
		Filename:    content.Filename,
		ContentType: content.ContentType,
		Accepted:    contenttype.Accepted(),
	}
}

// screen returns every entry whose content type is rejected, in input order.
func screen(contents []FileContent) []Offender {
	var offenders []Offender
	for _, c := range contents {
		if !contenttype.IsAccepted(c.ContentType) {
			offenders = append(offenders, Offender{Filename: c.Filename, ContentType: c.ContentType})
		}
	}
	return offenders
}

// newFileRecord maps a stored blob and its upload onto the metadata fields.
func newFileRecord(blob storage.Blob, content FileContent) metadata.NewFile {
	return metadata.NewFile{
		BlobHandle:  blob.Handle,
		Filename:    content.Filename,
		ContentType: content.ContentType,
		Size:        blob.Size,
		Checksum:    blob.Checksum,
	}
}

// rollbackFiles removes files stored earlier in a failed call, newest first.
// Failures are logged and otherwise ignored.
func (s *Service) rollbackFiles(ctx context.Context, infos []*metadata.FileInfo) {
	ctx = context.WithoutCancel(ctx)
	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]
		if err := s.files.Delete(ctx, info); err != nil {
			s.logger.Error("rollback metadata delete failed",
				zap.String("file_id", info.ID),
				zap.Error(err))
		}
		s.deleteBlob(ctx, info.BlobHandle)
	}
}

func (s *Service) deleteBlob(ctx context.Context, handle string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), handle); err != nil {
		s.logger.Error("blob delete failed",
			zap.String("handle", handle),
			zap.Error(err))
	}
}

func (s *Service) observe(op string, start time.Time, files int, size int64, err error) {
	duration := time.Since(start)
	outcome := outcomeOf(err)
	s.observer.ObserveIngest(op, outcome, duration, files, size)

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("outcome", outcome),
		zap.Int("files", files),
		zap.Duration("duration", duration),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		s.logger.Warn("ingest failed", fields...)
		return
	}
	s.logger.Info("ingest complete", fields...)
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if status, _ := Classify(err); status == StatusBadRequest {
		return OutcomeRejected
	}
	return OutcomeFailed
}

func totalSize(contents []FileContent) int64 {
	var n int64
	for _, c := range contents {
		n += int64(len(c.Data))
	}
	return n
}
