package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yashlad/fserver/internal/account"
	"github.com/yashlad/fserver/internal/metadata"
	"github.com/yashlad/fserver/internal/storage"
)

var errStoreDown = errors.New("store down")

// stubBlobStore keeps blobs in memory and counts calls. failOn makes the
// n-th Save (1-based) fail.
type stubBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saves   int
	deletes []string
	failOn  int
	failDel bool
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{blobs: make(map[string][]byte)}
}

func (s *stubBlobStore) Save(ctx context.Context, data []byte) (storage.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if s.saves == s.failOn {
		return storage.Blob{}, errStoreDown
	}
	handle := fmt.Sprintf("blob-%d", s.saves)
	s.blobs[handle] = data
	return storage.Blob{Handle: handle, Size: int64(len(data)), Checksum: "sum-" + handle}, nil
}

func (s *stubBlobStore) Open(ctx context.Context, handle string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[handle]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return data, nil
}

func (s *stubBlobStore) Delete(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, handle)
	if s.failDel {
		return errStoreDown
	}
	delete(s.blobs, handle)
	return nil
}

func (s *stubBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// stubMetadataStore keeps FileInfo records in memory and counts calls.
type stubMetadataStore struct {
	mu        sync.Mutex
	files     map[string]*metadata.FileInfo
	persisted []*metadata.FileInfo
	persists  int
	deletes   []string
	failOn    int
	findErr   error
}

func newStubMetadataStore() *stubMetadataStore {
	return &stubMetadataStore{files: make(map[string]*metadata.FileInfo)}
}

func (s *stubMetadataStore) Persist(ctx context.Context, file metadata.NewFile) (*metadata.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persists++
	if s.persists == s.failOn {
		return nil, errStoreDown
	}
	info := &metadata.FileInfo{
		ID:          fmt.Sprintf("file-%d", s.persists),
		BlobHandle:  file.BlobHandle,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
		Checksum:    file.Checksum,
		CreatedAt:   time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
	}
	s.files[info.ID] = info
	s.persisted = append(s.persisted, info)
	return info, nil
}

func (s *stubMetadataStore) Find(ctx context.Context, id string) (*metadata.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	info, ok := s.files[id]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return info, nil
}

func (s *stubMetadataStore) Delete(ctx context.Context, info *metadata.FileInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, info.ID)
	delete(s.files, info.ID)
	return nil
}

func (s *stubMetadataStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// stubAccountStore keeps accounts in memory and counts calls.
type stubAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*account.Account
	saves    int
	deletes  []string
	failOn   int
}

func newStubAccountStore() *stubAccountStore {
	return &stubAccountStore{accounts: make(map[string]*account.Account)}
}

func (s *stubAccountStore) Save(ctx context.Context, acc *account.Account) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if s.saves == s.failOn {
		return nil, errStoreDown
	}
	stored := *acc
	stored.ID = fmt.Sprintf("acc-%d", s.saves)
	s.accounts[stored.ID] = &stored
	return &stored, nil
}

func (s *stubAccountStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, id)
	delete(s.accounts, id)
	return nil
}

func (s *stubAccountStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// recordingObserver captures ObserveIngest calls.
type recordingObserver struct {
	mu    sync.Mutex
	calls []observation
}

type observation struct {
	op, outcome string
	files       int
	bytes       int64
}

func (o *recordingObserver) ObserveIngest(op, outcome string, _ time.Duration, files int, bytes int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, observation{op: op, outcome: outcome, files: files, bytes: bytes})
}

type fixture struct {
	blobs    *stubBlobStore
	files    *stubMetadataStore
	accounts *stubAccountStore
	observer *recordingObserver
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		blobs:    newStubBlobStore(),
		files:    newStubMetadataStore(),
		accounts: newStubAccountStore(),
		observer: &recordingObserver{},
	}
	f.svc = New(f.blobs, f.files, f.accounts, WithObserver(f.observer))
	return f
}

func png(name string, size int) FileContent {
	return FileContent{Filename: name, ContentType: "image/png", Data: make([]byte, size)}
}

func jpeg(name string, size int) FileContent {
	return FileContent{Filename: name, ContentType: "image/jpeg", Data: make([]byte, size)}
}

func text(name string) FileContent {
	return FileContent{Filename: name, ContentType: "text/plain", Data: []byte("hello")}
}
