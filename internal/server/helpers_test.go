package server

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yashlad/fserver/internal/account"
	"github.com/yashlad/fserver/internal/ingest"
	"github.com/yashlad/fserver/internal/metadata"
	"github.com/yashlad/fserver/internal/storage"
)

// memFiles is an in-memory metadata.Store.
type memFiles struct {
	mu    sync.Mutex
	next  int
	files map[string]*metadata.FileInfo
}

func (m *memFiles) Persist(_ context.Context, file metadata.NewFile) (*metadata.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	info := &metadata.FileInfo{
		ID:          fmt.Sprintf("file-%d", m.next),
		BlobHandle:  file.BlobHandle,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
		Checksum:    file.Checksum,
		CreatedAt:   time.Now().UTC(),
	}
	m.files[info.ID] = info
	return info, nil
}

func (m *memFiles) Find(_ context.Context, id string) (*metadata.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.files[id]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return info, nil
}

func (m *memFiles) Delete(_ context.Context, info *metadata.FileInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, info.ID)
	return nil
}

// memAccounts is an in-memory account.Store.
type memAccounts struct {
	mu       sync.Mutex
	next     int
	accounts map[string]*account.Account
}

func (m *memAccounts) Save(_ context.Context, acc *account.Account) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	stored := *acc
	stored.ID = fmt.Sprintf("acc-%d", m.next)
	stored.CreatedAt = time.Now().UTC()
	m.accounts[stored.ID] = &stored
	return &stored, nil
}

func (m *memAccounts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

type testEnv struct {
	svc      *ingest.Service
	files    *memFiles
	accounts *memAccounts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zaptest.NewLogger(t)
	blobs := storage.NewShardedStore(1, log)
	require.NoError(t, blobs.AddNode("node-1", t.TempDir()))

	env := &testEnv{
		files:    &memFiles{files: make(map[string]*metadata.FileInfo)},
		accounts: &memAccounts{accounts: make(map[string]*account.Account)},
	}
	env.svc = ingest.New(blobs, env.files, env.accounts, ingest.WithLogger(log))
	return env
}
