package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	dataFile     = "data"
	checksumFile = "checksum"
)

// ErrChecksumMismatch is returned when stored bytes no longer match their checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch: data corrupted")

// Node is a directory on local disk holding blobs, one subdirectory per key.
type Node struct {
	ID          string
	StoragePath string
	mu          sync.RWMutex
}

// NewNode creates a node rooted at storagePath, creating the directory if needed.
func NewNode(id, storagePath string) (*Node, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("create node dir: %w", err)
	}

	return &Node{
		ID:          id,
		StoragePath: storagePath,
	}, nil
}

// Put writes data under key along with its sha256 checksum and returns the checksum.
func (n *Node) Put(key string, data []byte) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir := filepath.Join(n.StoragePath, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(dir, dataFile), data, 0644); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	sum := checksum(data)
	if err := os.WriteFile(filepath.Join(dir, checksumFile), []byte(sum), 0644); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	return sum, nil
}

// Get reads the blob stored under key and verifies it against its checksum.
func (n *Node) Get(key string) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	dir := filepath.Join(n.StoragePath, key)
	data, err := os.ReadFile(filepath.Join(dir, dataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}

	stored, err := os.ReadFile(filepath.Join(dir, checksumFile))
	if err != nil {
		return nil, err
	}
	if checksum(data) != string(stored) {
		return nil, ErrChecksumMismatch
	}

	return data, nil
}

// Delete removes key from the node. Deleting a missing key is not an error.
func (n *Node) Delete(key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	return os.RemoveAll(filepath.Join(n.StoragePath, key))
}

// Has reports whether the node holds data for key.
func (n *Node) Has(key string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	_, err := os.Stat(filepath.Join(n.StoragePath, key, dataFile))
	return err == nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
