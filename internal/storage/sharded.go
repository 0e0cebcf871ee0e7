package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ShardedStore spreads blobs over local nodes using a consistent-hash ring and
// writes every blob to up to replicas nodes.
type ShardedStore struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	ring     *ring
	replicas int
	logger   *zap.Logger
}

// NewShardedStore creates an empty store. Nodes are added with AddNode.
func NewShardedStore(replicas int, logger *zap.Logger) *ShardedStore {
	if replicas <= 0 {
		replicas = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShardedStore{
		nodes:    make(map[string]*Node),
		ring:     newRing(defaultVirtualNodes),
		replicas: replicas,
		logger:   logger,
	}
}

// AddNode registers a node rooted at path.
func (s *ShardedStore) AddNode(id, path string) error {
	node, err := NewNode(id, path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.nodes[id] = node
	s.mu.Unlock()

	s.ring.add(id)
	return nil
}

// removeNode takes a node out of placement. Its data stays on disk.
func (s *ShardedStore) removeNode(id string) {
	s.mu.Lock()
	delete(s.nodes, id)
	s.mu.Unlock()

	s.ring.remove(id)
}

// NodeCount returns the number of registered nodes.
func (s *ShardedStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Save writes data to its replica nodes. It succeeds if at least one replica
// was written.
func (s *ShardedStore) Save(ctx context.Context, data []byte) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	key := uuid.New().String()
	targets := s.placement(key)
	if len(targets) == 0 {
		return Blob{}, errors.New("no storage nodes available")
	}

	var (
		sum     string
		written int
		lastErr error
	)
	for _, node := range targets {
		c, err := node.Put(key, data)
		if err != nil {
			s.logger.Warn("replica write failed",
				zap.String("node", node.ID),
				zap.String("handle", key),
				zap.Error(err))
			lastErr = err
			continue
		}
		sum = c
		written++
	}

	if written == 0 {
		return Blob{}, fmt.Errorf("failed to store blob on any node: %w", lastErr)
	}

	return Blob{Handle: key, Size: int64(len(data)), Checksum: sum}, nil
}

// Open reads the blob from the first replica that returns intact data.
func (s *ShardedStore) Open(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lastErr := ErrBlobNotFound
	for _, node := range s.lookupOrder(handle) {
		data, err := node.Get(handle)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrBlobNotFound) {
			lastErr = err
		}
	}
	return nil, lastErr
}

// Delete removes the blob from every node holding it.
func (s *ShardedStore) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var errs []error
	for _, node := range s.lookupOrder(handle) {
		if !node.Has(handle) {
			continue
		}
		if err := node.Delete(handle); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", node.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *ShardedStore) placement(key string) []*Node {
	ids := s.ring.locate(key, s.replicas)

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// lookupOrder lists the ring placement first, then every other node, so blobs
// written before a topology change are still found.
func (s *ShardedStore) lookupOrder(key string) []*Node {
	primary := s.placement(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(primary))
	for _, node := range primary {
		seen[node.ID] = struct{}{}
	}

	rest := make([]*Node, 0, len(s.nodes))
	for id, node := range s.nodes {
		if _, ok := seen[id]; !ok {
			rest = append(rest, node)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })

	return append(primary, rest...)
}
