package storage

import (
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
)

const defaultVirtualNodes = 150

// ring places keys on nodes with consistent hashing. Each node owns
// virtualNodes points on the ring.
type ring struct {
	mu           sync.RWMutex
	points       []uint32
	owners       map[uint32]string
	virtualNodes int
}

func newRing(virtualNodes int) *ring {
	if virtualNodes <= 0 {
		virtualNodes = defaultVirtualNodes
	}
	return &ring{
		owners:       make(map[uint32]string),
		virtualNodes: virtualNodes,
	}
}

func (r *ring) add(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.virtualNodes; i++ {
		p := point(nodeID + "#" + strconv.Itoa(i))
		if _, taken := r.owners[p]; taken {
			continue
		}
		r.owners[p] = nodeID
		r.points = append(r.points, p)
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i] < r.points[j] })
}

func (r *ring) remove(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.points[:0]
	for _, p := range r.points {
		if r.owners[p] == nodeID {
			delete(r.owners, p)
			continue
		}
		kept = append(kept, p)
	}
	r.points = kept
}

// locate returns up to n distinct nodes for key, walking clockwise from the
// key's position. The first entry is the primary.
func (r *ring) locate(key string, n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 || n <= 0 {
		return nil
	}

	h := point(key)
	start := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })

	seen := make(map[string]struct{}, n)
	nodes := make([]string, 0, n)
	for i := 0; i < len(r.points) && len(nodes) < n; i++ {
		owner := r.owners[r.points[(start+i)%len(r.points)]]
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		nodes = append(nodes, owner)
	}
	return nodes
}

func point(key string) uint32 {
	return crc32.ChecksumIEEE([]byte(key))
}
