package metadata

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore keeps recently persisted or fetched records in memory in front
// of another Store. Records are immutable, so entries never go stale; they
// are only dropped on Delete or eviction.
type CachedStore struct {
	next  Store
	cache *lru.Cache[string, FileInfo]
}

// NewCachedStore wraps next with an LRU of the given size.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, FileInfo](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{next: next, cache: cache}, nil
}

func (c *CachedStore) Persist(ctx context.Context, file NewFile) (*FileInfo, error) {
	info, err := c.next.Persist(ctx, file)
	if err != nil {
		return nil, err
	}
	c.cache.Add(info.ID, *info)
	return info, nil
}

func (c *CachedStore) Find(ctx context.Context, id string) (*FileInfo, error) {
	if info, ok := c.cache.Get(id); ok {
		return &info, nil
	}

	info, err := c.next.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *info)
	return info, nil
}

func (c *CachedStore) Delete(ctx context.Context, info *FileInfo) error {
	c.cache.Remove(info.ID)
	return c.next.Delete(ctx, info)
}
