package auth

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedUserStore keeps recently resolved user records in an expiring LRU.
// Only successful lookups are cached.
type CachedUserStore struct {
	next  UserStore
	cache *lru.LRU[string, UserRecord]
}

// NewCachedUserStore wraps next with a cache of size entries living for ttl
func NewCachedUserStore(next UserStore, size int, ttl time.Duration) *CachedUserStore {
	if size <= 0 {
		size = 1024
	}
	return &CachedUserStore{
		next:  next,
		cache: lru.NewLRU[string, UserRecord](size, nil, ttl),
	}
}

// FindUser implements UserStore
func (c *CachedUserStore) FindUser(ctx context.Context, id string) (*UserRecord, error) {
	if u, ok := c.cache.Get(id); ok {
		return &u, nil
	}

	u, err := c.next.FindUser(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *u)
	return u, nil
}

// Invalidate drops a cached record, e.g. after a role change
func (c *CachedUserStore) Invalidate(id string) {
	c.cache.Remove(id)
}

// Len returns the number of cached records
func (c *CachedUserStore) Len() int {
	return c.cache.Len()
}
