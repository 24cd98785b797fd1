// Package cache keeps recently resolved accounts in memory.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"chandabaz/internal/metrics"
	"chandabaz/internal/models"
)

// AccountCache is an LRU of accounts keyed by ID with a fixed TTL.
// Each process has its own cache, so a deactivation reaches other instances
// only after the TTL.
type AccountCache struct {
	lru *expirable.LRU[string, models.User]
}

// NewAccountCache creates a cache holding at most size accounts for ttl
func NewAccountCache(size int, ttl time.Duration) *AccountCache {
	if size <= 0 {
		size = 1024
	}
	return &AccountCache{lru: expirable.NewLRU[string, models.User](size, nil, ttl)}
}

// Get returns a copy of the cached account
func (c *AccountCache) Get(id string) (*models.User, bool) {
	u, ok := c.lru.Get(id)
	if !ok {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	metrics.CacheHits.Inc()
	return &u, true
}

// Set stores a copy of user
func (c *AccountCache) Set(user *models.User) {
	if user == nil {
		return
	}
	c.lru.Add(user.ID, *user)
}

// Invalidate drops the account with id
func (c *AccountCache) Invalidate(id string) {
	c.lru.Remove(id)
}

// GetOrLoad returns the cached account or loads and caches it
func (c *AccountCache) GetOrLoad(ctx context.Context, id string, load func(context.Context, string) (*models.User, error)) (*models.User, error) {
	if u, ok := c.Get(id); ok {
		return u, nil
	}
	u, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Set(u)
	return u, nil
}

// Len returns the number of live entries
func (c *AccountCache) Len() int {
	return c.lru.Len()
}
