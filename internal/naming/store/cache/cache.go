// Package cache provides the read cache for domain record snapshots. Reads
// are served from the cache when fresh; every write to a record invalidates
// its entry.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/millisami/flow-name-service/pkg/domain"
)

// RecordCache caches RecordInfo snapshots keyed by name hash.
type RecordCache interface {
	Get(ctx context.Context, nameHash string) (*domain.RecordInfo, error)
	Set(ctx context.Context, nameHash string, info domain.RecordInfo, ttl time.Duration) error
	Invalidate(ctx context.Context, nameHash string) error
}

type memoryEntry struct {
	info      domain.RecordInfo
	expiresAt time.Time
}

// InMemoryCache is a process-local RecordCache for tests and single-instance
// deployments.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *InMemoryCache) Get(_ context.Context, nameHash string) (*domain.RecordInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[nameHash]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	info := entry.info
	return &info, nil
}

func (c *InMemoryCache) Set(_ context.Context, nameHash string, info domain.RecordInfo, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[nameHash] = memoryEntry{info: info, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *InMemoryCache) Invalidate(_ context.Context, nameHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, nameHash)
	return nil
}
