package ratelimit

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCounter keeps counters in a size-bounded LRU whose entries expire
// after bucketTTL, so many distinct clients cannot grow it without limit.
type MemoryCounter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, int64]
}

// NewMemoryCounter creates a counter holding at most size buckets.
func NewMemoryCounter(size int) *MemoryCounter {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCounter{
		buckets: expirable.NewLRU[string, int64](size, nil, bucketTTL),
	}
}

// Increment implements Counter.
func (c *MemoryCounter) Increment(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, _ := c.buckets.Get(key)
	n++
	c.buckets.Add(key, n)
	return n, nil
}

// Len returns the number of live buckets.
func (c *MemoryCounter) Len() int {
	return c.buckets.Len()
}
