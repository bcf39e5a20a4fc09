package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the storage behind the catalog and query caches. The in-process
// implementation is the default; redis lets multiple instances share results.
// In-flight coalescing is always process-local and sits above this interface.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a TTL map guarded by a mutex.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expires: m.now().Add(ttl)}
}

// RedisCache stores cached payloads in redis with native expiry. Errors are
// treated as misses; the cache is an optimization, not a source of truth.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	r.client.Set(ctx, key, value, ttl)
}
