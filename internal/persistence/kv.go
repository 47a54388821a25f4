package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"danmakuproxy/pkg/logger"
)

// kvStore is the second persistence tier (spec/4.3): Redis when reachable,
// an in-memory map otherwise. Adapted from the teacher's
// pkg/cache/cache.go Cache interface/RedisCache/MemoryCache pair — same
// shape, generalized from HTTP-response caching to the Adapter's
// name-keyed blobs.
type kvStore interface {
	get(key string) ([]byte, bool)
	set(key string, value []byte)
}

type redisKV struct {
	client *redis.Client
	ctx    context.Context
}

func newRedisKV(addr string, db int) *redisKV {
	return &redisKV{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ctx:    context.Background(),
	}
}

func (r *redisKV) get(key string) ([]byte, bool) {
	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return nil, false
	}
	return []byte(val), true
}

func (r *redisKV) set(key string, value []byte) {
	if err := r.client.Set(r.ctx, key, value, 0).Err(); err != nil {
		logger.Warnf("persistence: redis write for %s failed: %v", key, err)
	}
}

type memoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memoryKV) set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// newKVTier mirrors the teacher's NewCache: try Redis, ping with a short
// timeout, fall back to the in-memory map if it isn't reachable.
func newKVTier(addr string, db int) kvStore {
	if addr == "" {
		return newMemoryKV()
	}
	r := newRedisKV(addr, db)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		logger.Warnf("persistence: redis at %s unreachable (%v), falling back to memory tier", addr, err)
		return newMemoryKV()
	}
	logger.Infof("persistence: connected to redis at %s", addr)
	return r
}
