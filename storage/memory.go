package storage

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// shard represents a single shard of data with its own lock
type shard struct {
	mu   sync.RWMutex
	data map[string]string
}

// MemoryStorage implements Store on top of sharded Go maps
type MemoryStorage struct {
	shards    []shard
	shardMask uint64
}

var _ Store = (*MemoryStorage)(nil)

// MemoryOption is a function that configures a MemoryStorage instance
type MemoryOption func(*MemoryStorage)

// WithShardCount sets the number of shards for the storage.
// The number is rounded up to the next power of 2.
func WithShardCount(count int) MemoryOption {
	return func(s *MemoryStorage) {
		if count > 0 {
			n := nextPowerOf2(count)
			s.shards = make([]shard, n)
			s.shardMask = uint64(n - 1)
		}
	}
}

// NewMemory creates a new in-memory store with 32 shards by default
func NewMemory(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		shards:    make([]shard, 32),
		shardMask: 31,
	}

	for _, opt := range opts {
		opt(s)
	}

	for i := range s.shards {
		s.shards[i].data = make(map[string]string)
	}

	return s
}

// nextPowerOf2 returns the next power of 2 >= n
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// shardFor returns the shard owning key
func (s *MemoryStorage) shardFor(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)&s.shardMask]
}

// ShardCount returns the number of shards in use
func (s *MemoryStorage) ShardCount() int {
	return len(s.shards)
}

// Get retrieves a value by key
func (s *MemoryStorage) Get(key string) (string, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	value, exists := sh.data[key]
	sh.mu.RUnlock()
	return value, exists
}

// Set stores a value, replacing any previous one
func (s *MemoryStorage) Set(key, value string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = value
	sh.mu.Unlock()
}

// Del deletes one or more keys
func (s *MemoryStorage) Del(keys ...string) int64 {
	deleted := int64(0)
	for _, key := range keys {
		sh := s.shardFor(key)
		sh.mu.Lock()
		if _, exists := sh.data[key]; exists {
			delete(sh.data, key)
			deleted++
		}
		sh.mu.Unlock()
	}
	return deleted
}

// Exists reports whether key is stored
func (s *MemoryStorage) Exists(key string) bool {
	_, exists := s.Get(key)
	return exists
}

// KeyCount returns the total number of keys across all shards
func (s *MemoryStorage) KeyCount() int64 {
	var count int64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		count += int64(len(sh.data))
		sh.mu.RUnlock()
	}
	return count
}

// Keys returns every key. Shards are visited one at a time, so the
// result is not an atomic snapshot under concurrent writes.
func (s *MemoryStorage) Keys() []string {
	keys := make([]string, 0)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for key := range sh.data {
			keys = append(keys, key)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// FlushAll removes all keys
func (s *MemoryStorage) FlushAll() {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.data = make(map[string]string)
		sh.mu.Unlock()
	}
}
