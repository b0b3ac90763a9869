// Package storage provides the concurrent in-memory key-value store
// that backs the magic server.
//
// Keys are spread over a power-of-two number of shards selected by the
// xxhash of the key. Each shard carries its own read/write lock, so writers
// only exclude readers of the same shard.
//
// Basic usage:
//
//	store := storage.NewMemory()
//	store.Set("key", "value")
//	value, exists := store.Get("key")
//
// The lock is taken per call and never held across I/O.
package storage
