package storage

import (
	"fmt"
	"sync"
	"testing"
)

// TestShardedStorageConcurrency tests concurrent access to sharded storage
func TestShardedStorageConcurrency(t *testing.T) {
	stor := NewMemory()

	numGoroutines := 50
	numOperations := 100

	var wg sync.WaitGroup

	t.Run("ConcurrentSet", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					stor.Set(fmt.Sprintf("key_%d_%d", id, j), fmt.Sprintf("value_%d_%d", id, j))
				}
			}(i)
		}
		wg.Wait()
	})

	if got := stor.KeyCount(); got != int64(numGoroutines*numOperations) {
		t.Fatalf("expected %d keys, got %d", numGoroutines*numOperations, got)
	}

	t.Run("ConcurrentGet", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := fmt.Sprintf("key_%d_%d", id, j)
					if v, ok := stor.Get(key); !ok || v != fmt.Sprintf("value_%d_%d", id, j) {
						t.Errorf("Get failed for key %s", key)
					}
				}
			}(i)
		}
		wg.Wait()
	})

	t.Run("ConcurrentDel", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					stor.Del(fmt.Sprintf("key_%d_%d", id, j))
				}
			}(i)
		}
		wg.Wait()
	})

	if finalCount := stor.KeyCount(); finalCount != 0 {
		t.Errorf("Expected 0 keys after deletion, got %d", finalCount)
	}
}

// TestShardedStorageMixedOperations runs readers and writers on the same keys
func TestShardedStorageMixedOperations(t *testing.T) {
	stor := NewMemory(WithShardCount(8))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				stor.Set(fmt.Sprintf("shared_%d", j%10), fmt.Sprintf("%d", id))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				stor.Get(fmt.Sprintf("shared_%d", j%10))
			}
		}()
	}
	wg.Wait()

	if got := stor.KeyCount(); got != 10 {
		t.Errorf("expected 10 keys, got %d", got)
	}
}
