package storage

import (
	"sort"
	"testing"
)

func TestMemoryStorage_SetGet(t *testing.T) {
	stor := NewMemory()

	stor.Set("wand", "elder")
	value, ok := stor.Get("wand")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if value != "elder" {
		t.Errorf("expected elder, got %s", value)
	}

	if _, ok := stor.Get("cloak"); ok {
		t.Error("expected missing key to be absent")
	}
}

func TestMemoryStorage_Overwrite(t *testing.T) {
	stor := NewMemory()

	stor.Set("k", "v1")
	stor.Set("k", "v2")

	value, _ := stor.Get("k")
	if value != "v2" {
		t.Errorf("expected v2 after overwrite, got %s", value)
	}
	if stor.KeyCount() != 1 {
		t.Errorf("expected 1 key, got %d", stor.KeyCount())
	}
}

func TestMemoryStorage_Del(t *testing.T) {
	stor := NewMemory()
	stor.Set("a", "1")
	stor.Set("b", "2")

	if n := stor.Del("a", "missing"); n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	if stor.Exists("a") {
		t.Error("expected a to be deleted")
	}
	if !stor.Exists("b") {
		t.Error("deleting a must not affect b")
	}

	// Deleting an absent key is a no-op
	if n := stor.Del("a"); n != 0 {
		t.Errorf("expected 0 deleted, got %d", n)
	}
}

func TestMemoryStorage_KeysAndFlush(t *testing.T) {
	stor := NewMemory(WithShardCount(4))
	stor.Set("x", "1")
	stor.Set("y", "2")
	stor.Set("z", "3")

	keys := stor.Keys()
	sort.Strings(keys)
	if len(keys) != 3 || keys[0] != "x" || keys[2] != "z" {
		t.Errorf("unexpected keys: %v", keys)
	}

	stor.FlushAll()
	if stor.KeyCount() != 0 {
		t.Errorf("expected empty store after flush, got %d keys", stor.KeyCount())
	}
}

func TestWithShardCount(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{1, 1},
		{3, 4},
		{16, 16},
		{100, 128},
		{0, 32},
	}

	for _, tt := range tests {
		stor := NewMemory(WithShardCount(tt.requested))
		if got := stor.ShardCount(); got != tt.want {
			t.Errorf("WithShardCount(%d): expected %d shards, got %d", tt.requested, tt.want, got)
		}
	}
}
