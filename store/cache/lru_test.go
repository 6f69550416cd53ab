package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_Creation(t *testing.T) {
	testCases := []struct {
		name       string
		capacity   int
		defaultTTL time.Duration
		expectCap  int
	}{
		{"default values", 0, 0, 1000},
		{"custom capacity", 500, 0, 500},
		{"custom TTL", 0, 10 * time.Minute, 1000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache := NewLRUCache[string, string](tc.capacity, tc.defaultTTL)
			assert.Equal(t, tc.expectCap, cache.Capacity())
			assert.Equal(t, 0, cache.Size())
		})
	}
}

func TestLRUCache_BasicSetGet(t *testing.T) {
	cache := NewLRUCache[string, string](100, time.Minute)

	t.Run("Set and Get returns value", func(t *testing.T) {
		cache.Set("test-key", "test-value", 0)
		result, ok := cache.Get("test-key")

		require.True(t, ok, "expected key to exist")
		assert.Equal(t, "test-value", result)
	})

	t.Run("Get non-existent key returns false", func(t *testing.T) {
		_, ok := cache.Get("non-existent")
		assert.False(t, ok)
	})

	t.Run("Update existing key", func(t *testing.T) {
		cache.Set("update-key", "value1", 0)
		cache.Set("update-key", "value2", 0)

		result, ok := cache.Get("update-key")
		require.True(t, ok)
		assert.Equal(t, "value2", result)
	})
}

func TestLRUCache_TTLExpiration(t *testing.T) {
	cache := NewLRUCache[string, string](100, 50*time.Millisecond)

	cache.Set("expiring-key", "expiring-value", 50*time.Millisecond)

	_, ok := cache.Get("expiring-key")
	assert.True(t, ok, "key should exist immediately after Set")

	time.Sleep(60 * time.Millisecond)

	_, ok = cache.Get("expiring-key")
	assert.False(t, ok, "key should be expired after TTL")
}

func TestLRUCache_LRUEviction(t *testing.T) {
	cache := NewLRUCache[string, int](3, time.Minute)

	cache.Set("key1", 1, 0)
	cache.Set("key2", 2, 0)
	cache.Set("key3", 3, 0)
	assert.Equal(t, 3, cache.Size(), "cache should be at capacity")

	// Touch key1 so key2 becomes the oldest.
	cache.Get("key1")
	cache.Set("key4", 4, 0)

	_, ok := cache.Get("key2")
	assert.False(t, ok, "least recently used key should be evicted")
	_, ok = cache.Get("key1")
	assert.True(t, ok, "recently used key should survive eviction")
}

func TestLRUCache_RemoveAndClear(t *testing.T) {
	cache := NewLRUCache[int, string](10, time.Minute)

	cache.Set(1, "one", 0)
	cache.Set(2, "two", 0)

	assert.True(t, cache.Remove(1))
	assert.False(t, cache.Remove(1), "removing twice returns false")
	assert.Equal(t, 1, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestLRUCache_ExpiredCleanup(t *testing.T) {
	cache := NewLRUCache[string, string](100, time.Minute)

	cache.Set("short1", "v", 10*time.Millisecond)
	cache.Set("short2", "v", 10*time.Millisecond)
	cache.Set("long", "v", time.Minute)

	time.Sleep(20 * time.Millisecond)

	removed := cache.CleanupExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.Size())
}

func TestLRUCache_ThreadSafety(t *testing.T) {
	cache := NewLRUCache[string, int](200, time.Minute)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d-%d", worker, i)
				cache.Set(key, i, 0)
				cache.Get(key)
			}
		}(worker)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Size(), 200)
}
