package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Get("missing")
	assert.False(t, ok)

	store.Set("k", "v", time.Minute)
	got, ok := store.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	store.Set("k", "v2", time.Minute)
	got, _ = store.Get("k")
	assert.Equal(t, "v2", got)

	store.Delete("k")
	_, ok = store.Get("k")
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()

	store.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := store.Get("k")
	assert.False(t, ok)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%4)
			for j := 0; j < 100; j++ {
				store.Set(key, "v", time.Minute)
				store.Get(key)
				store.Delete(key)
			}
		}(i)
	}
	wg.Wait()
}
