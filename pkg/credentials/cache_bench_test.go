package credentials

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

// BenchmarkCacheGetPut measures Get/Put throughput under concurrent load
// and varying hit/miss ratios.
func BenchmarkCacheGetPut(b *testing.B) {
	cache := NewCache[string](10 * time.Second)
	keyPrefix := "agsys|production|svc"

	// Seed entries so lookups mix hits and misses
	for i := 0; i < 1000; i++ {
		key := keyPrefix + strconv.Itoa(i)
		cache.Put(key, "key-"+strconv.Itoa(i))
	}

	b.Run("sequential_hits", func(b *testing.B) {
		key := keyPrefix + "500"
		for i := 0; i < b.N; i++ {
			cache.Get(key)
		}
	})

	b.Run("sequential_puts", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			cache.Put(keyPrefix+strconv.Itoa(i%1000), "rotated-key")
		}
	})

	b.Run("concurrent_gets", func(b *testing.B) {
		var wg sync.WaitGroup
		b.ResetTimer()
		for n := 0; n < b.N; n++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cache.Get(keyPrefix + strconv.Itoa(i%1000))
			}(n)
		}
		wg.Wait()
	})

	b.Run("concurrent_mixed", func(b *testing.B) {
		var wg sync.WaitGroup
		b.ResetTimer()
		for n := 0; n < b.N; n++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					cache.Get(keyPrefix + strconv.Itoa(i%1000))
				} else {
					cache.Put(keyPrefix+strconv.Itoa(i%1000), "rotated-key")
				}
			}(n)
		}
		wg.Wait()
	})
}

// BenchmarkCacheGetOrFetch measures the hot path where every lookup is
// served from cache and the fetch function never runs.
func BenchmarkCacheGetOrFetch(b *testing.B) {
	cache := NewCache[string](10 * time.Second)
	ctx := context.Background()
	cache.Put("agsys|production|runner", "cached-key")

	fetch := func(context.Context) (string, error) { return "fetched-key", nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cache.GetOrFetch(ctx, "agsys|production|runner", fetch); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCacheCleanup measures cleanup throughput.
func BenchmarkCacheCleanup(b *testing.B) {
	cache := NewCache[string](1 * time.Second)
	for i := 0; i < 10000; i++ {
		cache.Put("key"+strconv.Itoa(i), "v")
	}

	time.Sleep(1100 * time.Millisecond)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		cache.cleanupExpired()
	}
}
