package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newBenchCache(b *testing.B) *URLCache {
	b.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = client.Close() })

	return NewURLCache(client)
}

func BenchmarkURLCacheGet(b *testing.B) {
	c := newBenchCache(b)
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_ = c.Set(ctx, fmt.Sprintf("owner/key-%d", i), fmt.Sprintf("https://blobs.example.com/%d", i), 10*time.Minute)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, fmt.Sprintf("owner/key-%d", i%1000))
	}
}

// BenchmarkURLCacheMixedParallel mixes one write per four reads across
// goroutines, roughly the shape of download traffic.
func BenchmarkURLCacheMixedParallel(b *testing.B) {
	c := newBenchCache(b)
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		_ = c.Set(ctx, fmt.Sprintf("owner/key-%d", i), fmt.Sprintf("https://blobs.example.com/%d", i), 10*time.Minute)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%5 == 0 {
				_ = c.Set(ctx, fmt.Sprintf("owner/key-%d", i%1000), fmt.Sprintf("https://blobs.example.com/%d", i), 10*time.Minute)
			} else {
				_, _, _ = c.Get(ctx, fmt.Sprintf("owner/key-%d", i%500))
			}
			i++
		}
	})
}

func BenchmarkURLCacheEvictBatch(b *testing.B) {
	c := newBenchCache(b)
	ctx := context.Background()
	keys := make([]string, 100)
	for j := range keys {
		keys[j] = fmt.Sprintf("owner/key-%d", j)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for _, key := range keys {
			_ = c.Set(ctx, key, "https://blobs.example.com/"+key, time.Minute)
		}
		_ = c.Delete(ctx, keys...)
	}
}
