// Package bench provides reproducible micro-benchmarks for heapcache.
// Run via:  go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// The benchmarks intentionally use a *single* key/value shape so results are
// comparable across versions:
//   - Key   - uint64  (cheap hashing, fits in register)
//   - Value - 64-byte struct (large enough to matter, small enough for cache)
//
// We measure:
//  1. Put     - write-only workload
//  2. Get     - read-only workload, Loader never actually called (warm)
//  3. GetParallel - highly concurrent reads (b.RunParallel)
//  4. Get (mixed) - 90% hits, 10% misses with loader cost
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
//
// NOTE: Unit tests live elsewhere; this file is *only* for performance.
//
// © 2025 heapcache authors. MIT License.

package bench

import (
	"context"
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	cache "github.com/heapcache/heapcache/pkg"
)

type value64 struct {
	_ [64]byte
}

const (
	maxEntries = 1 << 20 // 1M entries per cache cap
	ttl        = time.Minute
	segments   = 16
	keys       = 1 << 20 // 1M keys for dataset
)

func newTestCache(loader cache.Loader[uint64, value64]) *cache.Cache[uint64, value64] {
	c, err := cache.New[uint64, value64](
		cache.WithMaximumSize[uint64, value64](maxEntries),
		cache.WithExpireAfterWrite[uint64, value64](ttl),
		cache.WithSegments[uint64, value64](segments),
		cache.WithLoader[uint64, value64](loader),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// global dataset reused across benches to avoid reallocating large slices.
var ds = func() []uint64 {
	arr := make([]uint64, keys)
	for i := range arr {
		arr[i] = rand.Uint64()
	}
	return arr
}()

func BenchmarkPut(b *testing.B) {
	c := newTestCache(nil)
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(keys-1)]
		_ = c.Put(context.Background(), key, val)
	}
	c.Close()
}

func BenchmarkGet(b *testing.B) {
	val := value64{}
	loader := cache.LoaderFunc[uint64, value64](func(ctx context.Context, key uint64) (value64, error) {
		return val, nil
	})
	c := newTestCache(loader)
	for _, k := range ds {
		_ = c.Put(context.Background(), k, val)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		_, _ = c.Get(context.Background(), k)
	}
	c.Close()
}

func BenchmarkGetParallel(b *testing.B) {
	val := value64{}
	loader := cache.LoaderFunc[uint64, value64](func(ctx context.Context, key uint64) (value64, error) {
		return val, nil
	})
	c := newTestCache(loader)
	for _, k := range ds {
		_ = c.Put(context.Background(), k, val)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			_, _ = c.Get(context.Background(), ds[idx])
		}
	})
	c.Close()
}

func BenchmarkGetMixed(b *testing.B) {
	val := value64{}
	var loaderCnt atomic.Uint64
	loader := cache.LoaderFunc[uint64, value64](func(ctx context.Context, key uint64) (value64, error) {
		loaderCnt.Add(1)
		return val, nil
	})
	c := newTestCache(loader)
	// Preload 90% of keys to simulate mixed hit/miss.
	for i, k := range ds {
		if i%10 != 0 {
			_ = c.Put(context.Background(), k, val)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		_, _ = c.Get(context.Background(), k)
	}
	c.Close()
	b.ReportMetric(float64(loaderCnt.Load())/float64(b.N)*100, "miss-%")
}

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}
