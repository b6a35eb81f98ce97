package cache

// loader.go defines the collaborator interfaces Entry Action drives on a
// cache miss, a refresh, or a mutation (Loader, AsyncLoader, Writer,
// ExpiryPolicy, ResiliencePolicy), plus the singleflight-based
// de-duplication layer that prevents a thundering herd when many goroutines
// request the same missing key at once: only one Loader call executes, the
// rest wait for its result.
//
// golang.org/x/sync/singleflight needs a string key; we format the table's
// 64-bit hash rather than require K itself be string-able.
//
// © 2025 heapcache authors. MIT License.

import (
    "context"
    "strconv"

    "golang.org/x/sync/singleflight"
)

/*
   ---------------- Collaborator interfaces ----------------
*/

// Loader produces a value for key when Get (or a refresh) misses. Must be
// side-effect free with respect to the cache it serves: calling back into
// the same Cache from inside Load risks deadlock. The same Loader instance
// is invoked concurrently for different keys and must be thread-safe.
type Loader[K comparable, V any] interface {
    Load(ctx context.Context, key K) (V, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

func (f LoaderFunc[K, V]) Load(ctx context.Context, key K) (V, error) { return f(ctx, key) }

// AsyncLoader is the callback-based alternative to Loader: instead of
// blocking the calling goroutine, it is handed a complete func to invoke
// once the value (or error) is ready, from whatever goroutine it chooses.
type AsyncLoader[K comparable, V any] interface {
    LoadAsync(ctx context.Context, key K, complete func(V, error))
}

// Writer is consulted by Put/PutAll/Remove before the in-memory mutation is
// committed, implementing write-through semantics. A non-nil error aborts
// the mutation: the in-memory value is left unchanged and the error is
// returned to the caller.
type Writer[K comparable, V any] interface {
    Write(ctx context.Context, key K, value V) error
    Delete(ctx context.Context, key K) error
}

// ExpiryPolicy computes the millisecond wall-clock time at which an entry's
// data stops being fresh, after every load or mutation. Returning
// heapcache.ETERNAL means never expire; returning heapcache.NoCache means
// the value is not cached at all.
type ExpiryPolicy[K comparable, V any] interface {
    ExpireAfterCreate(key K, value V, loadTime int64) int64
    ExpireAfterUpdate(key K, value V, loadTime int64, oldNextRefreshTime int64) int64
    ExpireAfterRead(key K, value V, readTime int64, currentNextRefreshTime int64) int64
}

// ResiliencePolicy governs how a failed Load is treated: whether the stale
// value is served a while longer (suppression) and for how long the
// exception itself is cached before the next attempt.
type ResiliencePolicy[K comparable, V any] interface {
    SuppressExceptionUntil(key K, cause error, loadTime int64, priorNextRefreshTime int64) int64
    CacheExceptionUntil(key K, cause error, loadTime int64) int64
}

/*
   ---------------- loaderGroup: singleflight wrapper ----------------
*/

// LoadResult holds the outcome of an asynchronous load. Shared == true means
// this goroutine did not execute the loader itself; it received a result
// shared from another goroutine's in-flight call for the same key.
type LoadResult[V any] struct {
    Value  V
    Err    error
    Shared bool
}

type loaderGroup[K comparable, V any] struct {
    g singleflight.Group
}

func newLoaderGroup[K comparable, V any]() *loaderGroup[K, V] {
    return &loaderGroup[K, V]{}
}

// load executes fn exactly once for the given key hash across all goroutines
// concurrently missing on it. Every waiter receives the same value/error.
func (lg *loaderGroup[K, V]) load(ctx context.Context, keyHash uint64, key K, ld Loader[K, V]) (val V, err error, shared bool) {
    k := strconv.FormatUint(keyHash, 16)
    res, err, shared := lg.g.Do(k, func() (any, error) {
        return ld.Load(ctx, key)
    })
    if err != nil {
        return val, err, shared
    }
    return res.(V), nil, shared
}

// loadAsync wraps singleflight.DoChan in a typed result channel. ctx
// cancellation does not cancel the underlying in-flight call — another
// waiter may still need its result — it only stops this caller waiting.
func (lg *loaderGroup[K, V]) loadAsync(ctx context.Context, keyHash uint64, key K, ld Loader[K, V]) <-chan LoadResult[V] {
    out := make(chan LoadResult[V], 1)
    k := strconv.FormatUint(keyHash, 16)

    ch := lg.g.DoChan(k, func() (any, error) {
        return ld.Load(context.Background(), key)
    })

    go func() {
        select {
        case res := <-ch:
            if res.Err != nil {
                out <- LoadResult[V]{Err: res.Err, Shared: res.Shared}
            } else {
                out <- LoadResult[V]{Value: res.Val.(V), Shared: res.Shared}
            }
        case <-ctx.Done():
            var zero V
            out <- LoadResult[V]{Value: zero, Err: ctx.Err(), Shared: false}
        }
        close(out)
    }()
    return out
}
