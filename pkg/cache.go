package cache

// cache.go assembles every collaborator — the segmented hash table, the
// CLOCK-Pro eviction ring, the loader/writer/listener/timing seams, and the
// statistics sink — into the public Cache[K,V] type and its operations.
// Every read/write funnels through the Entry Action driver (action.go) so
// this file stays a thin, declarative surface over semantics.go's Semantic
// values.
//
// © 2025 heapcache authors. MIT License.

import (
    "context"
    "sync"
    "sync/atomic"

    "go.uber.org/zap"

    "github.com/heapcache/heapcache/internal/hashtable"
)

// Cache is a bounded, thread-safe, in-process key/value cache with
// optional loader-backed population, write-through persistence, TTL and
// refresh-ahead expiry, and pluggable CLOCK-Pro-based eviction.
type Cache[K comparable, V any] struct {
    cfg   *config[K, V]
    table *hashtable.Table[K, *Entry[K, V]]

    eviction   Eviction[K, V]
    evictionMu sync.Mutex // serializes every call into eviction: CLOCK-Pro's ring is a single global structure, not sharded like the hash table
    loaders  *loaderGroup[K, V]
    timing   *timingHandler[K, V]
    metrics  *metricsSink
    listeners listenerSet[K, V]
    clock    Clock
    log      *zap.Logger

    clearEpoch atomic.Int64
    closed     atomic.Bool
}

// New constructs a Cache configured by opts. Returns an error if the
// combination of options is invalid (e.g. RefreshAhead without a Loader).
func New[K comparable, V any](opts ...Option[K, V]) (*Cache[K, V], error) {
    cfg := defaultConfig[K, V]()
    if err := applyOptions(cfg, opts); err != nil {
        return nil, err
    }

    c := &Cache[K, V]{
        cfg:       cfg,
        table:     hashtable.New[K, *Entry[K, V]](cfg.segments),
        loaders:   newLoaderGroup[K, V](),
        metrics:   newMetricsSink(cfg.name, cfg.registry),
        listeners: cfg.listeners,
        clock:     cfg.clock,
        log:       cfg.logger,
    }
    c.timing = newTimingHandler[K, V](cfg)
    c.timing.onExpire = c.triggerExpire
    c.timing.onRefresh = c.triggerRefresh

    if capacity := c.effectiveCapacity(); capacity > 0 {
        c.eviction = newClockProEviction[K, V](capacity, cfg.weightFn, c.onEvicted)
    } else {
        c.eviction = noopEviction[K, V]{}
    }

    return c, nil
}

// onEvicted runs synchronously from inside the CLOCK-Pro sweep (already
// serialized by evictionMu) whenever an entry is displaced for capacity
// reasons. It detaches the entry from the hash table so subsequent lookups
// see a miss, then forwards to the user's own EjectCallback and the
// Removed listeners.
//
// The entry's own mu is only taken via TryLock: evictionMu is already held
// here, and the entry may simultaneously be owned by another goroutine
// mid-mutation that itself needs evictionMu to commit (e.g. another Touch
// or Insert) — blocking on entry.mu here would deadlock against that
// goroutine. Skipping the TryLock failure case leaves the entry briefly
// reachable to whoever already held it, a best-effort trade-off consistent
// with Len() and the other dirty counters.
func (c *Cache[K, V]) onEvicted(key K, val V, reason EvictionReason) {
    hash := c.table.Hash(key)
    if ent, ok := c.table.Lookup(key, hash); ok {
        c.table.Remove(key, hash)
        if ent.mu.TryLock() {
            c.timing.cancelExpiryTimer(ent)
            ent.gone = true
            ent.processingState = stateGone
            ent.cond.Broadcast()
            ent.mu.Unlock()
        }
    }
    c.metrics.incEviction()
    c.listeners.notifyRemoved(c.log, c.cfg.listenerErrorHandler, key, val)
    if c.cfg.ejectCb != nil {
        c.cfg.ejectCb(key, val, reason)
    }
}

func (c *Cache[K, V]) checkOpen() error {
    if c.closed.Load() {
        return ErrClosed
    }
    return nil
}

/*
   ---------------- Read operations ----------------
*/

// Get returns the value for key, loading it via the configured Loader on a
// miss. Returns ErrClosed if the cache is closed, ErrNoSuchElement if no
// Loader is configured and the key is absent, or a LoaderFailed error
// wrapping the cause if the Loader itself fails.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, error) {
    if err := c.checkOpen(); err != nil {
        var zero V
        return zero, err
    }
    val, _, err := c.runSemanticAction(ctx, key, semanticGet[K, V](), nil)
    return val, err
}

// Peek returns the value for key if fresh data is already resident,
// without ever invoking a Loader.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
    val, existed, _ := c.runSemanticAction(context.Background(), key, semanticPeek[K, V](), nil)
    return val, existed
}

// GetEntry is Get, returning a CacheEntry view instead of a bare value.
func (c *Cache[K, V]) GetEntry(ctx context.Context, key K) (CacheEntry[K, V], error) {
    if err := c.checkOpen(); err != nil {
        return CacheEntry[K, V]{key: key, err: err}, err
    }
    val, existed, err := c.runSemanticAction(ctx, key, semanticGet[K, V](), nil)
    return c.entryView(key, val, existed, err), err
}

// PeekEntry is Peek, returning a CacheEntry view.
func (c *Cache[K, V]) PeekEntry(key K) CacheEntry[K, V] {
    val, existed, err := c.runSemanticAction(context.Background(), key, semanticPeek[K, V](), nil)
    return c.entryView(key, val, existed, err)
}

func (c *Cache[K, V]) entryView(key K, val V, existed bool, err error) CacheEntry[K, V] {
    return CacheEntry[K, V]{key: key, value: val, exists: existed, err: err}
}

// ContainsKey reports whether key currently maps to fresh data, without
// invoking a Loader.
func (c *Cache[K, V]) ContainsKey(key K) bool {
    _, existed := c.Peek(key)
    return existed
}

/*
   ---------------- Write operations ----------------
*/

// Put unconditionally associates key with value.
func (c *Cache[K, V]) Put(ctx context.Context, key K, value V) error {
    if err := c.checkOpen(); err != nil {
        return err
    }
    _, _, err := c.runSemanticAction(ctx, key, semanticPut[K, V](value), nil)
    return err
}

// PutAll is a convenience wrapper over Put for a batch of entries. It stops
// and returns the first error encountered.
func (c *Cache[K, V]) PutAll(ctx context.Context, entries map[K]V) error {
    for k, v := range entries {
        if err := c.Put(ctx, k, v); err != nil {
            return err
        }
    }
    return nil
}

// PutIfAbsent associates key with value only if no fresh data is currently
// present, returning whether the value was stored.
func (c *Cache[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (bool, error) {
    if err := c.checkOpen(); err != nil {
        return false, err
    }
    _, existed, err := c.runSemanticAction(ctx, key, semanticPutIfAbsent[K, V](value), nil)
    return !existed, err
}

// Replace associates key with value only if fresh data is already present,
// returning whether the replacement happened.
func (c *Cache[K, V]) Replace(ctx context.Context, key K, value V) (bool, error) {
    if err := c.checkOpen(); err != nil {
        return false, err
    }
    _, existed, err := c.runSemanticAction(ctx, key, semanticReplace[K, V](value), nil)
    return existed, err
}

// ReplaceIfEquals associates key with newVal only if the current fresh
// value equals oldVal under eq, returning whether the replacement happened.
func (c *Cache[K, V]) ReplaceIfEquals(ctx context.Context, key K, oldVal, newVal V, eq func(a, b V) bool) (bool, error) {
    if err := c.checkOpen(); err != nil {
        return false, err
    }
    newV, replaced, err := c.runSemanticAction(ctx, key, semanticReplaceIfEquals[K, V](oldVal, newVal, eq), nil)
    _ = newV
    return replaced, err
}

// Remove deletes key unconditionally.
func (c *Cache[K, V]) Remove(ctx context.Context, key K) error {
    if err := c.checkOpen(); err != nil {
        return err
    }
    _, _, err := c.runSemanticAction(ctx, key, semanticRemove[K, V](), nil)
    return err
}

// RemoveIfEquals deletes key only if its current fresh value equals val
// under eq, returning whether the removal happened.
func (c *Cache[K, V]) RemoveIfEquals(ctx context.Context, key K, val V, eq func(a, b V) bool) (bool, error) {
    if err := c.checkOpen(); err != nil {
        return false, err
    }
    sem := Semantic[K, V]{
        name:               "removeIfEquals",
        suppressLoadOnMiss: true,
        examine: func(present bool, value V, _ error) semanticOutcome {
            if present && eq(value, val) {
                return outcomeMutate
            }
            return outcomeAbort
        },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{remove: true}
        },
    }
    _, removed, err := c.runSemanticAction(ctx, key, sem, nil)
    return removed, err
}

// ContainsAndRemove atomically checks presence and removes key, returning
// whether it was present.
func (c *Cache[K, V]) ContainsAndRemove(ctx context.Context, key K) (bool, error) {
    if err := c.checkOpen(); err != nil {
        return false, err
    }
    _, existed, err := c.runSemanticAction(ctx, key, semanticContainsAndRemove[K, V](), nil)
    return existed, err
}

// PeekAndPut associates key with value and returns the prior value (if
// any), without invoking a Loader.
func (c *Cache[K, V]) PeekAndPut(ctx context.Context, key K, value V) (V, bool, error) {
    if err := c.checkOpen(); err != nil {
        var zero V
        return zero, false, err
    }
    return c.runSemanticAction(ctx, key, semanticPeekAndPut[K, V](value), nil)
}

// PeekAndRemove removes key and returns its prior value (if any), without
// invoking a Loader.
func (c *Cache[K, V]) PeekAndRemove(ctx context.Context, key K) (V, bool, error) {
    if err := c.checkOpen(); err != nil {
        var zero V
        return zero, false, err
    }
    return c.runSemanticAction(ctx, key, semanticPeekAndRemove[K, V](), nil)
}

// PeekAndReplace replaces key's value only if fresh data is present,
// returning the prior value.
func (c *Cache[K, V]) PeekAndReplace(ctx context.Context, key K, value V) (V, bool, error) {
    if err := c.checkOpen(); err != nil {
        var zero V
        return zero, false, err
    }
    return c.runSemanticAction(ctx, key, semanticPeekAndReplace[K, V](value), nil)
}

// ComputeIfAbsent returns the fresh value for key, computing and storing it
// via compute if absent. Unlike Get, compute is supplied per call rather
// than via the cache-wide Loader.
func (c *Cache[K, V]) ComputeIfAbsent(ctx context.Context, key K, compute func(ctx context.Context, key K) (V, error)) (V, error) {
    if err := c.checkOpen(); err != nil {
        var zero V
        return zero, err
    }
    sem, ld := semanticComputeIfAbsent[K, V](key, compute)
    val, _, err := c.runSemanticAction(ctx, key, sem, ld)
    return val, err
}

// Invoke drives fn against a MutableEntryView for key, committing whatever
// mutation fn stages (SetValue/Remove) when it returns without error.
func (c *Cache[K, V]) Invoke(ctx context.Context, key K, fn InvokeFunc[K, V]) (V, error) {
    if err := c.checkOpen(); err != nil {
        var zero V
        return zero, err
    }
    val, _, err := c.runInvokeAction(ctx, key, fn)
    return val, err
}

// InvokeAll runs Invoke for every key in keys, stopping at the first error.
func (c *Cache[K, V]) InvokeAll(ctx context.Context, keys []K, fn InvokeFunc[K, V]) error {
    for _, k := range keys {
        if _, err := c.Invoke(ctx, k, fn); err != nil {
            return err
        }
    }
    return nil
}

/*
   ---------------- Bulk load / refresh ----------------
*/

// LoadAll loads every key in keys that is currently absent or stale,
// stopping at the first error.
func (c *Cache[K, V]) LoadAll(ctx context.Context, keys []K) error {
    for _, k := range keys {
        if _, err := c.Get(ctx, k); err != nil {
            return err
        }
    }
    return nil
}

// ReloadAll forces a fresh Load for every key in keys regardless of
// freshness, stopping at the first error.
func (c *Cache[K, V]) ReloadAll(ctx context.Context, keys []K) error {
    if err := c.checkOpen(); err != nil {
        return err
    }
    if c.cfg.loader == nil {
        return NewErrInternal("reloadAll", errNoLoaderConfigured)
    }
    c.metrics.incReload()
    sem := Semantic[K, V]{
        name:    "reload",
        examine: func(bool, V, error) semanticOutcome { return outcomeLoad },
    }
    for _, k := range keys {
        if _, _, err := c.runSemanticAction(ctx, k, sem, nil); err != nil {
            return err
        }
    }
    return nil
}

// Prefetch asynchronously warms key if it is absent or stale, without
// blocking the caller or surfacing loader errors (they are only logged).
func (c *Cache[K, V]) Prefetch(key K) {
    if c.cfg.loader == nil {
        return
    }
    go func() {
        if _, err := c.Get(context.Background(), key); err != nil {
            c.log.Warn("prefetch failed", zap.Any("key", key), zap.Error(err))
        }
    }()
}

// PrefetchAll calls Prefetch for every key in keys.
func (c *Cache[K, V]) PrefetchAll(keys []K) {
    for _, k := range keys {
        c.Prefetch(k)
    }
}

// ExpireAt overrides key's next refresh time to the given epoch
// millisecond value. Pass ETERNAL or NoCache for the named sentinels.
func (c *Cache[K, V]) ExpireAt(key K, millisEpoch int64) error {
    if err := c.checkOpen(); err != nil {
        return err
    }
    hash := c.table.Hash(key)
    ent, ok := c.table.Lookup(key, hash)
    if !ok {
        return nil
    }
    ent.mu.Lock()
    for ent.processingState != stateDone && !ent.gone {
        ent.cond.Wait()
    }
    if ent.gone {
        ent.mu.Unlock()
        return nil
    }
    ent.nextRefreshTime = millisEpoch
    c.timing.stopStartTimer(ent, key)
    ent.mu.Unlock()
    return nil
}

/*
   ---------------- Whole-cache operations ----------------
*/

// Clear removes every entry, holding every hash-table segment lock at once
// while it detaches them, returning the number removed. Running iterators observe this via their epoch check
// and terminate cleanly rather than yielding a mix of old and new data.
func (c *Cache[K, V]) Clear() int {
    removed := c.table.ClearVisit(func(ent *Entry[K, V]) {
        ent.mu.Lock()
        c.timing.cancelExpiryTimer(ent)
        ent.gone = true
        ent.processingState = stateGone
        ent.cond.Broadcast()
        ent.mu.Unlock()
    })
    c.evictionMu.Lock()
    c.eviction = noopEviction[K, V]{}
    if capacity := c.effectiveCapacity(); capacity > 0 {
        c.eviction = newClockProEviction[K, V](capacity, c.cfg.weightFn, c.onEvicted)
    }
    c.evictionMu.Unlock()
    c.clearEpoch.Add(1)
    return removed
}

func (c *Cache[K, V]) effectiveCapacity() int64 {
    if c.cfg.maximumWeight > 0 {
        return c.cfg.maximumWeight
    }
    return c.cfg.maximumSize
}

// Close marks the cache closed and clears every resident entry; subsequent
// operations that return an error return ErrClosed.
func (c *Cache[K, V]) Close() error {
    if !c.closed.CompareAndSwap(false, true) {
        return nil
    }
    c.Clear()
    return nil
}

// Len returns the approximate number of resident entries.
func (c *Cache[K, V]) Len() int { return c.table.Len() }

// Stats returns a point-in-time snapshot of the cache's dirty counters.
func (c *Cache[K, V]) Stats() Stats {
    return c.metrics.snapshot(int64(c.table.Len()))
}

// Iterator returns a fuzzy-snapshot iterator over every fresh mapping.
func (c *Cache[K, V]) Iterator() *Iterator[K, V] {
    return newIterator(c)
}
