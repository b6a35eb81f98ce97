package cache

// config.go defines the internal configuration object and the functional
// options New[K,V] accepts. Generic so option callbacks keep full type
// safety against the caller's concrete K/V.
//
// Design notes
// ------------
//   - All fields get sensible defaults in defaultConfig().
//   - Options never allocate unless strictly necessary; most just capture a
//     pointer to an external collaborator (logger, registry, clock).
//   - The struct itself is unexported: callers can only influence behaviour
//     through Option[K,V], which keeps the field set free to grow.
//
// © 2025 heapcache authors. MIT License.

import (
    "runtime"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "go.uber.org/zap"
)

// WeightFn computes an abstract cost for a stored value (bytes, points,
// whatever the caller's capacity budget is denominated in). Must be pure and
// cheap — it runs on every Put.
type WeightFn[V any] func(V) int

// EjectCallback is invoked when an entry leaves the Heap Cache by capacity
// eviction; explicit removal, expiry and Clear do not invoke it. Runs on the
// calling goroutine and must not block.
type EjectCallback[K comparable, V any] func(key K, val V, reason EvictionReason)

// Option configures a Cache[K,V] at construction time.
type Option[K comparable, V any] func(*config[K, V])

// config bundles every knob that influences cache behaviour. Immutable once
// the Cache is constructed: hot-reloading TTLs or policies mid-flight would
// undermine the per-entry state machine's invariants.
type config[K comparable, V any] struct {
    name string

    maximumSize   int64 // entry count cap, 0 = unbounded by count
    maximumWeight int64 // weight cap, 0 = unbounded by weight
    segments      int

    expireAfterWrite  time.Duration
    expireAfterAccess time.Duration
    sharpExpiry       bool
    safetyGapMillis   int64

    refreshAhead          bool
    refreshAheadFraction  float64 // of expireAfterWrite, e.g. 0.8
    keepDataAfterExpired  bool
    recordRefreshedTime   bool

    loader      Loader[K, V]
    asyncLoader AsyncLoader[K, V]
    writer      Writer[K, V]
    expiry      ExpiryPolicy[K, V]
    resilience  ResiliencePolicy[K, V]

    weightFn WeightFn[V]
    ejectCb  EjectCallback[K, V]

    listeners listenerSet[K, V]

    registry *prometheus.Registry
    logger   *zap.Logger
    clock    Clock

    listenerErrorHandler func(error)
}

func defaultConfig[K comparable, V any]() *config[K, V] {
    return &config[K, V]{
        segments:            runtime.GOMAXPROCS(0),
        expireAfterWrite:    0, // ETERNAL
        safetyGapMillis:     27_000 + 127,
        refreshAheadFraction: 0.8,
        weightFn:            func(V) int { return 1 },
        logger:              zap.NewNop(),
        clock:               NewRealClock(),
    }
}

/*
   ---------------- Functional options exposed to users ----------------
*/

// WithName attaches a diagnostic name, surfaced in log fields and metric
// labels so a process running several caches can tell them apart.
func WithName[K comparable, V any](name string) Option[K, V] {
    return func(c *config[K, V]) { c.name = name }
}

// WithMaximumSize bounds the cache by entry count.
func WithMaximumSize[K comparable, V any](n int64) Option[K, V] {
    return func(c *config[K, V]) { c.maximumSize = n }
}

// WithMaximumWeight bounds the cache by the sum of WeightFn(value) across
// resident entries, instead of raw entry count.
func WithMaximumWeight[K comparable, V any](w int64) Option[K, V] {
    return func(c *config[K, V]) { c.maximumWeight = w }
}

// WithSegments overrides the hash table's initial segment count (rounded up
// to a power of two). Higher segment counts reduce contention under heavy
// concurrent write load at the cost of more per-segment bookkeeping.
func WithSegments[K comparable, V any](n int) Option[K, V] {
    return func(c *config[K, V]) { c.segments = n }
}

// WithExpireAfterWrite sets a uniform time-to-live measured from each
// entry's last write. Zero means entries never expire on their own.
func WithExpireAfterWrite[K comparable, V any](d time.Duration) Option[K, V] {
    return func(c *config[K, V]) { c.expireAfterWrite = d }
}

// WithExpireAfterAccess sets an idle-eviction window measured from each
// entry's last read or write.
func WithExpireAfterAccess[K comparable, V any](d time.Duration) Option[K, V] {
    return func(c *config[K, V]) { c.expireAfterAccess = d }
}

// WithSharpExpiry forces expiry to fire exactly at the computed time rather
// than lazily on next access, at the cost of one timer per near-term entry.
func WithSharpExpiry[K comparable, V any](sharp bool) Option[K, V] {
    return func(c *config[K, V]) { c.sharpExpiry = sharp }
}

// WithRefreshAhead enables background reload once an entry crosses
// RefreshAheadFraction of its remaining lifetime, so readers rarely observe
// a load on the synchronous path.
func WithRefreshAhead[K comparable, V any](enabled bool, fraction float64) Option[K, V] {
    return func(c *config[K, V]) {
        c.refreshAhead = enabled
        if fraction > 0 && fraction < 1 {
            c.refreshAheadFraction = fraction
        }
    }
}

// WithKeepDataAfterExpired keeps an entry resident, with its stale value,
// when an expiry timer fires instead of removing it, until it is evicted or
// overwritten. The kept entry is not fresh: Peek-family operations report a
// miss for it and Get loads anew.
func WithKeepDataAfterExpired[K comparable, V any](keep bool) Option[K, V] {
    return func(c *config[K, V]) { c.keepDataAfterExpired = keep }
}

// WithLoader installs a synchronous Loader, used by Get on miss, by
// ReloadAll and by refresh-ahead reloads.
func WithLoader[K comparable, V any](l Loader[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.loader = l }
}

// WithAsyncLoader installs an AsyncLoader instead of a synchronous one; the
// cache still exposes a blocking Get, it just drives the loader through its
// callback-based contract internally.
func WithAsyncLoader[K comparable, V any](l AsyncLoader[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.asyncLoader = l }
}

// WithWriter installs a write-through Writer, invoked by Put/PutAll/Remove
// before the in-memory mutation is committed.
func WithWriter[K comparable, V any](w Writer[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.writer = w }
}

// WithExpiryPolicy installs a per-entry ExpiryPolicy, consulted after every
// load/mutation to compute the entry's next refresh time.
func WithExpiryPolicy[K comparable, V any](p ExpiryPolicy[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.expiry = p }
}

// WithResiliencePolicy installs a ResiliencePolicy controlling how long a
// loader exception is suppressed (stale value served) versus cached and
// rethrown.
func WithResiliencePolicy[K comparable, V any](p ResiliencePolicy[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.resilience = p }
}

// WithWeightFn overrides the default constant weight function.
func WithWeightFn[K comparable, V any](fn WeightFn[V]) Option[K, V] {
    return func(c *config[K, V]) {
        if fn != nil {
            c.weightFn = fn
        }
    }
}

// WithEjectCallback registers a function invoked whenever an entry is
// evicted for capacity. Must not block; heavy I/O (e.g. writing to cold storage)
// should be handed off to another goroutine.
func WithEjectCallback[K comparable, V any](cb EjectCallback[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.ejectCb = cb }
}

// WithMetrics enables Prometheus export of the cache's counters under reg.
// Passing nil (the default) disables only the export; Stats still counts.
func WithMetrics[K comparable, V any](reg *prometheus.Registry) Option[K, V] {
    return func(c *config[K, V]) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger. The cache never logs on its hot
// path; only slow or exceptional events are emitted.
func WithLogger[K comparable, V any](l *zap.Logger) Option[K, V] {
    return func(c *config[K, V]) {
        if l != nil {
            c.logger = l
        }
    }
}

// WithClock overrides the Clock collaborator; tests use this to inject
// NewMockClock() for deterministic timer-driven assertions.
func WithClock[K comparable, V any](clk Clock) Option[K, V] {
    return func(c *config[K, V]) {
        if clk != nil {
            c.clock = clk
        }
    }
}

// WithListenerErrorHandler installs a sink for errors returned by listener
// callbacks, which otherwise are only logged.
func WithListenerErrorHandler[K comparable, V any](h func(error)) Option[K, V] {
    return func(c *config[K, V]) { c.listenerErrorHandler = h }
}

/*
   ---------------- Apply & validate ----------------
*/

// applyOptions copies user-supplied options into cfg and validates
// invariants, returning a descriptive error on the first violation.
func applyOptions[K comparable, V any](cfg *config[K, V], opts []Option[K, V]) error {
    for _, opt := range opts {
        opt(cfg)
    }

    if cfg.maximumSize < 0 {
        return NewErrInvalidConfig("MaximumSize", "must be >= 0")
    }
    if cfg.maximumWeight < 0 {
        return NewErrInvalidConfig("MaximumWeight", "must be >= 0")
    }
    if cfg.segments <= 0 {
        cfg.segments = runtime.GOMAXPROCS(0)
    }
    if cfg.expireAfterWrite < 0 {
        return NewErrInvalidConfig("ExpireAfterWrite", "must be >= 0")
    }
    if cfg.expireAfterAccess < 0 {
        return NewErrInvalidConfig("ExpireAfterAccess", "must be >= 0")
    }
    if cfg.loader != nil && cfg.asyncLoader != nil {
        return NewErrInvalidConfig("Loader", "cannot set both a synchronous and an async loader")
    }
    if cfg.refreshAhead && cfg.loader == nil && cfg.asyncLoader == nil {
        return NewErrInvalidConfig("RefreshAhead", "requires a loader")
    }
    if cfg.weightFn == nil {
        cfg.weightFn = func(V) int { return 1 }
    }
    if cfg.logger == nil {
        cfg.logger = zap.NewNop()
    }
    if cfg.clock == nil {
        cfg.clock = NewRealClock()
    }
    return nil
}
