package cache

// entryview.go defines the read-only and mutable snapshots of an entry
// handed to callers: CacheEntry backs GetEntry/PeekEntry/iteration,
// MutableEntryView backs Invoke's examine/mutate callback pair.
//
// © 2025 heapcache authors. MIT License.

// CacheEntry is an immutable point-in-time view of one mapping, returned by
// GetEntry, PeekEntry, and Iterator.Value.
type CacheEntry[K comparable, V any] struct {
    key             K
    value           V
    exists          bool
    err             error
    nextRefreshTime int64
    refreshTime     int64
}

// Key returns the entry's key.
func (c CacheEntry[K, V]) Key() K { return c.key }

// Value returns the entry's value; zero value if Exists() is false or Err()
// is non-nil.
func (c CacheEntry[K, V]) Value() V { return c.value }

// Exists reports whether a mapping is present for Key().
func (c CacheEntry[K, V]) Exists() bool { return c.exists }

// Err returns the cached loader exception, if the entry's last load failed
// and the failure is still within its ResiliencePolicy window.
func (c CacheEntry[K, V]) Err() error { return c.err }

// ExpiryTime returns the entry's computed expiry time in epoch
// milliseconds, or ETERNAL if it never expires. Only views produced by
// Iterator carry it; views from GetEntry and PeekEntry return 0.
func (c CacheEntry[K, V]) ExpiryTime() int64 { return c.nextRefreshTime }

// RefreshTime returns the epoch-millisecond time of the entry's last
// load/mutation, or 0 if refresh-time recording is disabled. Only views
// produced by Iterator carry it; views from GetEntry and PeekEntry return 0.
func (c CacheEntry[K, V]) RefreshTime() int64 { return c.refreshTime }

// MutableEntryView is passed to the callback given to Invoke. Mutations
// staged through SetValue/Remove only take effect if the callback returns
// without error; Entry Action commits them atomically with the rest of the
// operation's lifecycle.
type MutableEntryView[K comparable, V any] struct {
    key    K
    exists bool
    value  V
    err    error

    newValue   V
    hasNew     bool
    doRemove   bool
    explicitNX int64 // explicit expiry override set via SetExpiry, 0 = unset
}

// Key returns the key Invoke was called with.
func (m *MutableEntryView[K, V]) Key() K { return m.key }

// Exists reports whether a mapping was present when the callback started.
func (m *MutableEntryView[K, V]) Exists() bool { return m.exists }

// Value returns the current value, or the zero value if Exists() is false.
func (m *MutableEntryView[K, V]) Value() V { return m.value }

// Err returns the cached loader exception observed for this key, if any.
func (m *MutableEntryView[K, V]) Err() error { return m.err }

// SetValue stages a new value to commit when the callback returns.
func (m *MutableEntryView[K, V]) SetValue(v V) {
    m.newValue = v
    m.hasNew = true
    m.doRemove = false
}

// Remove stages removal of the key to commit when the callback returns.
func (m *MutableEntryView[K, V]) Remove() {
    m.doRemove = true
    m.hasNew = false
}

// SetExpiry overrides the entry's computed next-refresh-time for this
// commit only; pass ETERNAL for the named sentinel. The override applies
// only together with SetValue, and a value of 0 (NoCache) reads as "unset"
// and is ignored.
func (m *MutableEntryView[K, V]) SetExpiry(millisEpoch int64) {
    m.explicitNX = millisEpoch
}

// InvokeFunc is the callback Invoke drives against a MutableEntryView.
type InvokeFunc[K comparable, V any] func(e *MutableEntryView[K, V]) error
