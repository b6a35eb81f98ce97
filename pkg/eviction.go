package cache

// eviction.go wires Entry into internal/clockpro and defines the Eviction
// collaborator seam: something the cache consults on every insert/touch/
// remove to decide what stays resident.
//
// © 2025 heapcache authors. MIT License.

import "github.com/heapcache/heapcache/internal/clockpro"

// EvictionReason is re-exported so callers configuring an eject callback
// never need to import internal/clockpro directly.
type EvictionReason = clockpro.EvictionReason

const (
    EvictedCapacity EvictionReason = clockpro.ReasonCapacity
    EvictedExplicit EvictionReason = clockpro.ReasonExplicit
)

// Eviction is the pluggable admission/replacement collaborator. The default
// is clockProEviction, built on CLOCK-Pro; tests may substitute a no-op or a
// strict-LRU stand-in.
type Eviction[K comparable, V any] interface {
    Insert(e *Entry[K, V])
    Remove(key K)
    Touch(key K) bool
    Len() int
}

// clockProEviction adapts *Entry[K,V] to clockpro.Weighable and delegates to
// a clockpro.Clock.
type clockProEviction[K comparable, V any] struct {
    ring *clockpro.Clock[K, V]
}

func newClockProEviction[K comparable, V any](capacity int64, weightFn func(V) int, ejectCb func(K, V, EvictionReason)) *clockProEviction[K, V] {
    return &clockProEviction[K, V]{ring: clockpro.NewClock[K, V](capacity, weightFn, ejectCb)}
}

func (c *clockProEviction[K, V]) Insert(e *Entry[K, V]) { c.ring.Insert(e) }
func (c *clockProEviction[K, V]) Remove(key K)          { c.ring.Remove(key) }
func (c *clockProEviction[K, V]) Touch(key K) bool      { return c.ring.Touch(key) }
func (c *clockProEviction[K, V]) Len() int              { return c.ring.Len() }

// noopEviction never evicts; used when Config.MaximumSize/MaximumWeight is
// unset (unbounded cache).
type noopEviction[K comparable, V any] struct{}

func (noopEviction[K, V]) Insert(*Entry[K, V]) {}
func (noopEviction[K, V]) Remove(K)            {}
func (noopEviction[K, V]) Touch(K) bool        { return false }
func (noopEviction[K, V]) Len() int            { return 0 }
