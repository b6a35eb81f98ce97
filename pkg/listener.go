package cache

// listener.go defines the cache-lifecycle listener interfaces
// (Created/Updated/Removed/Expired), both synchronous (run inline
// on the completing action, able to delay it) and asynchronous (fire after
// commit, on their own goroutine, never able to block a caller).
//
// © 2025 heapcache authors. MIT License.

import "go.uber.org/zap"

// CreatedListener fires when a key gets its first value.
type CreatedListener[K comparable, V any] interface {
    OnCreated(key K, value V) error
}

// UpdatedListener fires when an existing key's value changes.
type UpdatedListener[K comparable, V any] interface {
    OnUpdated(key K, oldValue, newValue V) error
}

// RemovedListener fires when a key is removed, whether by user request or by
// eviction.
type RemovedListener[K comparable, V any] interface {
    OnRemoved(key K, value V) error
}

// ExpiredListener fires when an entry's logical expiry is observed, distinct
// from explicit removal.
type ExpiredListener[K comparable, V any] interface {
    OnExpired(key K, value V) error
}

// listenerSet bundles every listener slot a Cache may register. Any slot may
// be nil. Synchronous listeners run inline on the completing Entry Action's
// notify step, and their error, if any, is only logged — it never
// reverts the mutation. Async listeners are dispatched on a separate
// goroutine per event so slow listener code cannot add latency to cache
// operations.
type listenerSet[K comparable, V any] struct {
    created []CreatedListener[K, V]
    updated []UpdatedListener[K, V]
    removed []RemovedListener[K, V]
    expired []ExpiredListener[K, V]

    async bool
}

// WithCreatedListener registers a listener invoked after a key's first
// value is committed.
func WithCreatedListener[K comparable, V any](l CreatedListener[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.listeners.created = append(c.listeners.created, l) }
}

// WithUpdatedListener registers a listener invoked after an existing key's
// value changes.
func WithUpdatedListener[K comparable, V any](l UpdatedListener[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.listeners.updated = append(c.listeners.updated, l) }
}

// WithRemovedListener registers a listener invoked after a key leaves the
// cache, by user request or eviction.
func WithRemovedListener[K comparable, V any](l RemovedListener[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.listeners.removed = append(c.listeners.removed, l) }
}

// WithExpiredListener registers a listener invoked when an entry's logical
// expiry is observed.
func WithExpiredListener[K comparable, V any](l ExpiredListener[K, V]) Option[K, V] {
    return func(c *config[K, V]) { c.listeners.expired = append(c.listeners.expired, l) }
}

// WithAsyncListeners switches every registered listener to run on its own
// goroutine after commit, rather than inline on the completing action.
func WithAsyncListeners[K comparable, V any](async bool) Option[K, V] {
    return func(c *config[K, V]) { c.listeners.async = async }
}

// dispatch runs every applicable listener for the given notification,
// synchronously or asynchronously per ls.async, logging (and forwarding to
// listenerErrorHandler, if set) any error a listener returns.
func (ls *listenerSet[K, V]) dispatch(logger *zap.Logger, onErr func(error), fn func()) {
    if ls.async {
        go fn()
        return
    }
    fn()
}

func (ls *listenerSet[K, V]) notifyCreated(logger *zap.Logger, onErr func(error), key K, value V) {
    if len(ls.created) == 0 {
        return
    }
    ls.dispatch(logger, onErr, func() {
        for _, l := range ls.created {
            if err := l.OnCreated(key, value); err != nil {
                reportListenerErr(logger, onErr, key, err)
            }
        }
    })
}

func (ls *listenerSet[K, V]) notifyUpdated(logger *zap.Logger, onErr func(error), key K, oldV, newV V) {
    if len(ls.updated) == 0 {
        return
    }
    ls.dispatch(logger, onErr, func() {
        for _, l := range ls.updated {
            if err := l.OnUpdated(key, oldV, newV); err != nil {
                reportListenerErr(logger, onErr, key, err)
            }
        }
    })
}

func (ls *listenerSet[K, V]) notifyRemoved(logger *zap.Logger, onErr func(error), key K, value V) {
    if len(ls.removed) == 0 {
        return
    }
    ls.dispatch(logger, onErr, func() {
        for _, l := range ls.removed {
            if err := l.OnRemoved(key, value); err != nil {
                reportListenerErr(logger, onErr, key, err)
            }
        }
    })
}

func (ls *listenerSet[K, V]) notifyExpired(logger *zap.Logger, onErr func(error), key K, value V) {
    if len(ls.expired) == 0 {
        return
    }
    ls.dispatch(logger, onErr, func() {
        for _, l := range ls.expired {
            if err := l.OnExpired(key, value); err != nil {
                reportListenerErr(logger, onErr, key, err)
            }
        }
    })
}

func reportListenerErr[K comparable](logger *zap.Logger, onErr func(error), key K, err error) {
    wrapped := NewErrListenerFailed(key, err)
    logger.Warn("listener callback failed", zap.Any("key", key), zap.Error(err))
    if onErr != nil {
        onErr(wrapped)
    }
}
