package cache

// timing.go is the Timing Handler: the collaborator that turns a loaded
// value into a nextRefreshTime, decides whether a failed load should be
// suppressed behind the stale value or surfaced, and owns every per-entry
// timer (sharp expiry, refresh-ahead, probation). Entry Action calls into
// this on every LOAD_COMPLETE / EXPIRY step; nothing outside this file
// touches Entry.timerTask directly.
//
// © 2025 heapcache authors. MIT License.

import "go.uber.org/zap"

type timingHandler[K comparable, V any] struct {
    cfg   *config[K, V]
    clock Clock
    log   *zap.Logger

    // onExpire/onRefresh are wired by Cache after both are constructed,
    // avoiding an initialization-order cycle between Cache and
    // timingHandler.
    onExpire  func(key K)
    onRefresh func(key K)
}

func newTimingHandler[K comparable, V any](cfg *config[K, V]) *timingHandler[K, V] {
    return &timingHandler[K, V]{cfg: cfg, clock: cfg.clock, log: cfg.logger}
}

// calculateNextRefreshTime asks the configured ExpiryPolicy (or the static
// ExpireAfterWrite/ExpireAfterAccess fallback) for the entry's next
// refresh time after a fresh load or mutation.
func (th *timingHandler[K, V]) calculateNextRefreshTime(key K, value V, loadTime int64, priorNrt int64, isUpdate bool) int64 {
    if th.cfg.expiry != nil {
        if isUpdate {
            return th.cfg.expiry.ExpireAfterUpdate(key, value, loadTime, priorNrt)
        }
        return th.cfg.expiry.ExpireAfterCreate(key, value, loadTime)
    }
    nrt := ETERNAL
    if th.cfg.expireAfterWrite > 0 {
        nrt = loadTime + th.cfg.expireAfterWrite.Milliseconds()
    }
    if th.cfg.expireAfterAccess > 0 {
        if idle := loadTime + th.cfg.expireAfterAccess.Milliseconds(); idle < nrt {
            nrt = idle
        }
    }
    return nrt
}

// calculateNextRefreshTimeOnRead lets an ExpiryPolicy extend freshness on
// access (expire-after-access semantics), consulted by Get/Peek on a hit.
func (th *timingHandler[K, V]) calculateNextRefreshTimeOnRead(key K, value V, readTime int64, currentNrt int64) int64 {
    if th.cfg.expiry != nil {
        return th.cfg.expiry.ExpireAfterRead(key, value, readTime, currentNrt)
    }
    if th.cfg.expireAfterAccess <= 0 {
        return currentNrt
    }
    return readTime + th.cfg.expireAfterAccess.Milliseconds()
}

// suppressExceptionUntil asks the ResiliencePolicy how long a stale value
// should keep being served despite the loader failing. Returns 0 if the
// exception must be surfaced immediately (no suppression).
func (th *timingHandler[K, V]) suppressExceptionUntil(key K, cause error, loadTime int64, priorNrt int64) int64 {
    if th.cfg.resilience == nil {
        return 0
    }
    return th.cfg.resilience.SuppressExceptionUntil(key, cause, loadTime, priorNrt)
}

// cacheExceptionUntil asks the ResiliencePolicy how long the exception
// itself should be remembered before the next Load attempt, once
// suppression (if any) has run out.
func (th *timingHandler[K, V]) cacheExceptionUntil(key K, cause error, loadTime int64) int64 {
    if th.cfg.resilience == nil {
        return loadTime // no caching: next access retries immediately
    }
    return th.cfg.resilience.CacheExceptionUntil(key, cause, loadTime)
}

/*
   ---------------- Timer lifecycle ----------------
*/

// cancelExpiryTimer stops whatever timer e currently holds, bumping the
// generation counter so an in-flight callback that already fired becomes a
// silent no-op instead of acting on a stale schedule.
func (th *timingHandler[K, V]) cancelExpiryTimer(e *Entry[K, V]) {
    e.timerGeneration++
    if e.timerTask != nil {
        e.timerTask.Stop()
        e.timerTask = nil
    }
}

// stopStartTimer replaces e's timer according to its freshly computed
// nextRefreshTime: schedules a refresh-ahead callback at
// RefreshAheadFraction of the remaining lifetime when refresh is enabled,
// otherwise a sharp-expiry callback at the expiry time when SharpExpiry is
// on. At most one timer is armed. Called with e.mu held.
func (th *timingHandler[K, V]) stopStartTimer(e *Entry[K, V], key K) {
    th.cancelExpiryTimer(e)

    nrt := e.nextRefreshTime
    if nrt == ETERNAL || nrt <= dataValidLowerBound {
        return
    }

    now := th.clock.NowMillis()
    gen := e.timerGeneration

    if th.cfg.refreshAhead && nrt > now {
        lifetime := nrt - now
        refreshAt := now + int64(float64(lifetime)*th.cfg.refreshAheadFraction)
        if refreshAt < nrt {
            delay := refreshAt - now
            th.scheduleCallback(e, delay, func() {
                th.onTimerFire(e, key, gen, th.onRefresh)
            })
            return
        }
    }

    if th.cfg.sharpExpiry {
        th.scheduleFinalTimerForSharpExpiry(e, key)
        return
    }
}

// scheduleFinalTimerForSharpExpiry arms the callback that performs a sharp
// (exactly-on-time) expiry, firing at the computed expiry time.
func (th *timingHandler[K, V]) scheduleFinalTimerForSharpExpiry(e *Entry[K, V], key K) {
    nrt := e.nextRefreshTime
    if nrt == ETERNAL || nrt <= dataValidLowerBound {
        return
    }
    now := th.clock.NowMillis()
    delay := nrt - now
    gen := e.timerGeneration
    th.scheduleCallback(e, delay, func() {
        th.onTimerFire(e, key, gen, th.onExpire)
    })
}

// startRefreshProbationTimer arms the timer that physically expires an
// entry sitting in EXPIRED_REFRESHED (refreshed-ahead: the reloaded value
// is stored but not fresh, and a Get before the deadline revives it) once
// its original expiry time plus the safety gap has actually elapsed.
func (th *timingHandler[K, V]) startRefreshProbationTimer(e *Entry[K, V], key K, originalNrt int64) {
    now := th.clock.NowMillis()
    delay := originalNrt - now + th.cfg.safetyGapMillis
    gen := e.timerGeneration
    th.scheduleCallback(e, delay, func() {
        th.onTimerFire(e, key, gen, th.onExpire)
    })
}

func (th *timingHandler[K, V]) scheduleCallback(e *Entry[K, V], delayMillis int64, fn func()) {
    if delayMillis < 1 {
        delayMillis = 1
    }
    e.timerTask = th.clock.AfterFunc(delayMillis, fn)
}

// onTimerFire is the common trampoline every timer callback runs through:
// it drops the event if the entry's generation has since moved on (the
// timer was logically cancelled but the OS-level callback still fired),
// otherwise invokes the supplied cache-level handler on the calling
// goroutine (a fresh one spawned by the Clock implementation).
func (th *timingHandler[K, V]) onTimerFire(e *Entry[K, V], key K, gen uint64, handler func(K)) {
    e.mu.Lock()
    stale := gen != e.timerGeneration
    e.mu.Unlock()
    if stale || handler == nil {
        return
    }
    handler(key)
}
