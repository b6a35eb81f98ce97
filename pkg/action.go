package cache

// action.go implements the per-entry state-machine driver that backs the
// per-key public operations. Every per-key Cache operation except ExpireAt
// funnels through runSemanticAction (or,
// for Invoke, runInvokeAction) so locking, loader/writer invocation, timing,
// eviction bookkeeping, and listener notification happen exactly once, in
// exactly one place, no matter which of the fourteen named operations is
// running.
//
// The lifecycle per key is: acquire the entry (creating a virgin one if
// absent), decide what to do via the operation's Semantic, optionally call
// out to a Loader or Writer with the entry unlocked (so unrelated readers of
// *other* keys are never blocked, and same-key readers park on the entry's
// condition variable instead of busy-spinning), then relock to commit and
// wake any waiters.
//
// © 2025 heapcache authors. MIT License.

import (
    "context"
    "errors"
)

var errNoLoaderConfigured = errors.New("heapcache: operation requires a Loader but none is configured")

// acquireEntry returns the entry for key, locked (e.mu held) and guaranteed
// to be in stateDone and not gone. Creates a virgin entry if key is absent.
// Loops past entries another goroutine just removed (GONE) by re-looking-up
// — the classic park-until-DONE-then-re-lookup-on-GONE protocol.
func (c *Cache[K, V]) acquireEntry(key K, hash uint64) *Entry[K, V] {
    for {
        ent, ok := c.table.Lookup(key, hash)
        if !ok {
            candidate := newEntry[K, V](key, hash)
            candidate.mu.Lock()
            winner, inserted := c.table.InsertWithinLock(key, hash, candidate)
            if inserted {
                return candidate
            }
            candidate.mu.Unlock()
            ent = winner
        }

        ent.mu.Lock()
        for ent.processingState != stateDone && !ent.gone {
            ent.cond.Wait()
        }
        if ent.gone {
            ent.mu.Unlock()
            c.metrics.incGoneSpin()
            continue
        }
        return ent
    }
}

// runLoaderWithRecover invokes ld through the per-cache loaderGroup
// (de-duplicating concurrent misses on the same key), converting a panic
// inside the loader into a LoaderPanicked error rather than crashing the
// process.
func (c *Cache[K, V]) runLoaderWithRecover(ctx context.Context, hash uint64, key K, ld Loader[K, V]) (val V, err error) {
    defer func() {
        if r := recover(); r != nil {
            err = NewErrLoaderPanicked(key, r)
        }
    }()
    val, err, _ = c.loaders.load(ctx, hash, key, ld)
    return val, err
}

// runSemanticAction executes sem against key, loading via loaderOverride (or
// the cache's configured Loader if nil) when the semantic calls for it.
func (c *Cache[K, V]) runSemanticAction(ctx context.Context, key K, sem Semantic[K, V], loaderOverride Loader[K, V]) (V, bool, error) {
    hash := c.table.Hash(key)
    ent := c.acquireEntry(key, hash)

    now := c.clock.NowMillis()
    present := ent.hasFreshData(now)
    var curVal V
    var curErr error
    if present {
        curVal = ent.val.value
        if ent.val.hasExc {
            curErr = ent.val.exc.cause
        }
    }

    outcome := sem.examine(present, curVal, curErr)

    switch outcome {
    case outcomeReturnExisting:
        return c.finishReturnExisting(ent, key, curVal, curErr, present)

    case outcomeAbort:
        // Distinct from outcomeReturnExisting: the caller's condition wasn't
        // met (e.g. a compare-and-swap miss), not merely "no data yet", so
        // the second return value always means "nothing happened" rather
        // than forwarding whatever presence state examine saw.
        ent.mu.Unlock()
        var zero V
        return zero, false, nil

    case outcomeMutate:
        return c.finishMutate(ctx, ent, key, sem, present, curVal)

    case outcomeLoad:
        c.metrics.incMiss()
        if sem.suppressLoadOnMiss {
            ent.mu.Unlock()
            var zero V
            return zero, false, nil
        }
        return c.finishLoad(ctx, ent, key, hash, present, curVal, loaderOverride)
    }

    ent.mu.Unlock()
    return curVal, present, nil
}

// finishReturnExisting serves data already resident on the entry, without
// any state transition: a pure read.
func (c *Cache[K, V]) finishReturnExisting(ent *Entry[K, V], key K, curVal V, curErr error, present bool) (V, bool, error) {
    defer ent.mu.Unlock()

    if !present {
        c.metrics.incMiss()
        var zero V
        return zero, false, nil
    }

    ent.hitCounter++
    c.evictionMu.Lock()
    c.eviction.Touch(key)
    c.evictionMu.Unlock()
    c.metrics.incHit()

    now := c.clock.NowMillis()
    newNrt := c.timing.calculateNextRefreshTimeOnRead(key, curVal, now, ent.nextRefreshTime)
    if newNrt != ent.nextRefreshTime {
        ent.nextRefreshTime = newNrt
        c.timing.stopStartTimer(ent, key)
    }
    return curVal, true, curErr
}

// finishMutate runs a Semantic.mutate (or, for Invoke, the caller's
// InvokeFunc via runInvokeAction instead) with the entry's lock released
// across any Writer call, then relocks to commit.
func (c *Cache[K, V]) finishMutate(ctx context.Context, ent *Entry[K, V], key K, sem Semantic[K, V], present bool, curVal V) (V, bool, error) {
    ent.processingState = stateMutate
    ent.mu.Unlock()

    var res semanticResult[V]
    if sem.mutate != nil {
        res = sem.mutate(present, curVal, false, curVal, false)
    } else {
        res = semanticResult[V]{newValue: curVal}
    }

    if res.err != nil {
        ent.mu.Lock()
        ent.processingState = stateDone
        ent.cond.Broadcast()
        ent.mu.Unlock()
        var zero V
        return zero, present, res.err
    }

    if c.cfg.writer != nil {
        var werr error
        if res.remove {
            werr = c.cfg.writer.Delete(ctx, key)
        } else {
            werr = c.cfg.writer.Write(ctx, key, res.newValue)
        }
        if werr != nil {
            ent.mu.Lock()
            ent.processingState = stateDone
            ent.cond.Broadcast()
            ent.mu.Unlock()
            var zero V
            return zero, present, NewErrWriterFailed(key, werr)
        }
    }

    ent.mu.Lock()
    if res.remove {
        c.commitRemove(ent, key, present, curVal)
        ent.mu.Unlock()
        return curVal, present, nil
    }
    newVal := res.newValue
    c.commitValue(ent, key, newVal, present, curVal)
    ent.mu.Unlock()
    return curVal, present, nil
}

// finishLoad runs the configured (or semantic-overridden) Loader with the
// entry unlocked, then relocks to commit the result. Called with ent.mu
// held; always returns with it released.
func (c *Cache[K, V]) finishLoad(ctx context.Context, ent *Entry[K, V], key K, hash uint64, present bool, curVal V, loaderOverride Loader[K, V]) (V, bool, error) {
    // A previous refresh-ahead reload may have parked the entry in
    // probation: if its deadline hasn't passed yet, revive the retained
    // value instead of calling the loader again.
    if ent.inProbation() {
        now := c.clock.NowMillis()
        if now < ent.probationUntil {
            ent.nextRefreshTime = ent.probationUntil
            c.timing.stopStartTimer(ent, key)
            c.metrics.incRefreshedHit()
            ent.processingState = stateDone
            ent.cond.Broadcast()
            revived := ent.val.value
            ent.mu.Unlock()
            return revived, true, nil
        }
    }

    ent.processingState = stateLoad
    ent.mu.Unlock()

    ld := loaderOverride
    if ld == nil {
        ld = c.cfg.loader
    }
    if ld == nil && c.cfg.asyncLoader != nil {
        al := c.cfg.asyncLoader
        ld = LoaderFunc[K, V](func(ctx context.Context, key K) (V, error) {
            type result struct {
                v   V
                err error
            }
            done := make(chan result, 1)
            al.LoadAsync(ctx, key, func(v V, err error) { done <- result{v, err} })
            r := <-done
            return r.v, r.err
        })
    }
    if ld == nil {
        ent.mu.Lock()
        ent.processingState = stateDone
        ent.cond.Broadcast()
        ent.mu.Unlock()
        var zero V
        return zero, false, ErrNoSuchElement
    }

    loadTime := c.clock.NowMillis()
    val, lerr := c.runLoaderWithRecover(ctx, hash, key, ld)

    ent.mu.Lock()
    if lerr != nil {
        suppressed := c.commitLoadError(ent, key, lerr, loadTime)
        if suppressed {
            retained := ent.val.value
            ent.mu.Unlock()
            return retained, true, nil
        }
        ent.mu.Unlock()
        var zero V
        return zero, present, NewErrLoaderFailed(key, lerr)
    }
    c.metrics.incLoad()
    c.commitValue(ent, key, val, present, curVal)
    ent.mu.Unlock()
    return val, true, nil
}

// commitValue writes a freshly obtained value into ent, computes its next
// refresh time, (re)arms its timers, updates eviction bookkeeping and
// metrics, fires Created/Updated listeners, and wakes any waiters. Called
// with ent.mu held; returns with it still held.
func (c *Cache[K, V]) commitValue(ent *Entry[K, V], key K, newValue V, wasPresent bool, oldValue V) {
    now := c.clock.NowMillis()
    priorNrt := ent.nextRefreshTime

    ent.val = box[V]{value: newValue}
    ent.nextRefreshTime = c.timing.calculateNextRefreshTime(key, newValue, now, priorNrt, wasPresent)
    if c.cfg.recordRefreshedTime {
        ent.refreshTime = now
    }
    ent.weight = c.cfg.weightFn(newValue)

    c.timing.stopStartTimer(ent, key)

    if wasPresent {
        c.metrics.incPutHit()
        c.evictionMu.Lock()
        c.eviction.Touch(key)
        c.evictionMu.Unlock()
        c.listeners.notifyUpdated(c.log, c.cfg.listenerErrorHandler, key, oldValue, newValue)
    } else {
        c.metrics.incPutNew()
        c.evictionMu.Lock()
        c.eviction.Insert(ent)
        c.evictionMu.Unlock()
        c.listeners.notifyCreated(c.log, c.cfg.listenerErrorHandler, key, newValue)
    }

    ent.processingState = stateDone
    ent.cond.Broadcast()
}

// commitRemove detaches ent from the table and eviction ring, marks it GONE
// so parked waiters re-look-up instead of observing a zombie entry, and
// fires the Removed listener. Called with ent.mu held; returns with it
// still held (caller unlocks).
func (c *Cache[K, V]) commitRemove(ent *Entry[K, V], key K, wasPresent bool, oldValue V) {
    c.timing.cancelExpiryTimer(ent)
    hash := ent.hashCode
    c.table.Remove(key, hash)
    c.evictionMu.Lock()
    c.eviction.Remove(key)
    c.evictionMu.Unlock()

    ent.gone = true
    ent.processingState = stateGone
    ent.cond.Broadcast()

    if wasPresent {
        c.listeners.notifyRemoved(c.log, c.cfg.listenerErrorHandler, key, oldValue)
    }
}

// commitLoadError applies the ResiliencePolicy to a failed Load: either the
// stale value keeps being served for a while (suppression) or the
// exception itself is cached and surfaced to callers until its own
// deadline. Called with ent.mu held; returns with it still held. Reports
// whether the exception was suppressed, so the caller knows to serve the
// retained value instead of propagating cause.
func (c *Cache[K, V]) commitLoadError(ent *Entry[K, V], key K, cause error, loadTime int64) bool {
    c.metrics.incLoadException()

    suppressUntil := c.timing.suppressExceptionUntil(key, cause, loadTime, ent.nextRefreshTime)
    if suppressUntil > loadTime && !ent.val.isVirgin {
        c.metrics.incSuppressedException()
        ent.suppressedExceptionInfo = &exceptionInfo[V]{cause: cause, loadTime: loadTime, until: suppressUntil}
        ent.nextRefreshTime = suppressUntil
        c.timing.stopStartTimer(ent, key)
        ent.processingState = stateDone
        ent.cond.Broadcast()
        return true
    }

    until := c.timing.cacheExceptionUntil(key, cause, loadTime)
    ent.val = box[V]{hasExc: true, exc: &exceptionInfo[V]{cause: cause, loadTime: loadTime, until: until}}
    if until <= loadTime {
        ent.nextRefreshTime = nrtExpired
    } else {
        ent.nextRefreshTime = until
    }
    c.timing.stopStartTimer(ent, key)
    ent.processingState = stateDone
    ent.cond.Broadcast()
    return false
}

// runInvokeAction drives Invoke's MutableEntryView-based callback, which
// can read, stage a new value, stage a removal, or override the expiry time
// on commit.
func (c *Cache[K, V]) runInvokeAction(ctx context.Context, key K, fn InvokeFunc[K, V]) (V, bool, error) {
    hash := c.table.Hash(key)
    ent := c.acquireEntry(key, hash)

    now := c.clock.NowMillis()
    present := ent.hasFreshData(now)
    var curVal V
    var curErr error
    if present {
        curVal = ent.val.value
        if ent.val.hasExc {
            curErr = ent.val.exc.cause
        }
    }

    ent.processingState = stateMutate
    ent.mu.Unlock()

    view := &MutableEntryView[K, V]{key: key, exists: present, value: curVal, err: curErr}
    cbErr := fn(view)

    if cbErr != nil {
        ent.mu.Lock()
        ent.processingState = stateDone
        ent.cond.Broadcast()
        ent.mu.Unlock()
        var zero V
        return zero, present, cbErr
    }

    if view.doRemove {
        if c.cfg.writer != nil {
            if werr := c.cfg.writer.Delete(ctx, key); werr != nil {
                ent.mu.Lock()
                ent.processingState = stateDone
                ent.cond.Broadcast()
                ent.mu.Unlock()
                var zero V
                return zero, present, NewErrWriterFailed(key, werr)
            }
        }
        ent.mu.Lock()
        c.commitRemove(ent, key, present, curVal)
        ent.mu.Unlock()
        var zero V
        return zero, present, nil
    }

    if view.hasNew {
        if c.cfg.writer != nil {
            if werr := c.cfg.writer.Write(ctx, key, view.newValue); werr != nil {
                ent.mu.Lock()
                ent.processingState = stateDone
                ent.cond.Broadcast()
                ent.mu.Unlock()
                var zero V
                return zero, present, NewErrWriterFailed(key, werr)
            }
        }
        ent.mu.Lock()
        c.commitValue(ent, key, view.newValue, present, curVal)
        if view.explicitNX != 0 {
            ent.nextRefreshTime = view.explicitNX
            c.timing.stopStartTimer(ent, key)
        }
        ent.mu.Unlock()
        return view.newValue, present, nil
    }

    // No mutation staged: just resume normal processing.
    ent.mu.Lock()
    ent.processingState = stateDone
    ent.cond.Broadcast()
    ent.mu.Unlock()
    return curVal, present, nil
}

/*
   ---------------- Timer-triggered internal actions ----------------
*/

// triggerExpire runs when a sharp-expiry (or probation) timer fires: it
// re-validates the entry is actually stale now (the timer firing is just a
// hint — a concurrent write may have refreshed it already) and, if so,
// removes it and fires the Expired listener.
func (c *Cache[K, V]) triggerExpire(key K) {
    c.metrics.incTimerEvent()
    hash := c.table.Hash(key)
    ent, ok := c.table.Lookup(key, hash)
    if !ok {
        return
    }
    ent.mu.Lock()
    for ent.processingState != stateDone && !ent.gone {
        ent.cond.Wait()
    }
    if ent.gone {
        ent.mu.Unlock()
        return
    }
    now := c.clock.NowMillis()
    if ent.hasFreshData(now) {
        ent.mu.Unlock()
        return
    }
    if c.cfg.keepDataAfterExpired {
        c.metrics.incExpiredKept()
        ent.nextRefreshTime = nrtExpired
        ent.processingState = stateDone
        ent.cond.Broadcast()
        staleVal := ent.val.value
        ent.mu.Unlock()
        c.listeners.notifyExpired(c.log, c.cfg.listenerErrorHandler, key, staleVal)
        return
    }
    staleVal := ent.val.value
    hadData := !ent.val.isVirgin
    c.commitRemove(ent, key, hadData, staleVal)
    ent.mu.Unlock()
    if hadData {
        c.listeners.notifyExpired(c.log, c.cfg.listenerErrorHandler, key, staleVal)
    }
}

// triggerRefresh runs when a refresh-ahead timer fires: it reloads the
// value on the timer's goroutine, then commits the new value and arms a
// probation timer for the original expiry so a reader who never revisits
// the key still sees it physically expire on schedule. The prior value is
// not served while the reload runs: the entry sits in stateRefresh, so
// same-key readers park until the reload commits.
func (c *Cache[K, V]) triggerRefresh(key K) {
    hash := c.table.Hash(key)
    ent, ok := c.table.Lookup(key, hash)
    if !ok {
        return
    }
    ent.mu.Lock()
    for ent.processingState != stateDone && !ent.gone {
        ent.cond.Wait()
    }
    if ent.gone || c.cfg.loader == nil {
        ent.mu.Unlock()
        return
    }
    originalNrt := ent.nextRefreshTime
    oldVal := ent.val.value
    ent.processingState = stateRefresh
    ent.mu.Unlock()

    c.metrics.incRefresh()
    loadTime := c.clock.NowMillis()
    ctx := context.Background()
    val, lerr := c.runLoaderWithRecover(ctx, hash, key, c.cfg.loader)

    ent.mu.Lock()
    if lerr != nil {
        c.commitLoadError(ent, key, lerr, loadTime)
        ent.mu.Unlock()
        return
    }
    c.commitValue(ent, key, val, true, oldVal)
    c.timing.cancelExpiryTimer(ent)
    ent.nextRefreshTime = nrtExpiredRefreshed
    ent.probationUntil = originalNrt
    c.timing.startRefreshProbationTimer(ent, key, originalNrt)
    ent.mu.Unlock()
}
