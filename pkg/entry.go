package cache

// entry.go implements the Entry record: the per-key record holding the
// current value (or a cached loader exception), the encoded expiry/lifecycle
// field, and the processing-state machine that Entry Action drives.
//
// © 2025 heapcache authors. MIT License.

import (
    "math"
    "sync"
)

// processingState is the per-entry lifecycle state. All
// mutation of an entry happens through exactly one Entry Action at a time;
// other operations on the same key wait for processingState to return to
// stateDone.
type processingState uint8

const (
    stateDone processingState = iota
    stateRead
    stateMutate
    stateLoad
    stateLoadAsync
    stateLoadComplete
    stateCompute
    stateRefresh
    stateExpiry
    stateExpiryComplete
    stateWrite
    stateWriteComplete
    stateNotify
    stateGone
)

func (s processingState) String() string {
    switch s {
    case stateDone:
        return "DONE"
    case stateRead:
        return "READ"
    case stateMutate:
        return "MUTATE"
    case stateLoad:
        return "LOAD"
    case stateLoadAsync:
        return "LOAD_ASYNC"
    case stateLoadComplete:
        return "LOAD_COMPLETE"
    case stateCompute:
        return "COMPUTE"
    case stateRefresh:
        return "REFRESH"
    case stateExpiry:
        return "EXPIRY"
    case stateExpiryComplete:
        return "EXPIRY_COMPLETE"
    case stateWrite:
        return "WRITE"
    case stateWriteComplete:
        return "WRITE_COMPLETE"
    case stateNotify:
        return "NOTIFY"
    case stateGone:
        return "GONE"
    default:
        return "UNKNOWN"
    }
}

// nextRefreshTime sentinels. dataValidLowerBound is chosen large enough to
// hold every named sentinel below it.
const (
    nrtVirgin           int64 = 0
    nrtRemovePending    int64 = 1
    nrtAborted          int64 = 2
    nrtExpired          int64 = 3
    nrtExpiredRefreshed int64 = 4

    dataValidLowerBound int64 = 5

    // ETERNAL marks an entry that never expires.
    ETERNAL int64 = math.MaxInt64
    // NoCache requests immediate expiry / do-not-cache.
    NoCache int64 = 0
)

// exceptionInfo is the record kept when a loader (or expiry/resilience
// policy) fails.
type exceptionInfo[V any] struct {
    cause     error
    loadTime  int64 // ms, when the loader was invoked
    until     int64 // ms, expiry of the cached exception (nrt at time of capture)
    suppresses *exceptionInfo[V]
}

// box is a tagged variant of "Value(v) or Exception(info)", switched on a
// tag rather than subclass polymorphism.
type box[V any] struct {
    value     V
    exc       *exceptionInfo[V]
    hasExc    bool
    isVirgin  bool
}

func virginBox[V any]() box[V] {
    return box[V]{isVirgin: true}
}

// Entry is the per-key record. key/hashCode are immutable after
// construction; nextRefreshTime/processingState/timerTask/
// suppressedExceptionInfo are all guarded by mu.
type Entry[K comparable, V any] struct {
    key      K
    hashCode uint64

    mu   sync.Mutex
    cond *sync.Cond // parks synchronous waiters until processingState == stateDone

    processingState processingState
    nextRefreshTime int64
    refreshTime     int64 // ms, last modification time (0 if record-refresh-time disabled)

    // probationUntil is the original expiry time a refresh-ahead reload
    // deferred; only meaningful while nextRefreshTime == nrtExpiredRefreshed.
    probationUntil int64

    val box[V]

    hitCounter uint64 // dirty; only ever touched under mu

    timerTask       *timerHandle
    timerGeneration uint64

    suppressedExceptionInfo *exceptionInfo[V]

    // evictState is CLOCK-Pro bookkeeping (hot/cold/test + reference bit),
    // distinct from processingState; owned by internal/clockpro under the
    // cache's evictionMu.
    evictState uint8
    weight     int

    gone bool
}

func newEntry[K comparable, V any](key K, hash uint64) *Entry[K, V] {
    e := &Entry[K, V]{
        key:      key,
        hashCode: hash,
        val:      virginBox[V](),
    }
    e.cond = sync.NewCond(&e.mu)
    return e
}

// CacheKey satisfies internal/hashtable.Keyed.
func (e *Entry[K, V]) CacheKey() K { return e.key }

// hasFreshData reports whether the entry's current value can be served
// without a reload.
func (e *Entry[K, V]) hasFreshData(nowMillis int64) bool {
    nrt := e.nextRefreshTime
    switch {
    case nrt == ETERNAL:
        return true
    case nrt > dataValidLowerBound && nrt > nowMillis:
        return true
    case nrt < 0 && -nrt > nowMillis:
        return true
    default:
        return false
    }
}

// isVirgin reports whether data has ever been loaded into this entry.
func (e *Entry[K, V]) isVirgin() bool {
    return e.nextRefreshTime == nrtVirgin && e.val.isVirgin
}

// inProbation reports whether the entry is in the EXPIRED_REFRESHED state:
// refreshed ahead of expiry, reloaded value stored but not fresh, waiting
// for either a revival read or the probation deadline.
func (e *Entry[K, V]) inProbation() bool {
    return e.nextRefreshTime == nrtExpiredRefreshed
}

// Weight/StateSlot/Key/Value satisfy internal/clockpro.Weighable.
func (e *Entry[K, V]) Weight() int      { return e.weight }
func (e *Entry[K, V]) StateSlot() *uint8 { return &e.evictState }
func (e *Entry[K, V]) Key() K            { return e.key }
func (e *Entry[K, V]) Value() V          { return e.val.value }
