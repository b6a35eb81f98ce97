package cache

// semantics.go gives each of the cache's operations to Entry Action as a
// pair of pure callbacks — examine (decide whether to act, given the
// current value) and mutate (compute the new value) — rather than as one
// big switch inside the state machine itself. Entry Action stays identical
// for every operation; only the Semantic passed to it changes.
//
// © 2025 heapcache authors. MIT License.

import "context"

// semanticOutcome tells entryAction what examine decided, before any
// loader/writer call has happened.
type semanticOutcome uint8

const (
    outcomeReturnExisting semanticOutcome = iota // serve current value/absence as-is
    outcomeLoad                                  // need a fresh Load to proceed
    outcomeMutate                                // apply mutate without loading
    outcomeAbort                                 // fail the operation, no state change
)

// semanticResult is produced by mutate (or directly by examine for
// outcomeMutate-free paths) and tells entryAction what to commit.
type semanticResult[V any] struct {
    newValue V
    remove   bool
    err      error
}

// Semantic bundles the two decision points every cache operation needs.
// present reports whether the entry currently holds fresh data (per
// hasFreshData); examine sees the value only when present is true.
type Semantic[K comparable, V any] struct {
    name string

    // examine runs first, under the entry lock, with no I/O performed yet.
    // It decides whether the operation can be satisfied from what's already
    // there, needs a Load, or should mutate without loading.
    examine func(present bool, value V, err error) semanticOutcome

    // mutate computes the value to commit from the pre-existing value. The
    // Entry Action driver always passes wasLoaded=false: loaded values are
    // committed directly by the load path and never reach mutate.
    mutate func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V]

    // suppressLoadOnMiss operations never trigger a Loader call on miss
    // (the Peek family, ContainsKey).
    suppressLoadOnMiss bool
}

/*
   ---------------- Built-in semantics ----------------
*/

// semanticGet: return fresh data if present, else Load and cache it.
func semanticGet[K comparable, V any]() Semantic[K, V] {
    return Semantic[K, V]{
        name: "get",
        examine: func(present bool, _ V, _ error) semanticOutcome {
            if present {
                return outcomeReturnExisting
            }
            return outcomeLoad
        },
    }
}

// semanticPeek: return fresh data if present, never loads.
func semanticPeek[K comparable, V any]() Semantic[K, V] {
    return Semantic[K, V]{
        name:               "peek",
        suppressLoadOnMiss: true,
        examine: func(present bool, _ V, _ error) semanticOutcome {
            return outcomeReturnExisting
        },
    }
}

// semanticPut: unconditionally mutate to the given input value.
func semanticPut[K comparable, V any](input V) Semantic[K, V] {
    return Semantic[K, V]{
        name: "put",
        examine: func(bool, V, error) semanticOutcome { return outcomeMutate },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{newValue: input}
        },
    }
}

// semanticRemove: unconditionally remove.
func semanticRemove[K comparable, V any]() Semantic[K, V] {
    return Semantic[K, V]{
        name:               "remove",
        suppressLoadOnMiss: true,
        examine: func(bool, V, error) semanticOutcome { return outcomeMutate },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{remove: true}
        },
    }
}

// semanticPutIfAbsent: mutate to input only if no fresh data present yet.
func semanticPutIfAbsent[K comparable, V any](input V) Semantic[K, V] {
    return Semantic[K, V]{
        name:               "putIfAbsent",
        suppressLoadOnMiss: true,
        examine: func(present bool, _ V, _ error) semanticOutcome {
            if present {
                return outcomeReturnExisting
            }
            return outcomeMutate
        },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{newValue: input}
        },
    }
}

// semanticReplace: mutate to input only if fresh data already present.
func semanticReplace[K comparable, V any](input V) Semantic[K, V] {
    return Semantic[K, V]{
        name:               "replace",
        suppressLoadOnMiss: true,
        examine: func(present bool, _ V, _ error) semanticOutcome {
            if present {
                return outcomeMutate
            }
            return outcomeReturnExisting
        },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{newValue: input}
        },
    }
}

// semanticReplaceIfEquals: mutate to newVal only if fresh data equals old,
// per an injected equality function (V may not be comparable). A present
// value that simply doesn't match old is a failed compare-and-swap, not a
// "return existing" read, so it aborts rather than reporting presence.
func semanticReplaceIfEquals[K comparable, V any](old, newVal V, eq func(a, b V) bool) Semantic[K, V] {
    return Semantic[K, V]{
        name:               "replaceIfEquals",
        suppressLoadOnMiss: true,
        examine: func(present bool, value V, _ error) semanticOutcome {
            if present && eq(value, old) {
                return outcomeMutate
            }
            return outcomeAbort
        },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{newValue: newVal}
        },
    }
}

// semanticContainsAndRemove: remove if present, reporting whether anything
// was there.
func semanticContainsAndRemove[K comparable, V any]() Semantic[K, V] {
    return Semantic[K, V]{
        name:               "containsAndRemove",
        suppressLoadOnMiss: true,
        examine: func(present bool, _ V, _ error) semanticOutcome {
            if present {
                return outcomeMutate
            }
            return outcomeReturnExisting
        },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{remove: true}
        },
    }
}

// semanticPeekAndPut: always mutate, caller wants the prior value back.
func semanticPeekAndPut[K comparable, V any](input V) Semantic[K, V] {
    return Semantic[K, V]{
        name:               "peekAndPut",
        suppressLoadOnMiss: true,
        examine: func(bool, V, error) semanticOutcome { return outcomeMutate },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{newValue: input}
        },
    }
}

// semanticPeekAndRemove: always remove, caller wants the prior value back.
func semanticPeekAndRemove[K comparable, V any]() Semantic[K, V] {
    return Semantic[K, V]{
        name:               "peekAndRemove",
        suppressLoadOnMiss: true,
        examine: func(bool, V, error) semanticOutcome { return outcomeMutate },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{remove: true}
        },
    }
}

// semanticPeekAndReplace: mutate only if fresh data present; caller wants
// the prior value back either way.
func semanticPeekAndReplace[K comparable, V any](input V) Semantic[K, V] {
    return Semantic[K, V]{
        name:               "peekAndReplace",
        suppressLoadOnMiss: true,
        examine: func(present bool, _ V, _ error) semanticOutcome {
            if present {
                return outcomeMutate
            }
            return outcomeReturnExisting
        },
        mutate: func(present bool, value V, wasLoaded bool, newInput V, hasInput bool) semanticResult[V] {
            return semanticResult[V]{newValue: input}
        },
    }
}

// semanticComputeIfAbsent: Load only if absent, via a user function rather
// than the cache's configured Loader; the computed value is committed like
// any other fresh load.
func semanticComputeIfAbsent[K comparable, V any](key K, compute func(ctx context.Context, key K) (V, error)) (Semantic[K, V], Loader[K, V]) {
    sem := Semantic[K, V]{
        name: "computeIfAbsent",
        examine: func(present bool, _ V, _ error) semanticOutcome {
            if present {
                return outcomeReturnExisting
            }
            return outcomeLoad
        },
    }
    return sem, LoaderFunc[K, V](compute)
}

// Invoke's MutableEntryView-staged mutation (SetValue/Remove/SetExpiry) is
// driven by runInvokeAction directly rather than through a Semantic: its
// callback runs once with full read/write access to a staged view, which
// doesn't fit the examine/mutate split every other operation uses.
