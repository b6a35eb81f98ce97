package cache

// iterator.go implements a segment-snapshotting iterator over a live Cache.
// Each segment is copied under its own lock one at a time, so iteration
// never holds the whole table's structure lock, but it also means the
// result is a fuzzy snapshot: a concurrent Clear is detected via an epoch
// counter so the iterator stops cleanly instead of yielding entries from
// two different cache generations.
//
// © 2025 heapcache authors. MIT License.

// Iterator walks every fresh mapping resident in a Cache at call time (plus
// or minus concurrent mutations, per the fuzzy-snapshot guarantee above).
type Iterator[K comparable, V any] struct {
    cache      *Cache[K, V]
    epoch      int64
    segIdx     int
    buf        []*Entry[K, V]
    bufIdx     int
    cur        CacheEntry[K, V]
    done       bool
}

func newIterator[K comparable, V any](c *Cache[K, V]) *Iterator[K, V] {
    return &Iterator[K, V]{cache: c, epoch: c.clearEpoch.Load()}
}

// Next advances the iterator and reports whether a value is available via
// Value. Returns false once every segment has been consumed or a
// concurrent Clear invalidated the snapshot.
func (it *Iterator[K, V]) Next() bool {
    if it.done {
        return false
    }
    now := it.cache.clock.NowMillis()
    for {
        if it.epoch != it.cache.clearEpoch.Load() {
            it.done = true
            return false
        }
        for it.bufIdx < len(it.buf) {
            ent := it.buf[it.bufIdx]
            it.bufIdx++
            ent.mu.Lock()
            fresh := !ent.gone && ent.hasFreshData(now)
            var val V
            var err error
            if fresh {
                val = ent.val.value
                if ent.val.hasExc {
                    err = ent.val.exc.cause
                }
            }
            rt := ent.refreshTime
            nrt := ent.nextRefreshTime
            ent.mu.Unlock()
            if !fresh {
                continue
            }
            it.cur = CacheEntry[K, V]{key: ent.key, value: val, exists: true, err: err, nextRefreshTime: nrt, refreshTime: rt}
            return true
        }
        if it.segIdx >= it.cache.table.Segments() {
            it.done = true
            return false
        }
        it.buf = it.cache.table.SnapshotSegment(it.segIdx)
        it.bufIdx = 0
        it.segIdx++
    }
}

// Value returns the entry the most recent Next call advanced to.
func (it *Iterator[K, V]) Value() CacheEntry[K, V] { return it.cur }
