package hashtable

import (
    "fmt"
    "sync"
    "testing"
)

type stringEntry struct {
    key string
    val string
}

func (e *stringEntry) CacheKey() string { return e.key }

func newTestTable(segments int) *Table[string, *stringEntry] {
    return New[string, *stringEntry](segments)
}

func TestNew_RoundsSegmentsUpToPowerOfTwo(t *testing.T) {
    tbl := newTestTable(5)
    if got := tbl.Segments(); got != 8 {
        t.Errorf("Segments() = %d, want 8", got)
    }
}

func TestNew_MinimumOneSegment(t *testing.T) {
    tbl := newTestTable(0)
    if got := tbl.Segments(); got != 1 {
        t.Errorf("Segments() = %d, want 1", got)
    }
}

func TestInsertWithinLock_FirstWriterWins(t *testing.T) {
    tbl := newTestTable(4)
    a := &stringEntry{key: "k", val: "a"}
    b := &stringEntry{key: "k", val: "b"}
    hash := tbl.Hash("k")

    winner, inserted := tbl.InsertWithinLock("k", hash, a)
    if !inserted || winner != a {
        t.Fatalf("first insert: inserted=%v winner=%v, want true, a", inserted, winner)
    }

    winner, inserted = tbl.InsertWithinLock("k", hash, b)
    if inserted {
        t.Error("second insert for the same key reported inserted=true")
    }
    if winner != a {
        t.Errorf("winner = %v, want the first entry (a)", winner)
    }
}

func TestLookup_MissAndHit(t *testing.T) {
    tbl := newTestTable(4)
    hash := tbl.Hash("missing")
    if _, ok := tbl.Lookup("missing", hash); ok {
        t.Error("Lookup on empty table reported a hit")
    }

    e := &stringEntry{key: "present", val: "v"}
    hash = tbl.Hash("present")
    tbl.InsertWithinLock("present", hash, e)
    got, ok := tbl.Lookup("present", hash)
    if !ok || got != e {
        t.Errorf("Lookup(present) = %v, %v; want %v, true", got, ok, e)
    }
}

func TestRemove_PresentAndAbsent(t *testing.T) {
    tbl := newTestTable(4)
    e := &stringEntry{key: "k", val: "v"}
    hash := tbl.Hash("k")
    tbl.InsertWithinLock("k", hash, e)

    if !tbl.Remove("k", hash) {
        t.Error("Remove(k) = false, want true for a present key")
    }
    if tbl.Remove("k", hash) {
        t.Error("Remove(k) = true on second call, want false once already removed")
    }
    if _, ok := tbl.Lookup("k", hash); ok {
        t.Error("key still reachable via Lookup after Remove")
    }
}

func TestLen_TracksInsertsAndRemoves(t *testing.T) {
    tbl := newTestTable(4)
    for i := 0; i < 10; i++ {
        key := fmt.Sprintf("k%d", i)
        tbl.InsertWithinLock(key, tbl.Hash(key), &stringEntry{key: key})
    }
    if got := tbl.Len(); got != 10 {
        t.Fatalf("Len() = %d, want 10", got)
    }
    for i := 0; i < 4; i++ {
        key := fmt.Sprintf("k%d", i)
        tbl.Remove(key, tbl.Hash(key))
    }
    if got := tbl.Len(); got != 6 {
        t.Errorf("Len() = %d, want 6 after 4 removes", got)
    }
}

func TestGrow_RehashesEveryEntryReachably(t *testing.T) {
    tbl := newTestTable(1)
    const n = 5000 // well past the 64%-of-(segments*256) trigger for 1 segment
    for i := 0; i < n; i++ {
        key := fmt.Sprintf("key-%d", i)
        tbl.InsertWithinLock(key, tbl.Hash(key), &stringEntry{key: key, val: key})
    }

    if segs := tbl.Segments(); segs <= 1 {
        t.Fatalf("Segments() = %d after %d inserts, want > 1 (checkExpand never fired)", segs, n)
    }
    if got := tbl.Len(); got != n {
        t.Fatalf("Len() = %d, want %d", got, n)
    }
    for i := 0; i < n; i++ {
        key := fmt.Sprintf("key-%d", i)
        if _, ok := tbl.Lookup(key, tbl.Hash(key)); !ok {
            t.Fatalf("key %q unreachable after grow", key)
        }
    }
}

func TestClearVisit_VisitsEveryEntryAndEmptiesTable(t *testing.T) {
    tbl := newTestTable(4)
    want := map[string]bool{}
    for i := 0; i < 20; i++ {
        key := fmt.Sprintf("k%d", i)
        want[key] = true
        tbl.InsertWithinLock(key, tbl.Hash(key), &stringEntry{key: key})
    }

    visited := map[string]bool{}
    var mu sync.Mutex
    removed := tbl.ClearVisit(func(e *stringEntry) {
        mu.Lock()
        visited[e.key] = true
        mu.Unlock()
    })

    if removed != 20 {
        t.Errorf("ClearVisit returned %d, want 20", removed)
    }
    if len(visited) != len(want) {
        t.Errorf("visited %d entries, want %d", len(visited), len(want))
    }
    for k := range want {
        if !visited[k] {
            t.Errorf("ClearVisit never visited key %q", k)
        }
    }
    if got := tbl.Len(); got != 0 {
        t.Errorf("Len() = %d after ClearVisit, want 0", got)
    }
    if _, ok := tbl.Lookup("k0", tbl.Hash("k0")); ok {
        t.Error("key still reachable after ClearVisit")
    }
}

func TestRunTotalLocked_ExcludesConcurrentSegmentWrite(t *testing.T) {
    tbl := newTestTable(4)
    tbl.InsertWithinLock("a", tbl.Hash("a"), &stringEntry{key: "a"})

    started := make(chan struct{})
    release := make(chan struct{})
    done := make(chan struct{})

    go func() {
        tbl.RunTotalLocked(func() {
            close(started)
            <-release
        })
        close(done)
    }()

    <-started
    writeDone := make(chan struct{})
    go func() {
        tbl.InsertWithinLock("b", tbl.Hash("b"), &stringEntry{key: "b"})
        close(writeDone)
    }()

    select {
    case <-writeDone:
        t.Fatal("concurrent write completed while RunTotalLocked held the global lock")
    default:
    }

    close(release)
    <-done
    <-writeDone
}

func TestSnapshotSegment_OutOfRangeReturnsNil(t *testing.T) {
    tbl := newTestTable(2)
    if got := tbl.SnapshotSegment(tbl.Segments() + 10); got != nil {
        t.Errorf("SnapshotSegment(out of range) = %v, want nil", got)
    }
}

func TestSegmentLock_SameHashSharesTheSameMutex(t *testing.T) {
    tbl := newTestTable(4)
    hash := tbl.Hash("k")
    mu1 := tbl.SegmentLock(hash)
    mu2 := tbl.SegmentLock(hash)
    if mu1 != mu2 {
        t.Error("SegmentLock returned different mutexes for the same hash")
    }
}

func TestConcurrentInsertAndLookup_NoRace(t *testing.T) {
    tbl := newTestTable(8)
    var wg sync.WaitGroup
    const n = 2000

    for i := 0; i < n; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            key := fmt.Sprintf("k%d", i)
            hash := tbl.Hash(key)
            tbl.InsertWithinLock(key, hash, &stringEntry{key: key})
            tbl.Lookup(key, hash)
        }(i)
    }
    wg.Wait()

    if got := tbl.Len(); got != n {
        t.Errorf("Len() = %d, want %d", got, n)
    }
}
