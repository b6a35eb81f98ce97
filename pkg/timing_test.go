package cache

import (
    "context"
    "sync/atomic"
    "testing"
    "time"
)

// waitUntil polls cond for up to a bounded wall-clock window and fails the
// test if it never becomes true. Timer callbacks run on whatever goroutine
// the Clock implementation chooses to invoke them on, so asserting on their
// side effects right after advancing a mock clock would race; this gives
// that goroutine a chance to finish without an unbounded hang.
func waitUntil(t *testing.T, cond func() bool) {
    t.Helper()
    deadline := time.Now().Add(2 * time.Second)
    for time.Now().Before(deadline) {
        if cond() {
            return
        }
        time.Sleep(time.Millisecond)
    }
    if !cond() {
        t.Fatal("condition never became true within the test's wait window")
    }
}

func TestRefreshAhead_ReloadsInTheBackgroundBeforeExpiry(t *testing.T) {
    clk, mock := NewMockClock()
    var calls atomic.Int32
    c := mustNew[string, int](t,
        WithClock[string, int](clk),
        WithExpireAfterWrite[string, int](2*time.Minute),
        WithRefreshAhead[string, int](true, 0.5),
        WithLoader[string, int](LoaderFunc[string, int](func(context.Context, string) (int, error) {
            return int(calls.Add(1)), nil
        })),
    )
    ctx := context.Background()

    v, err := c.Get(ctx, "k")
    if err != nil || v != 1 {
        t.Fatalf("initial Get() = %d, %v; want 1, nil", v, err)
    }

    // Refresh-ahead fires at 50% of the 2-minute lifetime: advancing 61s
    // crosses that threshold while the entry is still nominally fresh.
    mock.Add(61 * time.Second)

    waitUntil(t, func() bool { return calls.Load() == 2 })

    // The refreshed value must be visible without the caller doing
    // anything else; refresh-ahead serves the new value once it lands. The
    // entry sits in probation (EXPIRED_REFRESHED) until its original
    // deadline, so Peek — which never loads and never revives — would
    // report it not-fresh here; Get revives the retained value through the
    // load path instead of invoking the loader a third time.
    waitUntil(t, func() bool {
        v, err := c.Get(ctx, "k")
        return err == nil && v == 2
    })
    if calls.Load() != 2 {
        t.Fatalf("revival during probation invoked the loader again: calls=%d, want 2", calls.Load())
    }
}

func TestRefreshAhead_OriginalExpiryStillAppliesAfterRefresh(t *testing.T) {
    clk, mock := NewMockClock()
    var calls atomic.Int32
    c := mustNew[string, int](t,
        WithClock[string, int](clk),
        WithExpireAfterWrite[string, int](2*time.Minute),
        WithRefreshAhead[string, int](true, 0.5),
        WithLoader[string, int](LoaderFunc[string, int](func(context.Context, string) (int, error) {
            return int(calls.Add(1)), nil
        })),
    )
    ctx := context.Background()
    c.Get(ctx, "k")

    mock.Add(61 * time.Second) // crosses the refresh-ahead threshold
    waitUntil(t, func() bool { return calls.Load() == 2 })

    mock.Add(2 * time.Minute) // well past the original expiry + safety gap

    waitUntil(t, func() bool {
        _, ok := c.Peek("k")
        return !ok
    })
}

func TestSharpExpiry_FiresWithoutAnyReadTriggeringIt(t *testing.T) {
    clk, mock := NewMockClock()
    c := mustNew[string, int](t,
        WithClock[string, int](clk),
        WithExpireAfterWrite[string, int](time.Minute),
        WithSharpExpiry[string, int](true),
    )
    ctx := context.Background()
    c.Put(ctx, "k", 1)

    mock.Add(time.Minute + 30*time.Second) // past expiry + the default safety gap

    waitUntil(t, func() bool {
        _, ok := c.Peek("k")
        return !ok
    })
}

func TestExpiredListener_FiresOnSharpExpiryTimer(t *testing.T) {
    clk, mock := NewMockClock()
    fired := make(chan string, 1)
    c := mustNew[string, int](t,
        WithClock[string, int](clk),
        WithExpireAfterWrite[string, int](time.Minute),
        WithSharpExpiry[string, int](true),
        WithExpiredListener[string, int](expiredListenerFunc(func(key string, _ int) error {
            fired <- key
            return nil
        })),
    )
    c.Put(context.Background(), "k", 1)

    mock.Add(time.Minute + 30*time.Second)

    select {
    case key := <-fired:
        if key != "k" {
            t.Errorf("ExpiredListener fired for %q, want %q", key, "k")
        }
    case <-time.After(2 * time.Second):
        t.Error("ExpiredListener never fired after sharp expiry")
    }
}

type expiredListenerFunc func(key string, value int) error

func (f expiredListenerFunc) OnExpired(key string, value int) error { return f(key, value) }
