package cache

// clock.go defines the Clock collaborator: everything in heapcache that
// needs "now" or a timer goes through this seam so tests can drive expiry
// and refresh-ahead deterministically without sleeping.
//
// © 2025 heapcache authors. MIT License.

import (
    "time"

    realclock "github.com/benbjohnson/clock"
)

// timerHandle is the subset of benbjohnson/clock's *Timer the action/timing
// code needs; kept as its own type so pkg/entry.go doesn't import the clock
// package directly.
type timerHandle struct {
    t *realclock.Timer
}

func (h *timerHandle) Stop() bool {
    if h == nil || h.t == nil {
        return false
    }
    return h.t.Stop()
}

// Clock abstracts wall-clock time and timer creation. heapcache's default is
// backed by github.com/benbjohnson/clock; tests substitute clock.NewMock()
// to advance time instantly and deterministically.
type Clock interface {
    NowMillis() int64
    AfterFunc(millis int64, f func()) *timerHandle
}

type realtimeClock struct {
    c realclock.Clock
}

// NewRealClock returns the production Clock, backed by the system wall
// clock.
func NewRealClock() Clock {
    return &realtimeClock{c: realclock.New()}
}

// NewMockClock returns a Clock whose underlying benbjohnson/clock.Mock is
// exposed for tests to call Add/Set on; useful for exercising expiry,
// sharp-expiry, and refresh-ahead timing without real sleeps.
func NewMockClock() (Clock, *realclock.Mock) {
    m := realclock.NewMock()
    return &realtimeClock{c: m}, m
}

func (r *realtimeClock) NowMillis() int64 {
    return r.c.Now().UnixMilli()
}

func (r *realtimeClock) AfterFunc(millis int64, f func()) *timerHandle {
    if millis <= 0 {
        millis = 1
    }
    t := r.c.AfterFunc(time.Duration(millis)*time.Millisecond, f)
    return &timerHandle{t: t}
}
