package cache

// metrics.go is the statistics collaborator: a set of dirty atomic counters
// that Stats() snapshots directly, optionally mirrored into Prometheus when
// the caller opts in via WithMetrics. Prometheus is an additional export
// surface, never the source of truth, so Stats() works identically whether
// or not a registry was ever supplied.
//
// © 2025 heapcache authors. MIT License.

import (
    "sync/atomic"

    "github.com/prometheus/client_golang/prometheus"
)

type statCounters struct {
    hit                 atomic.Uint64
    miss                atomic.Uint64
    load                atomic.Uint64
    reload              atomic.Uint64
    refresh             atomic.Uint64
    loadException       atomic.Uint64
    suppressedException atomic.Uint64
    putNew              atomic.Uint64
    putHit              atomic.Uint64
    expiredKept         atomic.Uint64
    refreshedHit        atomic.Uint64
    timerEvent          atomic.Uint64
    goneSpin            atomic.Uint64
    eviction            atomic.Uint64
}

// metricsSink increments the dirty counters and, if a Prometheus registry
// was supplied, mirrors each increment into a CounterVec labeled by cache
// name.
type metricsSink struct {
    counters statCounters
    prom     *promExport // nil when metrics are disabled
}

type promExport struct {
    name                 string
    hits                 *prometheus.CounterVec
    misses               *prometheus.CounterVec
    loads                *prometheus.CounterVec
    reloads              *prometheus.CounterVec
    refreshes            *prometheus.CounterVec
    loadExceptions       *prometheus.CounterVec
    suppressedExceptions *prometheus.CounterVec
    putNew               *prometheus.CounterVec
    putHit               *prometheus.CounterVec
    expiredKept          *prometheus.CounterVec
    refreshedHit         *prometheus.CounterVec
    timerEvents          *prometheus.CounterVec
    goneSpins            *prometheus.CounterVec
    evictions            *prometheus.CounterVec
}

// newMetricsSink builds a sink that always tracks the dirty counters, and
// additionally registers Prometheus collectors when reg is non-nil.
func newMetricsSink(name string, reg *prometheus.Registry) *metricsSink {
    m := &metricsSink{}
    if reg == nil {
        return m
    }

    label := []string{"cache"}
    counter := func(n, help string) *prometheus.CounterVec {
        return prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "heapcache",
            Name:      n,
            Help:      help,
        }, label)
    }
    pe := &promExport{
        name:                 name,
        hits:                 counter("hits_total", "Number of cache hits."),
        misses:               counter("misses_total", "Number of cache misses."),
        loads:                counter("loads_total", "Number of loader invocations."),
        reloads:              counter("reloads_total", "Number of explicit ReloadAll invocations."),
        refreshes:            counter("refreshes_total", "Number of refresh-ahead loads."),
        loadExceptions:       counter("load_exceptions_total", "Number of loader calls that returned an error."),
        suppressedExceptions: counter("suppressed_exceptions_total", "Number of loader exceptions suppressed behind a stale value."),
        putNew:               counter("put_new_total", "Number of Put calls that created a new entry."),
        putHit:               counter("put_hit_total", "Number of Put calls that replaced an existing entry."),
        expiredKept:          counter("expired_kept_total", "Number of entries kept resident past logical expiry (KeepDataAfterExpired)."),
        refreshedHit:         counter("refreshed_hit_total", "Number of reads served from a refresh-ahead-updated entry."),
        timerEvents:          counter("timer_events_total", "Number of expiry/refresh timer callbacks fired."),
        goneSpins:            counter("gone_spins_total", "Number of times an operation had to retry after its entry went GONE."),
        evictions:            counter("evictions_total", "Number of entries displaced by the capacity policy."),
    }
    reg.MustRegister(pe.hits, pe.misses, pe.loads, pe.reloads, pe.refreshes,
        pe.loadExceptions, pe.suppressedExceptions, pe.putNew, pe.putHit,
        pe.expiredKept, pe.refreshedHit, pe.timerEvents, pe.goneSpins, pe.evictions)
    m.prom = pe
    return m
}

func (m *metricsSink) incHit() {
    m.counters.hit.Add(1)
    if m.prom != nil {
        m.prom.hits.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incMiss() {
    m.counters.miss.Add(1)
    if m.prom != nil {
        m.prom.misses.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incLoad() {
    m.counters.load.Add(1)
    if m.prom != nil {
        m.prom.loads.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incReload() {
    m.counters.reload.Add(1)
    if m.prom != nil {
        m.prom.reloads.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incRefresh() {
    m.counters.refresh.Add(1)
    if m.prom != nil {
        m.prom.refreshes.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incLoadException() {
    m.counters.loadException.Add(1)
    if m.prom != nil {
        m.prom.loadExceptions.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incSuppressedException() {
    m.counters.suppressedException.Add(1)
    if m.prom != nil {
        m.prom.suppressedExceptions.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incPutNew() {
    m.counters.putNew.Add(1)
    if m.prom != nil {
        m.prom.putNew.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incPutHit() {
    m.counters.putHit.Add(1)
    if m.prom != nil {
        m.prom.putHit.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incExpiredKept() {
    m.counters.expiredKept.Add(1)
    if m.prom != nil {
        m.prom.expiredKept.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incRefreshedHit() {
    m.counters.refreshedHit.Add(1)
    if m.prom != nil {
        m.prom.refreshedHit.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incTimerEvent() {
    m.counters.timerEvent.Add(1)
    if m.prom != nil {
        m.prom.timerEvents.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incGoneSpin() {
    m.counters.goneSpin.Add(1)
    if m.prom != nil {
        m.prom.goneSpins.WithLabelValues(m.prom.name).Inc()
    }
}
func (m *metricsSink) incEviction() {
    m.counters.eviction.Add(1)
    if m.prom != nil {
        m.prom.evictions.WithLabelValues(m.prom.name).Inc()
    }
}

// Stats is a point-in-time snapshot of a Cache's dirty counters, returned
// by Cache.Stats(). Fields are cumulative since construction.
type Stats struct {
    Hits                 uint64 `json:"hits_total"`
    Misses               uint64 `json:"misses_total"`
    Loads                uint64 `json:"loads_total"`
    Reloads              uint64 `json:"reloads_total"`
    Refreshes            uint64 `json:"refreshes_total"`
    LoadExceptions       uint64 `json:"load_exceptions_total"`
    SuppressedExceptions uint64 `json:"suppressed_exceptions_total"`
    PutNew               uint64 `json:"put_new_total"`
    PutHit               uint64 `json:"put_hit_total"`
    ExpiredKept          uint64 `json:"expired_kept_total"`
    RefreshedHit         uint64 `json:"refreshed_hit_total"`
    TimerEvents          uint64 `json:"timer_events_total"`
    GoneSpins            uint64 `json:"gone_spins_total"`
    Evictions            uint64 `json:"evictions_total"`
    Size                 int64  `json:"size"`
}

func (m *metricsSink) snapshot(size int64) Stats {
    return Stats{
        Hits:                 m.counters.hit.Load(),
        Misses:               m.counters.miss.Load(),
        Loads:                m.counters.load.Load(),
        Reloads:              m.counters.reload.Load(),
        Refreshes:            m.counters.refresh.Load(),
        LoadExceptions:       m.counters.loadException.Load(),
        SuppressedExceptions: m.counters.suppressedException.Load(),
        PutNew:               m.counters.putNew.Load(),
        PutHit:               m.counters.putHit.Load(),
        ExpiredKept:          m.counters.expiredKept.Load(),
        RefreshedHit:         m.counters.refreshedHit.Load(),
        TimerEvents:          m.counters.timerEvent.Load(),
        GoneSpins:            m.counters.goneSpin.Load(),
        Evictions:            m.counters.eviction.Load(),
        Size:                 size,
    }
}
