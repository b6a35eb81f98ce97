package cache

import (
    "context"
    "testing"

    "github.com/prometheus/client_golang/prometheus"
)

func promCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
    t.Helper()
    families, err := reg.Gather()
    if err != nil {
        t.Fatalf("Gather() error = %v", err)
    }
    for _, fam := range families {
        if fam.GetName() != "heapcache_"+name {
            continue
        }
        var total float64
        for _, m := range fam.Metric {
            total += m.GetCounter().GetValue()
        }
        return total
    }
    return 0
}

func TestMetrics_PrometheusMirrorsTheDirtyCounters(t *testing.T) {
    reg := prometheus.NewRegistry()
    c := mustNew[string, int](t, WithMetrics[string, int](reg), WithName[string, int]("mycache"))
    ctx := context.Background()

    c.Put(ctx, "k", 1)
    c.Peek("k")
    c.Peek("missing")

    stats := c.Stats()
    if got := promCounterValue(t, reg, "hits_total"); got != float64(stats.Hits) {
        t.Errorf("prometheus hits_total = %v, want %v", got, stats.Hits)
    }
    if got := promCounterValue(t, reg, "misses_total"); got != float64(stats.Misses) {
        t.Errorf("prometheus misses_total = %v, want %v", got, stats.Misses)
    }
}

func TestMetrics_StatsCountWithoutARegistry(t *testing.T) {
    c := mustNew[string, int](t)
    c.Put(context.Background(), "k", 1)
    c.Peek("k")

    stats := c.Stats()
    if stats.Hits != 1 {
        t.Errorf("Stats().Hits = %d, want 1 even without a Prometheus registry", stats.Hits)
    }
}

func TestMetrics_EvictionsCounterIncrementsOnCapacityEviction(t *testing.T) {
    reg := prometheus.NewRegistry()
    c := mustNew[int, int](t, WithMaximumSize[int, int](2), WithMetrics[int, int](reg))
    ctx := context.Background()
    for i := 0; i < 50; i++ {
        c.Put(ctx, i, i)
    }

    stats := c.Stats()
    if stats.Evictions == 0 {
        t.Fatal("Stats().Evictions = 0, want > 0")
    }
    if got := promCounterValue(t, reg, "evictions_total"); got != float64(stats.Evictions) {
        t.Errorf("prometheus evictions_total = %v, want %v", got, stats.Evictions)
    }
}
