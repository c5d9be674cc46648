package telemetry

import (
	"context"

	otelmetric "go.opentelemetry.io/otel/metric"
)

// CacheMetrics counts cache coordinator activity. A nil *CacheMetrics records nothing.
type CacheMetrics struct {
	Hits          *Counter
	Misses        *Counter
	Fetches       *Counter
	Invalidations *Counter
}

func NewCacheMetrics(meter otelmetric.Meter) (*CacheMetrics, error) {
	hits, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("cache_hit", MetricNameSuffixTotal),
		Description: "reads served from a fresh cache entry",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}
	misses, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("cache_miss", MetricNameSuffixTotal),
		Description: "reads that found no entry or a stale one",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}
	fetches, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("cache_fetch", MetricNameSuffixTotal),
		Description: "remote fetches issued by the cache, by status",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}
	invalidations, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("cache_invalidation", MetricNameSuffixTotal),
		Description: "entries marked stale, by triggering write",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}
	return &CacheMetrics{Hits: hits, Misses: misses, Fetches: fetches, Invalidations: invalidations}, nil
}

func (m *CacheMetrics) RecordHit(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.Hits.Inc(ctx, WithScope(scope))
}

func (m *CacheMetrics) RecordMiss(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.Misses.Inc(ctx, WithScope(scope))
}

func (m *CacheMetrics) RecordFetch(ctx context.Context, scope string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.Fetches.Inc(ctx, WithScope(scope), WithStatus(status))
}

func (m *CacheMetrics) RecordInvalidations(ctx context.Context, write string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Invalidations.Add(ctx, int64(n), WithWrite(write))
}
