package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMetrics_Collect(t *testing.T) {
	ctx := context.Background()
	p := NewProvider()
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	m, err := NewCacheMetrics(p.Meter())
	require.NoError(t, err)

	m.RecordHit(ctx, "post")
	m.RecordHit(ctx, "post")
	m.RecordMiss(ctx, "feed")
	m.RecordFetch(ctx, "feed", nil)
	m.RecordFetch(ctx, "feed", errors.New("boom"))
	m.RecordInvalidations(ctx, "LikePost", 4)
	m.RecordInvalidations(ctx, "LikePost", 0)

	got, err := p.Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), got["snapgram_cache_hit_total{snapgram_cache_scope=post}"])
	assert.Equal(t, int64(1), got["snapgram_cache_miss_total{snapgram_cache_scope=feed}"])
	assert.Equal(t, int64(1), got["snapgram_cache_fetch_total{snapgram_cache_scope=feed,snapgram_status=success}"])
	assert.Equal(t, int64(1), got["snapgram_cache_fetch_total{snapgram_cache_scope=feed,snapgram_status=error}"])
	assert.Equal(t, int64(4), got["snapgram_cache_invalidation_total{snapgram_write=LikePost}"])
}

func TestCacheMetrics_NilIsNoop(t *testing.T) {
	var m *CacheMetrics
	ctx := context.Background()
	m.RecordHit(ctx, "post")
	m.RecordMiss(ctx, "post")
	m.RecordFetch(ctx, "post", nil)
	m.RecordInvalidations(ctx, "CreatePost", 2)
}

func TestBuildMetricName(t *testing.T) {
	assert.Equal(t, "snapgram_cache_hit_total", BuildMetricName("cache_hit", MetricNameSuffixTotal))
	assert.Equal(t, "snapgram_up", BuildMetricName("up", ""))
}
