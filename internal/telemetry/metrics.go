package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

const (
	MetricNameSuffixTotal = "_total"

	AttrScope  = "snapgram_cache_scope"
	AttrWrite  = "snapgram_write"
	AttrStatus = "snapgram_status"

	StatusSuccess = "success"
	StatusError   = "error"
)

func BuildMetricName(baseName, suffix string) string {
	return "snapgram_" + baseName + suffix
}

func WithScope(scope string) attribute.KeyValue {
	return attribute.String(AttrScope, scope)
}

func WithWrite(write string) attribute.KeyValue {
	return attribute.String(AttrWrite, write)
}

func WithStatus(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

type MetricOptions struct {
	Name        string
	Description string
	Unit        string
}

// Counter is a monotonic int64 counter.
type Counter struct {
	counter otelmetric.Int64Counter
}

func NewCounter(meter otelmetric.Meter, opts MetricOptions) (*Counter, error) {
	counter, err := meter.Int64Counter(
		opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, otelmetric.WithAttributes(attrs...))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}
