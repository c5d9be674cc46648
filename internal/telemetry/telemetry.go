// Package telemetry wires OpenTelemetry metric instruments for the cache coordinator.
package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const MeterName = "github.com/bassista/snapgram"

// Provider owns an in-process meter provider whose counters can be read back
// through Collect, e.g. by the HTTP stats endpoint.
type Provider struct {
	provider *metric.MeterProvider
	reader   *metric.ManualReader
}

// NewProvider creates the provider and installs it as the global one.
func NewProvider() *Provider {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return &Provider{provider: provider, reader: reader}
}

func (p *Provider) Meter() otelmetric.Meter {
	return p.provider.Meter(MeterName)
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// Collect returns every int64 sum data point as "name{attr=value,...}" -> value.
func (p *Provider) Collect(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[seriesName(m.Name, dp.Attributes)] += dp.Value
			}
		}
	}
	return out, nil
}

func seriesName(name string, set attribute.Set) string {
	attrs := set.ToSlice()
	if len(attrs) == 0 {
		return name
	}
	parts := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	sort.Strings(parts)
	s := name + "{"
	for i, part := range parts {
		if i > 0 {
			s += ","
		}
		s += part
	}
	return s + "}"
}
