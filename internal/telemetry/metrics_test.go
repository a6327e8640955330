package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewRenderMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	metrics, err := NewRenderMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)

	// nil metrics must be usable
	metrics.RecordRender(context.Background(), time.Second, true)
	metrics.RecordSignalAbsorbed(context.Background())
	metrics.RecordArtifacts(context.Background(), 3)
}

func TestRenderMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := NewRenderMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordRender(ctx, 150*time.Millisecond, true)
	metrics.RecordRender(ctx, 20*time.Millisecond, false)
	metrics.RecordSignalAbsorbed(ctx)
	metrics.RecordSignalAbsorbed(ctx)
	metrics.RecordArtifacts(ctx, 4)

	got := collect(t, reader)

	renders, ok := got["status_page_renders_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range renders.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)
	assert.Len(t, renders.DataPoints, 2, "one data point per outcome")

	absorbed, ok := got["status_page_signals_absorbed_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, absorbed.DataPoints, 1)
	assert.Equal(t, int64(2), absorbed.DataPoints[0].Value)

	artifacts, ok := got["status_page_artifacts"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, artifacts.DataPoints, 1)
	assert.Equal(t, int64(4), artifacts.DataPoints[0].Value)

	_, ok = got["status_page_render_duration_seconds"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}
