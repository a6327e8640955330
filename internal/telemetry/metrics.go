package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RenderMetricsMeterName is the name used for the site render meter
	RenderMetricsMeterName = "github.com/stacklok/status-page-server/render"
)

// Render outcomes recorded as the "outcome" attribute
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RenderMetrics holds the instruments of the regeneration coordinator and the site renderer
type RenderMetrics struct {
	renderDuration  metric.Float64Histogram
	rendersTotal    metric.Int64Counter
	signalsAbsorbed metric.Int64Counter
	artifacts       metric.Int64Gauge
}

// NewRenderMetrics creates a new RenderMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRenderMetrics(provider metric.MeterProvider) (*RenderMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RenderMetricsMeterName)

	renderDuration, err := meter.Float64Histogram(
		"status_page_render_duration_seconds",
		metric.WithDescription("Duration of full site renders in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	rendersTotal, err := meter.Int64Counter(
		"status_page_renders_total",
		metric.WithDescription("Number of full site renders by outcome"),
		metric.WithUnit("{render}"),
	)
	if err != nil {
		return nil, err
	}

	signalsAbsorbed, err := meter.Int64Counter(
		"status_page_signals_absorbed_total",
		metric.WithDescription("Change signals folded into a pending or in-flight render"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, err
	}

	artifacts, err := meter.Int64Gauge(
		"status_page_artifacts",
		metric.WithDescription("Number of artifacts written by the last successful render"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, err
	}

	return &RenderMetrics{
		renderDuration:  renderDuration,
		rendersTotal:    rendersTotal,
		signalsAbsorbed: signalsAbsorbed,
		artifacts:       artifacts,
	}, nil
}

// RecordRender records the duration and outcome of one render pass
func (m *RenderMetrics) RecordRender(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}

	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	m.renderDuration.Record(ctx, duration.Seconds(), attrs)
	m.rendersTotal.Add(ctx, 1, attrs)
}

// RecordSignalAbsorbed counts a signal that did not start a render of its own
func (m *RenderMetrics) RecordSignalAbsorbed(ctx context.Context) {
	if m == nil {
		return
	}
	m.signalsAbsorbed.Add(ctx, 1)
}

// RecordArtifacts records how many files the last successful render produced
func (m *RenderMetrics) RecordArtifacts(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.artifacts.Record(ctx, int64(count))
}
