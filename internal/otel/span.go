// Package otel provides OpenTelemetry span helpers shared by the store and the renderer.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on spans across the application
const (
	AttrPassID         = attribute.Key("render.pass_id")
	AttrArtifactCount  = attribute.Key("render.artifacts")
	AttrInterventionID = attribute.Key("intervention.id")
	AttrServiceID      = attribute.Key("service.id")
	AttrStoreBackend   = attribute.Key("store.backend")
	AttrResultCount    = attribute.Key("result.count")
)

// StartSpan starts a new span when tracer is non-nil. Otherwise the span already
// in ctx (possibly a no-op one) is returned unchanged.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed.
// The status description stays generic so queries and paths never land in it;
// the full error is kept in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
