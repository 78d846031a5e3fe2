package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the eventroute tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("eventroute")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartPublishSpan starts a span covering one publish fan-out.
	StartPublishSpan(ctx context.Context, eventID, eventType, mode string) (context.Context, trace.Span)

	// StartDeliverSpan starts a span for one handler delivery.
	// The delivery span should be a child of the publish span.
	StartDeliverSpan(ctx context.Context, subscriptionID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartPublishSpan starts a span covering one publish fan-out.
func (m *otelSpanManager) StartPublishSpan(ctx context.Context, eventID, eventType, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventroute.publish",
		trace.WithAttributes(
			attribute.String("event.id", eventID),
			attribute.String("event.type", eventType),
			attribute.String("delivery.mode", mode),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartDeliverSpan starts a span for one handler delivery.
func (m *otelSpanManager) StartDeliverSpan(ctx context.Context, subscriptionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventroute.deliver",
		trace.WithAttributes(
			attribute.String("subscription.id", subscriptionID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartPublishSpan starts a span covering one publish fan-out.
// Uses the global OTel tracer.
func StartPublishSpan(ctx context.Context, eventID, eventType, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventroute.publish",
		trace.WithAttributes(
			attribute.String("event.id", eventID),
			attribute.String("event.type", eventType),
			attribute.String("delivery.mode", mode),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartDeliverSpan starts a span for one handler delivery.
// Uses the global OTel tracer.
func StartDeliverSpan(ctx context.Context, subscriptionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventroute.deliver",
		trace.WithAttributes(
			attribute.String("subscription.id", subscriptionID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
