package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("eventroute")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartPublishSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartPublishSpan(ctx, "evt-123", "build.started", "async")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "eventroute.publish", s.Name)

		var eventID, eventType, mode string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "event.id":
				eventID = attr.Value.AsString()
			case "event.type":
				eventType = attr.Value.AsString()
			case "delivery.mode":
				mode = attr.Value.AsString()
			}
		}
		assert.Equal(t, "evt-123", eventID)
		assert.Equal(t, "build.started", eventType)
		assert.Equal(t, "async", mode)
	})

	t.Run("returns context with span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		newCtx, span := StartPublishSpan(ctx, "evt-456", "deploy.finished", "sync")

		assert.NotEqual(t, ctx, newCtx)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
	})
}

func TestStartDeliverSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with subscription attribute", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartDeliverSpan(ctx, "sub-1")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "eventroute.deliver", s.Name)

		var subID string
		for _, attr := range s.Attributes {
			if attr.Key == "subscription.id" {
				subID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "sub-1", subID)
	})

	t.Run("deliver spans are children of the publish span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		ctx, pubSpan := StartPublishSpan(ctx, "evt-1", "build.started", "async")

		_, delSpan := StartDeliverSpan(ctx, "sub-1")
		delSpan.End()

		pubSpan.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)

		var delSpanData *tracetest.SpanStub
		for i := range spans {
			if spans[i].Name == "eventroute.deliver" {
				delSpanData = &spans[i]
				break
			}
		}
		require.NotNil(t, delSpanData)

		assert.True(t, delSpanData.Parent.IsValid())
	})
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("sets OK status for nil error", func(t *testing.T) {
		ctx := context.Background()
		_, span := StartPublishSpan(ctx, "evt-1", "build.started", "sync")

		EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		assert.Equal(t, codes.Ok, spans[0].Status.Code)
		assert.Equal(t, "", spans[0].Status.Description)
	})

	t.Run("sets Error status and records error", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := StartPublishSpan(ctx, "evt-2", "build.started", "sync")
		testErr := errors.New("something went wrong")

		EndSpanWithError(span, testErr)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "something went wrong", s.Status.Description)

		require.NotEmpty(t, s.Events)
		found := false
		for _, event := range s.Events {
			if event.Name == "exception" {
				found = true
			}
		}
		assert.True(t, found, "Expected exception event")
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			EndSpanWithError(nil, nil)
		})
		assert.NotPanics(t, func() {
			EndSpanWithError(nil, errors.New("test"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("adds event to current span", func(t *testing.T) {
		ctx := context.Background()
		ctx, span := StartPublishSpan(ctx, "evt-1", "build.started", "async")

		AddSpanEvent(ctx, "correlation_completed",
			attribute.String("correlation_id", "corr-1"),
			attribute.Int64("event_count", 2),
		)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		require.NotEmpty(t, s.Events)

		var found bool
		for _, event := range s.Events {
			if event.Name == "correlation_completed" {
				found = true
				var corrID string
				var count int64
				for _, attr := range event.Attributes {
					switch attr.Key {
					case "correlation_id":
						corrID = attr.Value.AsString()
					case "event_count":
						count = attr.Value.AsInt64()
					}
				}
				assert.Equal(t, "corr-1", corrID)
				assert.Equal(t, int64(2), count)
			}
		}
		assert.True(t, found, "Expected to find correlation_completed event")
	})

	t.Run("no panic with no current span", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			AddSpanEvent(ctx, "test_event")
		})
	})
}

func TestSpanManager_Interface(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	require.NotNil(t, sm)

	t.Run("StartPublishSpan via interface", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartPublishSpan(ctx, "evt-if", "build.started", "sync")
		require.NotNil(t, span)

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
	})

	t.Run("StartDeliverSpan via interface", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := sm.StartDeliverSpan(ctx, "sub-if")
		require.NotNil(t, span)

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
		assert.Equal(t, "eventroute.deliver", spans[0].Name)
	})

	t.Run("AddSpanEvent via interface", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		ctx, span := sm.StartPublishSpan(ctx, "evt-1", "build.started", "async")

		sm.AddSpanEvent(ctx, "custom_event", attribute.String("key", "value"))

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.NotEmpty(t, spans)
		require.NotEmpty(t, spans[0].Events)
	})
}
