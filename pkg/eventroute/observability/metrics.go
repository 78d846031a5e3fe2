package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event routing metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records a publish with its delivery mode and the
	// number of matching subscriptions.
	RecordPublish(ctx context.Context, eventType, mode string, matched int)

	// RecordDelivery records one handler invocation with its duration
	// and error status.
	RecordDelivery(ctx context.Context, eventType, subscriptionID string, duration time.Duration, err error)

	// RecordCorrelation records a completed correlation group.
	RecordCorrelation(ctx context.Context, groupSize int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	publishes       metric.Int64Counter
	deliveries      metric.Int64Counter
	deliveryLatency metric.Float64Histogram
	handlerErrors   metric.Int64Counter
	correlations    metric.Int64Counter
	groupSize       metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventroute")

	publishes, err := meter.Int64Counter("eventroute.events.published",
		metric.WithDescription("Number of events published"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("eventroute.deliveries",
		metric.WithDescription("Number of handler deliveries"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("eventroute.delivery.latency_ms",
		metric.WithDescription("Handler delivery latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("eventroute.handler.errors",
		metric.WithDescription("Number of failed handler deliveries"),
	)
	if err != nil {
		return nil, err
	}

	correlations, err := meter.Int64Counter("eventroute.correlations.completed",
		metric.WithDescription("Number of completed correlation groups"),
	)
	if err != nil {
		return nil, err
	}

	groupSize, err := meter.Int64Histogram("eventroute.correlation.group_size",
		metric.WithDescription("Events per completed correlation group"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		publishes:       publishes,
		deliveries:      deliveries,
		deliveryLatency: deliveryLatency,
		handlerErrors:   handlerErrors,
		correlations:    correlations,
		groupSize:       groupSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records a publish.
func (m *otelMetrics) RecordPublish(ctx context.Context, eventType, mode string, matched int) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("mode", mode),
		attribute.Int("matched", matched),
	))
}

// RecordDelivery records one handler invocation.
func (m *otelMetrics) RecordDelivery(ctx context.Context, eventType, subscriptionID string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
		attribute.String("subscription_id", subscriptionID),
	}

	m.deliveries.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveryLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.handlerErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordCorrelation records a completed correlation group.
func (m *otelMetrics) RecordCorrelation(ctx context.Context, groupSize int) {
	m.correlations.Add(ctx, 1)
	m.groupSize.Record(ctx, int64(groupSize))
}
