// Package observability provides logging, metrics, and tracing for the
// event routing engine.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event routing context to a logger.
// Returns a new logger with event_id, event_type, and subscription_id fields.
func EnrichLogger(logger *slog.Logger, eventID, eventType, subscriptionID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("subscription_id", subscriptionID),
	)
}

// LogPublish logs the start of a publish.
func LogPublish(logger *slog.Logger, eventID, eventType, mode string, matched int) {
	if logger == nil {
		return
	}
	logger.Debug("publishing event",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("mode", mode),
		slog.Int("matched_subscriptions", matched),
	)
}

// LogHandlerError logs a handler failure with full subscription and
// event identity. Handler failures are isolated, so this is the only
// place a publisher-side operator sees them.
func LogHandlerError(logger *slog.Logger, eventID, eventType, subscriptionID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("subscription_id", subscriptionID),
		slog.String("error", err.Error()),
	)
}

// LogDelivered logs a successful delivery.
func LogDelivered(logger *slog.Logger, eventID, subscriptionID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event delivered",
		slog.String("event_id", eventID),
		slog.String("subscription_id", subscriptionID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogEnriched logs correlation enrichment of an uncorrelated event.
func LogEnriched(logger *slog.Logger, eventID, correlationID string) {
	if logger == nil {
		return
	}
	logger.Debug("event enriched with correlation",
		slog.String("event_id", eventID),
		slog.String("correlation_id", correlationID),
	)
}

// LogCorrelationComplete logs completion of a correlation group.
func LogCorrelationComplete(logger *slog.Logger, correlationID string, eventCount int) {
	if logger == nil {
		return
	}
	logger.Info("correlation group completed",
		slog.String("correlation_id", correlationID),
		slog.Int("event_count", eventCount),
	)
}

// LogGroupExpired logs eviction of an idle correlation group.
func LogGroupExpired(logger *slog.Logger, correlationID string, eventCount int, idle time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("correlation group expired without completing",
		slog.String("correlation_id", correlationID),
		slog.Int("event_count", eventCount),
		slog.Duration("idle", idle),
	)
}

// LogStoreDegraded logs a store failure the correlator survived by
// continuing in-memory.
func LogStoreDegraded(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event store unavailable, correlating in-memory only",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
