package eventroute

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventroute/pkg/eventroute/config"
	"github.com/randalmurphal/eventroute/pkg/eventroute/correlate"
	"github.com/randalmurphal/eventroute/pkg/eventroute/dispatch"
	"github.com/randalmurphal/eventroute/pkg/eventroute/errors"
	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
	"github.com/randalmurphal/eventroute/pkg/eventroute/observability"
	"github.com/randalmurphal/eventroute/pkg/eventroute/store"
)

// engineConfig holds engine construction settings.
type engineConfig struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	store          store.Store
	ownStore       bool
	dlq            dispatch.DLQ
	middleware     []event.Middleware
	onError        func(evt event.Event, subscriptionID string, err error)
	schemas        *event.SchemaRegistry
	handlerTimeout time.Duration
	handlerRetry   errors.RetryConfig
	correlation    bool
	rule           correlate.CompletionRule
	groupTTL       time.Duration
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		metrics:     observability.NoopMetrics{},
		spans:       observability.NoopSpanManager{},
		correlation: true,
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger enables structured logging through the given logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics via the global meter
// provider.
func WithMetrics() Option {
	return func(c *engineConfig) {
		c.metrics = observability.NewMetricsRecorder()
	}
}

// WithTracing enables OpenTelemetry spans via the global tracer
// provider.
func WithTracing() Option {
	return func(c *engineConfig) {
		c.spans = observability.NewSpanManager()
	}
}

// WithStore persists every event flowing through the engine to the
// given store. The engine takes ownership and closes the store on
// Close.
func WithStore(s store.Store) Option {
	return func(c *engineConfig) {
		c.store = s
		c.ownStore = true
	}
}

// WithDLQ records handler failures in the given dead letter queue.
func WithDLQ(dlq dispatch.DLQ) Option {
	return func(c *engineConfig) {
		c.dlq = dlq
	}
}

// WithMiddleware wraps every subscribed handler, outermost first.
func WithMiddleware(mw ...event.Middleware) Option {
	return func(c *engineConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithOnError installs a callback invoked for each handler failure.
func WithOnError(fn func(evt event.Event, subscriptionID string, err error)) Option {
	return func(c *engineConfig) {
		c.onError = fn
	}
}

// WithSchemaRegistry validates every published event against the
// registry. Events of unregistered types or failing their schema are
// rejected at publish time.
func WithSchemaRegistry(r *event.SchemaRegistry) Option {
	return func(c *engineConfig) {
		c.schemas = r
	}
}

// WithHandlerTimeout bounds every handler invocation that sets no
// timeout of its own.
func WithHandlerTimeout(d time.Duration) Option {
	return func(c *engineConfig) {
		c.handlerTimeout = d
	}
}

// WithHandlerRetry sets the default retry policy for handler failures.
func WithHandlerRetry(cfg errors.RetryConfig) Option {
	return func(c *engineConfig) {
		c.handlerRetry = cfg
	}
}

// WithCompletionRule replaces the default correlation completion rule
// (two events per group).
func WithCompletionRule(rule correlate.CompletionRule) Option {
	return func(c *engineConfig) {
		c.rule = rule
	}
}

// WithGroupTTL evicts correlation groups idle longer than d without
// completing. Negative disables eviction.
func WithGroupTTL(d time.Duration) Option {
	return func(c *engineConfig) {
		c.groupTTL = d
	}
}

// WithoutCorrelation disables the built-in correlator entirely. The
// engine becomes a plain dispatcher.
func WithoutCorrelation() Option {
	return func(c *engineConfig) {
		c.correlation = false
	}
}

// FromConfig derives engine options from a loaded configuration.
//
// Recognized keys:
//
//	handler_timeout: duration        # per-handler execution bound
//	correlation:
//	  enabled: bool                  # default true
//	  threshold: int                 # MinCount completion rule
//	  required_types: [string]       # TypeSet completion rule
//	  group_ttl: duration
//	store:
//	  path: string                   # ":memory:" or a file path
//	dlq:
//	  max_size: int
func FromConfig(cfg config.Config) ([]Option, error) {
	var opts []Option

	if d := cfg.Duration("handler_timeout", 0); d > 0 {
		opts = append(opts, WithHandlerTimeout(d))
	}

	corr := cfg.Sub("correlation")
	if !corr.Bool("enabled", true) {
		opts = append(opts, WithoutCorrelation())
	}
	if types := corr.StringSlice("required_types", nil); len(types) > 0 {
		opts = append(opts, WithCompletionRule(correlate.TypeSet(types...)))
	} else if n := corr.Int("threshold", 0); n > 0 {
		opts = append(opts, WithCompletionRule(correlate.MinCount(n)))
	}
	if ttl := corr.Duration("group_ttl", 0); ttl != 0 {
		opts = append(opts, WithGroupTTL(ttl))
	}

	if sc := cfg.Sub("store"); sc.Has("path") {
		path := sc.String("path", ":memory:")
		st, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("open event store %q: %w", path, err)
		}
		opts = append(opts, WithStore(st))
	}

	if dc := cfg.Sub("dlq"); dc.Has("max_size") {
		opts = append(opts, WithDLQ(dispatch.NewMemoryDLQ(dc.Int("max_size", 0))))
	}

	return opts, nil
}
