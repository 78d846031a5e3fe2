package eventroute

import (
	"context"

	"github.com/randalmurphal/eventroute/pkg/eventroute/correlate"
	"github.com/randalmurphal/eventroute/pkg/eventroute/dispatch"
	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
	"github.com/randalmurphal/eventroute/pkg/eventroute/store"
)

// Engine ties together the dispatcher, the correlator, and the event
// store behind one entry point. Safe for concurrent use.
type Engine struct {
	config     engineConfig
	dispatcher *dispatch.Dispatcher
	correlator *correlate.Correlator
}

// New creates an engine. By default the engine correlates events in
// memory with a two-event completion rule, keeps no durable store, and
// emits no telemetry.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d := dispatch.NewDispatcher(dispatch.Config{
		Logger:         cfg.logger,
		Metrics:        cfg.metrics,
		Spans:          cfg.spans,
		Middleware:     cfg.middleware,
		OnError:        cfg.onError,
		DLQ:            cfg.dlq,
		DefaultTimeout: cfg.handlerTimeout,
		DefaultRetry:   cfg.handlerRetry,
	})

	e := &Engine{
		config:     cfg,
		dispatcher: d,
	}

	if cfg.correlation {
		e.correlator = correlate.New(correlate.Config{
			Publisher: d,
			Store:     cfg.store,
			Rule:      cfg.rule,
			GroupTTL:  cfg.groupTTL,
			Logger:    cfg.logger,
			Metrics:   cfg.metrics,
		})
		if _, err := e.correlator.Attach(d); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Subscribe registers a handler for events matching the pattern and
// returns the subscription ID.
func (e *Engine) Subscribe(pattern event.Pattern, handler event.Handler, opts ...dispatch.SubscribeOption) (string, error) {
	return e.dispatcher.Subscribe(pattern, handler, opts...)
}

// Unsubscribe removes a subscription. Unknown IDs are a no-op.
func (e *Engine) Unsubscribe(id string) {
	e.dispatcher.Unsubscribe(id)
}

// Publish delivers the event asynchronously: all matching handlers run
// concurrently and Publish returns once every one has finished.
func (e *Engine) Publish(ctx context.Context, evt event.Event) ([]dispatch.Delivery, error) {
	return e.publish(ctx, evt, dispatch.ModeAsync)
}

// PublishSync delivers the event to matching handlers one at a time in
// registration order.
func (e *Engine) PublishSync(ctx context.Context, evt event.Event) ([]dispatch.Delivery, error) {
	return e.publish(ctx, evt, dispatch.ModeSync)
}

func (e *Engine) publish(ctx context.Context, evt event.Event, mode dispatch.Mode) ([]dispatch.Delivery, error) {
	if e.config.schemas != nil {
		if err := e.config.schemas.Validate(evt); err != nil {
			return nil, err
		}
	}
	return e.dispatcher.Publish(ctx, evt, mode)
}

// CorrelationChain returns every stored event sharing the correlation
// ID, oldest first. Requires a store.
func (e *Engine) CorrelationChain(ctx context.Context, correlationID string) ([]event.Event, error) {
	if e.correlator != nil {
		return e.correlator.CorrelationChain(ctx, correlationID)
	}
	if e.config.store == nil {
		return nil, store.ErrNotFound
	}
	return e.config.store.Query(ctx, store.Query{CorrelationID: correlationID})
}

// CausationChain walks causation links back from the given event,
// returning the chain root-cause first. Requires a store and an
// active correlator.
func (e *Engine) CausationChain(ctx context.Context, eventID string) ([]event.Event, error) {
	if e.correlator == nil {
		return nil, store.ErrNotFound
	}
	return e.correlator.CausationChain(ctx, eventID)
}

// Dispatcher exposes the underlying dispatcher for callers that need
// explicit delivery modes or subscription management.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// Correlator exposes the correlator, or nil when correlation is
// disabled.
func (e *Engine) Correlator() *correlate.Correlator {
	return e.correlator
}

// Store exposes the configured event store, or nil when the engine is
// memory-only.
func (e *Engine) Store() store.Store {
	return e.config.store
}

// Close shuts down the engine: the correlator's sweep stops, the
// dispatcher rejects further publishes, and an engine-owned store is
// closed.
func (e *Engine) Close() error {
	var firstErr error

	if e.correlator != nil {
		if err := e.correlator.Close(); err != nil {
			firstErr = err
		}
	}
	if err := e.dispatcher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if e.config.ownStore && e.config.store != nil {
		if err := e.config.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
