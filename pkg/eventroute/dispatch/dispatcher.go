package dispatch

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventroute/pkg/eventroute/errors"
	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
	"github.com/randalmurphal/eventroute/pkg/eventroute/observability"
)

var (
	// ErrInvalidMode indicates a delivery mode outside {sync, async}.
	ErrInvalidMode = stderrors.New("invalid delivery mode")

	// ErrDispatcherClosed indicates a publish or subscribe after Close.
	ErrDispatcherClosed = stderrors.New("dispatcher closed")

	// ErrNilHandler indicates a subscribe with no handler.
	ErrNilHandler = stderrors.New("handler must not be nil")
)

// Delivery is the outcome of one handler invocation during a publish.
type Delivery struct {
	// SubscriptionID identifies which subscription was invoked.
	SubscriptionID string

	// Err is the handler's final error after retries, nil on success.
	Err error

	// Duration is the wall time of the invocation including retries.
	Duration time.Duration
}

// Config configures dispatcher behavior. The zero value is usable:
// no logging, no metrics, no tracing, no retries.
type Config struct {
	// Logger receives structured publish and delivery logs. Nil
	// disables logging.
	Logger *slog.Logger

	// Metrics records publish and delivery metrics.
	// Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder

	// Spans manages trace spans around publishes and deliveries.
	// Default: observability.NoopSpanManager{}
	Spans observability.SpanManager

	// Middleware wraps every subscribed handler, outermost first.
	Middleware []event.Middleware

	// OnError is called for each handler failure after retries.
	OnError func(evt event.Event, subscriptionID string, err error)

	// DLQ receives deliveries that failed after all retries.
	// Default: nil (failures are logged and dropped)
	DLQ DLQ

	// DefaultTimeout bounds handler invocations that set no timeout
	// of their own. Zero means no limit.
	DefaultTimeout time.Duration

	// DefaultRetry is the retry policy for subscriptions that set
	// none. Default: errors.NoRetry
	DefaultRetry errors.RetryConfig
}

// Dispatcher routes published events to matching subscriptions.
// Safe for concurrent use.
type Dispatcher struct {
	config   Config
	registry *Registry
	closed   atomic.Bool
}

// NewDispatcher creates a dispatcher with the given configuration.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Spans == nil {
		cfg.Spans = observability.NoopSpanManager{}
	}
	if cfg.DefaultRetry.MaxAttempts <= 0 {
		cfg.DefaultRetry = errors.NoRetry
	}
	return &Dispatcher{
		config:   cfg,
		registry: NewRegistry(),
	}
}

// SubscribeOption customizes one subscription.
type SubscribeOption func(*Subscription)

// WithHandlerTimeout bounds each invocation of this subscription's
// handler. The context passed to the handler carries the deadline.
func WithHandlerTimeout(d time.Duration) SubscribeOption {
	return func(s *Subscription) {
		s.Timeout = d
	}
}

// WithHandlerRetry sets the retry policy for transient handler
// failures.
func WithHandlerRetry(cfg errors.RetryConfig) SubscribeOption {
	return func(s *Subscription) {
		s.Retry = cfg
	}
}

// WithSubscriptionID overrides the generated subscription ID.
func WithSubscriptionID(id string) SubscribeOption {
	return func(s *Subscription) {
		s.ID = id
	}
}

// Subscribe registers a handler for events matching the pattern and
// returns the subscription ID. The pattern is validated up front so a
// malformed glob fails at registration, not at first publish.
func (d *Dispatcher) Subscribe(pattern event.Pattern, handler event.Handler, opts ...SubscribeOption) (string, error) {
	if d.closed.Load() {
		return "", ErrDispatcherClosed
	}
	if handler == nil {
		return "", ErrNilHandler
	}
	if err := pattern.Validate(); err != nil {
		return "", err
	}

	sub := &Subscription{
		ID:        uuid.NewString(),
		Pattern:   pattern,
		Handler:   event.Chain(handler, append([]event.Middleware{event.Recovery()}, d.config.Middleware...)...),
		Timeout:   d.config.DefaultTimeout,
		Retry:     d.config.DefaultRetry,
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(sub)
	}

	d.registry.Add(sub)
	return sub.ID, nil
}

// Unsubscribe removes a subscription. Removing an unknown or already
// removed ID is a no-op.
func (d *Dispatcher) Unsubscribe(id string) {
	d.registry.Remove(id)
}

// Subscriptions returns the number of active subscriptions.
func (d *Dispatcher) Subscriptions() int {
	return d.registry.Len()
}

// Publish delivers the event to every subscription whose pattern
// matches, using the given mode. It returns one Delivery per matched
// subscription.
//
// Handler failures never surface as a Publish error: a failing handler
// is isolated, logged, and recorded in its Delivery while its siblings
// run to completion. The returned error is non-nil only for an invalid
// mode or a closed dispatcher.
func (d *Dispatcher) Publish(ctx context.Context, evt event.Event, mode Mode) ([]Delivery, error) {
	if d.closed.Load() {
		return nil, ErrDispatcherClosed
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	matched := d.registry.Matching(evt)

	ctx, span := d.config.Spans.StartPublishSpan(ctx, evt.ID, evt.Type, mode.String())
	observability.LogPublish(d.config.Logger, evt.ID, evt.Type, mode.String(), len(matched))
	d.config.Metrics.RecordPublish(ctx, evt.Type, mode.String(), len(matched))

	if len(matched) == 0 {
		d.config.Spans.EndSpanWithError(span, nil)
		return nil, nil
	}

	var deliveries []Delivery
	switch mode {
	case ModeSync:
		deliveries = d.publishSync(ctx, evt, matched)
	case ModeAsync:
		deliveries = d.publishAsync(ctx, evt, matched)
	}

	d.config.Spans.EndSpanWithError(span, nil)
	return deliveries, nil
}

// publishSync invokes handlers one at a time in registration order.
func (d *Dispatcher) publishSync(ctx context.Context, evt event.Event, subs []*Subscription) []Delivery {
	deliveries := make([]Delivery, len(subs))
	for i, sub := range subs {
		deliveries[i] = d.deliver(ctx, evt, sub)
	}
	return deliveries
}

// publishAsync fans out one goroutine per handler and joins them all.
func (d *Dispatcher) publishAsync(ctx context.Context, evt event.Event, subs []*Subscription) []Delivery {
	deliveries := make([]Delivery, len(subs))

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscription) {
			defer wg.Done()
			deliveries[i] = d.deliver(ctx, evt, sub)
		}(i, sub)
	}
	wg.Wait()

	return deliveries
}

// deliver runs a single handler with its timeout and retry policy.
func (d *Dispatcher) deliver(ctx context.Context, evt event.Event, sub *Subscription) Delivery {
	ctx, span := d.config.Spans.StartDeliverSpan(ctx, sub.ID)
	start := time.Now()

	if sub.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sub.Timeout)
		defer cancel()
	}

	result := errors.WithRetryContext(ctx, sub.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sub.Handler.Handle(ctx, evt)
	})

	duration := time.Since(start)
	d.config.Metrics.RecordDelivery(ctx, evt.Type, sub.ID, duration, result.Err)
	d.config.Spans.EndSpanWithError(span, result.Err)

	if result.Err != nil {
		d.handleFailure(ctx, evt, sub, result.Err)
	} else {
		observability.LogDelivered(d.config.Logger, evt.ID, sub.ID, float64(duration.Milliseconds()))
	}

	return Delivery{
		SubscriptionID: sub.ID,
		Err:            result.Err,
		Duration:       duration,
	}
}

// handleFailure reports a handler failure to all configured sinks.
func (d *Dispatcher) handleFailure(ctx context.Context, evt event.Event, sub *Subscription, err error) {
	observability.LogHandlerError(d.config.Logger, evt.ID, evt.Type, sub.ID, err)

	if d.config.OnError != nil {
		d.config.OnError(evt, sub.ID, err)
	}

	if d.config.DLQ != nil {
		failed := NewFailedDelivery(evt, sub.ID, err)
		if dlqErr := d.config.DLQ.Enqueue(ctx, failed); dlqErr != nil {
			observability.LogHandlerError(d.config.Logger, evt.ID, evt.Type, sub.ID, dlqErr)
		}
	}
}

// Close stops the dispatcher. Subsequent publishes and subscribes
// fail with ErrDispatcherClosed; in-flight publishes complete.
func (d *Dispatcher) Close() error {
	d.closed.Store(true)
	return nil
}
