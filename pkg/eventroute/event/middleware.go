package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Middleware wraps handlers to add cross-cutting concerns.
type Middleware func(next Handler) Handler

// Chain applies middleware in order, with the first middleware outermost.
func Chain(handler Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// Recovery converts handler panics into errors so one panicking
// subscriber cannot take down the dispatch loop.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, evt Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = NewError(evt, fmt.Sprintf("handler panic: %v", r), nil)
				}
			}()
			return next.Handle(ctx, evt)
		})
	}
}

// Logging logs every handled event with its outcome and duration.
// A nil logger disables the middleware.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		if logger == nil {
			return next
		}
		return HandlerFunc(func(ctx context.Context, evt Event) error {
			start := time.Now()
			err := next.Handle(ctx, evt)
			if err != nil {
				logger.Warn("handler failed",
					slog.String("event_id", evt.ID),
					slog.String("event_type", evt.Type),
					slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
					slog.String("error", err.Error()),
				)
			} else {
				logger.Debug("handler completed",
					slog.String("event_id", evt.ID),
					slog.String("event_type", evt.Type),
					slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
				)
			}
			return err
		})
	}
}

// SkipReplays short-circuits replayed events before they reach a
// side-effecting handler. Subscribers whose effects must not re-run on
// history replay wrap themselves with this.
func SkipReplays() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, evt Event) error {
			if evt.IsReplay {
				return nil
			}
			return next.Handle(ctx, evt)
		})
	}
}
