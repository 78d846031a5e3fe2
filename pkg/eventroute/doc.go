/*
Package eventroute provides in-process event routing with pattern
subscriptions, correlation chains, and durable event storage.

# Overview

eventroute is a Go library for decoupling producers from consumers
inside one process. Producers publish immutable events; consumers
subscribe with glob patterns over event types plus exact-match payload
constraints. A built-in correlator groups events that share a
correlation ID and emits a summary event when a chain completes, so
workflows spanning several independent events become observable as one
unit.

Features:
  - Sync (ordered, sequential) and async (fan-out, join-all) delivery
  - Failure isolation with per-handler timeouts, retries, and a DLQ
  - Correlation enrichment and pluggable chain completion rules
  - Swappable event stores (in-memory, SQLite) for replay and audit
  - OpenTelemetry integration for observability

# Basic Usage

Create an engine, subscribe, and publish:

	func main() {
	    engine, err := eventroute.New()
	    if err != nil {
	        log.Fatal(err)
	    }
	    defer engine.Close()

	    engine.Subscribe(event.Pattern{Type: "build.*"},
	        event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
	            fmt.Println("observed", evt.Type)
	            return nil
	        }))

	    evt, _ := event.New("build.started", "ci", map[string]any{"branch": "main"})
	    engine.Publish(context.Background(), evt)
	}

# Correlation

Events carrying the same correlation ID accumulate into a group. When
the group satisfies the completion rule (by default, two events), the
engine publishes a "correlation.completed" summary referencing every
constituent event. Events published without a correlation ID are
enriched: the engine assigns a fresh ID and republishes the enriched
copy so each event starts a traceable chain.

# Durability

Pass a store to retain every event for replay and audit:

	st, _ := store.NewSQLiteStore("./events.db")
	engine, _ := eventroute.New(eventroute.WithStore(st))

	// Later: the full chain for any correlation ID.
	chain, _ := engine.CorrelationChain(ctx, "corr_ab12cd34ef56")
*/
package eventroute
