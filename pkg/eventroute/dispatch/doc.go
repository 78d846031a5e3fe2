// Package dispatch matches published events against subscriber patterns
// and delivers them.
//
// # Overview
//
//   - Registry holds subscriptions in registration order behind a
//     copy-on-write snapshot, so a publish in flight always sees a
//     consistent view while subscribe/unsubscribe run concurrently.
//   - Dispatcher publishes events in one of two delivery modes: async
//     (concurrent fan-out, join-all) or sync (registration order, each
//     handler completes before the next starts).
//   - Handler outcomes are captured as Delivery values. A failing
//     handler never aborts its siblings and never reaches the
//     publisher; failures are logged, counted, passed to OnError, and
//     recorded in the dead letter queue when one is configured.
//
// # Delivery Modes
//
// Async is the default and the normal mode for decoupled side-effecting
// consumers. Publish fans out one goroutine per matching subscription
// and returns once every handler has finished or failed; no ordering is
// guaranteed across handlers. Sync serializes handlers in registration
// order for consumers that need determinism or share a contended
// resource.
//
// # Failure Handling
//
// Panics are recovered, errors are values. Per-subscription timeouts
// and retry policies harden delivery against slow or flaky handlers:
//
//	d.Subscribe(pattern, handler,
//	    dispatch.WithHandlerTimeout(5*time.Second),
//	    dispatch.WithHandlerRetry(errors.DefaultRetry),
//	)
package dispatch
