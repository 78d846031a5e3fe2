// Package correlate groups related events into correlation chains and
// emits summary events when a chain completes.
package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventroute/pkg/eventroute/dispatch"
	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
	"github.com/randalmurphal/eventroute/pkg/eventroute/observability"
	"github.com/randalmurphal/eventroute/pkg/eventroute/store"
)

const (
	// SummaryEventType marks a synthesized correlation summary.
	SummaryEventType = "correlation.completed"

	// SourceName identifies events emitted by the correlator itself.
	SourceName = "correlator"

	// DefaultGroupTTL bounds how long an incomplete group may sit idle
	// before the expiry sweep reclaims it.
	DefaultGroupTTL = 5 * time.Minute

	// DefaultSweepInterval is how often the expiry sweep runs.
	DefaultSweepInterval = 30 * time.Second
)

// Publisher re-submits events into the routing loop. *dispatch.Dispatcher
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, evt event.Event, mode dispatch.Mode) ([]dispatch.Delivery, error)
}

// Config configures correlator behavior.
type Config struct {
	// Publisher receives enriched copies and summary events. Required.
	Publisher Publisher

	// Store durably records every observed event. Optional; when a
	// store write fails the correlator logs a warning and keeps
	// correlating in memory so routing stays live.
	Store store.Store

	// Rule decides group completion. Default: MinCount(2).
	Rule CompletionRule

	// GroupTTL evicts groups idle longer than this without
	// completing. Zero uses DefaultGroupTTL; negative disables the
	// sweep entirely.
	GroupTTL time.Duration

	// SweepInterval is how often expired groups are evicted.
	// Default: DefaultSweepInterval.
	SweepInterval time.Duration

	// Logger receives correlation logs. Nil disables logging.
	Logger *slog.Logger

	// Metrics records completed correlations.
	// Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder
}

// Correlator observes every event on a dispatcher, assigns correlation
// IDs to events that lack one, and accumulates correlated events into
// groups. When a group satisfies the completion rule the correlator
// publishes a summary event and discards the group.
//
// Correlator implements event.Handler and is attached to a dispatcher
// as a universal wildcard subscription.
type Correlator struct {
	config Config

	mu     sync.RWMutex
	groups map[string]*group

	completedChains int64
	done            chan struct{}
	sweepWG         sync.WaitGroup
	closeOnce       sync.Once
}

// New creates a correlator. Call Attach to wire it to a dispatcher.
func New(cfg Config) *Correlator {
	if cfg.Rule == nil {
		cfg.Rule = MinCount(2)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.GroupTTL == 0 {
		cfg.GroupTTL = DefaultGroupTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	c := &Correlator{
		config: cfg,
		groups: make(map[string]*group),
		done:   make(chan struct{}),
	}

	if cfg.GroupTTL > 0 {
		c.sweepWG.Add(1)
		go c.sweepLoop()
	}

	return c
}

// Attach subscribes the correlator to every event on the dispatcher
// and returns the subscription ID.
func (c *Correlator) Attach(d *dispatch.Dispatcher) (string, error) {
	return d.Subscribe(event.Pattern{Type: event.Wildcard}, c)
}

// Handle implements event.Handler. It enriches uncorrelated events
// with a fresh correlation ID, records correlated ones, and completes
// groups per the configured rule.
func (c *Correlator) Handle(ctx context.Context, evt event.Event) error {
	// Replayed events are observations of history, not new activity.
	if evt.IsReplay {
		c.persist(ctx, evt)
		return nil
	}

	// Our own summaries must not feed back into grouping, or a
	// completed chain would immediately reopen itself.
	if evt.Source == SourceName {
		c.persist(ctx, evt)
		return nil
	}

	// Not persisted yet: the store keeps the first write for an ID, so
	// storing the bare event here would shadow the enriched copy that
	// re-enters the loop with the same ID. The copy persists on
	// re-arrival, putting the chain root in the store with its
	// correlation ID set.
	if !evt.Correlated() {
		return c.enrich(ctx, evt)
	}

	c.persist(ctx, evt)
	c.observe(ctx, evt)
	return nil
}

// persist appends the event to the store, degrading to in-memory-only
// correlation on failure.
func (c *Correlator) persist(ctx context.Context, evt event.Event) {
	if c.config.Store == nil {
		return
	}
	if err := c.config.Store.Append(ctx, evt); err != nil {
		observability.LogStoreDegraded(c.config.Logger, evt.ID, err)
	}
}

// enrich assigns a fresh correlation ID to an uncorrelated event and
// republishes the enriched copy. The copy keeps the event's ID and
// content so downstream consumers see it as the same occurrence, now
// at the start of a traceable chain.
func (c *Correlator) enrich(ctx context.Context, evt event.Event) error {
	enriched := evt.WithCorrelation(newCorrelationID())
	observability.LogEnriched(c.config.Logger, enriched.ID, enriched.CorrelationID)

	if _, err := c.config.Publisher.Publish(ctx, enriched, dispatch.ModeAsync); err != nil {
		return fmt.Errorf("republish enriched event %s: %w", enriched.ID, err)
	}
	return nil
}

// observe adds a correlated event to its group and completes the
// group when the rule fires.
func (c *Correlator) observe(ctx context.Context, evt event.Event) {
	for {
		g := c.getOrCreateGroup(evt.CorrelationID, evt.ID)

		g.mu.Lock()
		if g.completed {
			// Lost a race with completion. Make sure the stale group
			// is unlinked, then retry against a fresh one.
			g.mu.Unlock()
			c.removeGroup(evt.CorrelationID, g)
			continue
		}

		g.add(evt)
		if !c.config.Rule.Complete(g.events) {
			g.mu.Unlock()
			return
		}

		g.completed = true
		events := make([]event.Event, len(g.events))
		copy(events, g.events)
		ids := g.eventIDs()
		root := g.rootEventID
		g.mu.Unlock()

		c.removeGroup(evt.CorrelationID, g)
		c.complete(ctx, evt.CorrelationID, root, ids, events)
		return
	}
}

func (c *Correlator) getOrCreateGroup(correlationID, rootEventID string) *group {
	c.mu.RLock()
	g, ok := c.groups[correlationID]
	c.mu.RUnlock()
	if ok {
		return g
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.groups[correlationID]; ok {
		return g
	}
	g = newGroup(correlationID, rootEventID)
	c.groups[correlationID] = g
	return g
}

// removeGroup deletes the group only if the key still maps to it, so a
// fresh group created for the same key in the meantime survives.
func (c *Correlator) removeGroup(correlationID string, g *group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.groups[correlationID] == g {
		delete(c.groups, correlationID)
	}
}

// complete synthesizes and publishes the summary event for a finished
// group.
func (c *Correlator) complete(ctx context.Context, correlationID, rootEventID string, ids []string, events []event.Event) {
	types := make([]string, len(events))
	firstAt, lastAt := events[0].Timestamp, events[0].Timestamp
	for i, evt := range events {
		types[i] = evt.Type
		if evt.Timestamp.Before(firstAt) {
			firstAt = evt.Timestamp
		}
		if evt.Timestamp.After(lastAt) {
			lastAt = evt.Timestamp
		}
	}

	summary, err := event.New(SummaryEventType, SourceName, map[string]any{
		"event_ids":     ids,
		"root_event_id": rootEventID,
		"event_count":   len(ids),
		"summary":       fmt.Sprintf("correlation %s completed with %d events (%s)", correlationID, len(ids), strings.Join(types, ", ")),
		"first_at":      firstAt.UTC().Format(time.RFC3339Nano),
		"last_at":       lastAt.UTC().Format(time.RFC3339Nano),
	},
		event.WithCorrelationID(correlationID),
		event.WithCausationID(events[len(events)-1].ID),
	)
	if err != nil {
		observability.LogHandlerError(c.config.Logger, "", SummaryEventType, "", err)
		return
	}

	c.mu.Lock()
	c.completedChains++
	c.mu.Unlock()

	observability.LogCorrelationComplete(c.config.Logger, correlationID, len(ids))
	c.config.Metrics.RecordCorrelation(ctx, len(ids))

	if _, err := c.config.Publisher.Publish(ctx, summary, dispatch.ModeAsync); err != nil {
		observability.LogHandlerError(c.config.Logger, summary.ID, summary.Type, "", err)
	}
}

// sweepLoop periodically evicts groups that sat idle past the TTL
// without completing.
func (c *Correlator) sweepLoop() {
	defer c.sweepWG.Done()

	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweepExpired(time.Now())
		}
	}
}

// sweepExpired evicts idle groups. Exposed to tests through Sweep.
func (c *Correlator) sweepExpired(now time.Time) int {
	if c.config.GroupTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-c.config.GroupTTL)

	c.mu.Lock()
	var expired []*group
	for key, g := range c.groups {
		g.mu.Lock()
		idle := g.lastUpdated.Before(cutoff)
		if idle {
			g.completed = true
			expired = append(expired, g)
			delete(c.groups, key)
		}
		g.mu.Unlock()
	}
	c.mu.Unlock()

	for _, g := range expired {
		observability.LogGroupExpired(c.config.Logger, g.correlationID, len(g.events), now.Sub(g.lastUpdated))
	}
	return len(expired)
}

// Sweep evicts all groups idle longer than the TTL and returns how
// many were removed.
func (c *Correlator) Sweep() int {
	return c.sweepExpired(time.Now())
}

// OpenGroups returns the number of groups currently accumulating.
func (c *Correlator) OpenGroups() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.groups)
}

// Stats summarizes correlator state.
type Stats struct {
	// OpenGroups is the number of groups still accumulating.
	OpenGroups int

	// BufferedEvents is the total events held across open groups.
	BufferedEvents int

	// LargestGroup is the size of the biggest open group.
	LargestGroup int

	// CompletedChains counts groups that completed since creation.
	CompletedChains int64
}

// Statistics returns a snapshot of correlator state.
func (c *Correlator) Statistics() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		OpenGroups:      len(c.groups),
		CompletedChains: c.completedChains,
	}
	for _, g := range c.groups {
		g.mu.Lock()
		n := len(g.events)
		g.mu.Unlock()

		s.BufferedEvents += n
		if n > s.LargestGroup {
			s.LargestGroup = n
		}
	}
	return s
}

// CorrelationChain returns every stored event in a correlation chain,
// oldest first. Requires a configured store.
func (c *Correlator) CorrelationChain(ctx context.Context, correlationID string) ([]event.Event, error) {
	if c.config.Store == nil {
		return nil, fmt.Errorf("correlation chain query requires a store")
	}
	return c.config.Store.Query(ctx, store.Query{CorrelationID: correlationID})
}

// CausationChain walks causation links back from the given event and
// returns the chain root-cause first. Requires a configured store.
func (c *Correlator) CausationChain(ctx context.Context, eventID string) ([]event.Event, error) {
	if c.config.Store == nil {
		return nil, fmt.Errorf("causation chain query requires a store")
	}

	var chain []event.Event
	visited := make(map[string]struct{})
	id := eventID

	for id != "" {
		if _, loop := visited[id]; loop {
			break
		}
		visited[id] = struct{}{}

		evt, err := c.config.Store.GetByID(ctx, id)
		if err == store.ErrNotFound {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, evt)
		id = evt.CausationID
	}

	// Reverse so the root cause comes first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Close stops the expiry sweep. Buffered groups are dropped.
func (c *Correlator) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.sweepWG.Wait()
	return nil
}

// newCorrelationID generates a correlation chain identifier.
func newCorrelationID() string {
	return "corr_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
