package correlate

import (
	"sync"
	"time"

	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
)

// group accumulates the events observed for one correlation ID until
// the completion rule fires. A completed group is never reused: a
// later event with the same correlation ID starts a fresh group.
type group struct {
	mu sync.Mutex

	correlationID string
	rootEventID   string
	events        []event.Event
	seen          map[string]struct{} // event IDs already in the group

	createdAt   time.Time
	lastUpdated time.Time
	completed   bool
}

func newGroup(correlationID, rootEventID string) *group {
	now := time.Now()
	return &group{
		correlationID: correlationID,
		rootEventID:   rootEventID,
		seen:          make(map[string]struct{}),
		createdAt:     now,
		lastUpdated:   now,
	}
}

// add appends the event unless its ID is already present. Caller holds
// g.mu.
func (g *group) add(evt event.Event) {
	if _, dup := g.seen[evt.ID]; dup {
		return
	}
	g.seen[evt.ID] = struct{}{}
	g.events = append(g.events, evt)
	g.lastUpdated = time.Now()
}

// eventIDs returns the IDs of accumulated events in observation order.
// Caller holds g.mu.
func (g *group) eventIDs() []string {
	ids := make([]string, len(g.events))
	for i, evt := range g.events {
		ids[i] = evt.ID
	}
	return ids
}
