package dispatch

import (
	"sync"
	"time"

	"github.com/randalmurphal/eventroute/pkg/eventroute/errors"
	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
)

// Subscription is one standing registration of a handler against a
// pattern. The dispatcher owns subscriptions; callers refer to them by
// ID.
type Subscription struct {
	// ID uniquely identifies the subscription for removal.
	ID string

	// Pattern selects the events this subscription receives.
	Pattern event.Pattern

	// Handler processes delivered events.
	Handler event.Handler

	// Timeout bounds a single handler invocation. Zero means no limit.
	Timeout time.Duration

	// Retry governs reattempts for transient handler failures.
	Retry errors.RetryConfig

	// CreatedAt records registration time.
	CreatedAt time.Time
}

// Registry is the ordered collection of active subscriptions. Writes
// (subscribe/unsubscribe) and reads (every publish) are synchronized;
// Snapshot hands each publish a consistent copy so concurrent mutation
// never corrupts iteration.
type Registry struct {
	mu   sync.RWMutex
	subs []*Subscription
	byID map[string]int // subscription ID -> index in subs
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]int),
	}
}

// Add registers a subscription, preserving registration order.
func (r *Registry) Add(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[sub.ID] = len(r.subs)
	r.subs = append(r.subs, sub)
}

// Remove deletes a subscription by ID. Removing an unknown ID is a
// no-op, not an error.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return
	}

	r.subs = append(r.subs[:idx:idx], r.subs[idx+1:]...)
	delete(r.byID, id)
	for i := idx; i < len(r.subs); i++ {
		r.byID[r.subs[i].ID] = i
	}
}

// Get returns a subscription by ID.
func (r *Registry) Get(id string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.subs[idx], true
}

// Snapshot returns a copy of the current subscriptions in registration
// order. Subscriptions added after the snapshot is taken do not receive
// the publish that took it.
func (r *Registry) Snapshot() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Subscription, len(r.subs))
	copy(out, r.subs)
	return out
}

// Matching returns the subscriptions whose patterns match the event,
// in registration order.
func (r *Registry) Matching(evt event.Event) []*Subscription {
	snapshot := r.Snapshot()

	matched := make([]*Subscription, 0, len(snapshot))
	for _, sub := range snapshot {
		if sub.Pattern.Matches(evt) {
			matched = append(matched, sub)
		}
	}
	return matched
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
