package store

import (
	"context"
	"sync"

	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
)

// MemoryStore is an in-memory event store for testing and
// single-process use. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]event.Event
	order  []string // event IDs in append order
	closed bool
}

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]event.Event),
	}
}

// Append implements Store. Duplicate IDs are silently ignored.
func (m *MemoryStore) Append(_ context.Context, evt event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if _, exists := m.byID[evt.ID]; exists {
		return nil
	}

	m.byID[evt.ID] = evt
	m.order = append(m.order, evt.ID)
	return nil
}

// GetByID implements Store.
func (m *MemoryStore) GetByID(_ context.Context, id string) (event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return event.Event{}, ErrStoreClosed
	}

	evt, ok := m.byID[id]
	if !ok {
		return event.Event{}, ErrNotFound
	}
	return evt, nil
}

// Query implements Store. Results come back in append order.
func (m *MemoryStore) Query(_ context.Context, q Query) ([]event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]event.Event, 0)
	for _, id := range m.order {
		evt := m.byID[id]
		if !q.Matches(evt) {
			continue
		}
		out = append(out, evt)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored events.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
