package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
)

// FailedDelivery records a handler failure for later inspection or
// replay. The full event is retained so the failure can be
// reprocessed without the original publisher.
type FailedDelivery struct {
	Event          event.Event `json:"event"`
	SubscriptionID string      `json:"subscription_id"`
	ErrorMessage   string      `json:"error_message"`

	AttemptCount  int       `json:"attempt_count"`
	FirstFailedAt time.Time `json:"first_failed_at"`
	LastFailedAt  time.Time `json:"last_failed_at"`
}

// NewFailedDelivery creates a FailedDelivery from a handler error.
func NewFailedDelivery(evt event.Event, subscriptionID string, err error) *FailedDelivery {
	now := time.Now()
	return &FailedDelivery{
		Event:          evt,
		SubscriptionID: subscriptionID,
		ErrorMessage:   err.Error(),
		FirstFailedAt:  now,
		LastFailedAt:   now,
	}
}

// DLQ holds deliveries whose handlers failed after all retries.
type DLQ interface {
	// Enqueue adds a failed delivery.
	Enqueue(ctx context.Context, failed *FailedDelivery) error

	// Dequeue removes and returns up to limit failed deliveries,
	// oldest first.
	Dequeue(ctx context.Context, limit int) ([]*FailedDelivery, error)

	// Size returns the number of queued failures.
	Size() int
}

// MemoryDLQ is an in-memory DLQ. Suitable for testing and
// single-instance deployments.
type MemoryDLQ struct {
	mu      sync.Mutex
	queue   []*FailedDelivery
	maxSize int

	enqueued int64
	dropped  int64
}

// DefaultDLQMaxSize bounds a MemoryDLQ when no size is given.
const DefaultDLQMaxSize = 10000

// NewMemoryDLQ creates an in-memory DLQ holding at most maxSize
// failures. maxSize <= 0 uses DefaultDLQMaxSize.
func NewMemoryDLQ(maxSize int) *MemoryDLQ {
	if maxSize <= 0 {
		maxSize = DefaultDLQMaxSize
	}
	return &MemoryDLQ{maxSize: maxSize}
}

// Enqueue adds a failed delivery. Returns an error when the queue is
// full; the failure is dropped rather than evicting older entries.
func (d *MemoryDLQ) Enqueue(_ context.Context, failed *FailedDelivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) >= d.maxSize {
		d.dropped++
		return fmt.Errorf("dead letter queue full (%d entries)", d.maxSize)
	}

	d.queue = append(d.queue, failed)
	d.enqueued++
	return nil
}

// Dequeue removes and returns up to limit failures, oldest first.
func (d *MemoryDLQ) Dequeue(_ context.Context, limit int) ([]*FailedDelivery, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if limit <= 0 || limit > len(d.queue) {
		limit = len(d.queue)
	}

	out := d.queue[:limit]
	d.queue = append([]*FailedDelivery(nil), d.queue[limit:]...)
	return out, nil
}

// Size returns the number of queued failures.
func (d *MemoryDLQ) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Stats returns lifetime enqueue and drop counts.
func (d *MemoryDLQ) Stats() (enqueued, dropped int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enqueued, d.dropped
}
