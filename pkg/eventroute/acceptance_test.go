package eventroute

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventroute/pkg/eventroute/correlate"
	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
	"github.com/randalmurphal/eventroute/pkg/eventroute/store"
)

// TestAcceptance_Routing exercises the full matching surface through
// the public engine API: exact types, wildcards, and attribute
// filters.
func TestAcceptance_Routing(t *testing.T) {
	engine, err := New(WithoutCorrelation())
	require.NoError(t, err)
	defer engine.Close()

	var mu sync.Mutex
	hits := make(map[string]int)
	record := func(name string) event.Handler {
		return event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
			mu.Lock()
			hits[name]++
			mu.Unlock()
			return nil
		})
	}

	engine.Subscribe(event.Pattern{Type: "build.failure"}, record("exact"))
	engine.Subscribe(event.Pattern{Type: "*"}, record("universal"))
	engine.Subscribe(event.Pattern{Type: "build.*"}, record("prefix"))
	engine.Subscribe(event.Pattern{
		Type:       "*",
		Attributes: map[string]any{"severity": "high"},
	}, record("severe"))

	ctx := context.Background()
	publish := func(eventType string, payload map[string]any) {
		t.Helper()
		_, err := engine.PublishSync(ctx, event.MustNew(eventType, "ci", payload))
		require.NoError(t, err)
	}

	publish("build.failure", map[string]any{"severity": "high"})
	publish("build.success", nil)
	publish("test.failure", map[string]any{"severity": "low"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits["exact"], "exact type matches only its own type")
	assert.Equal(t, 3, hits["universal"], "universal wildcard matches everything")
	assert.Equal(t, 2, hits["prefix"], "build.* matches build.failure and build.success")
	assert.Equal(t, 1, hits["severe"], "attribute filter requires exact payload value")
}

// TestAcceptance_FailureIsolation verifies that a failing handler in
// an async fan-out never prevents siblings from running and never
// reaches the publisher.
func TestAcceptance_FailureIsolation(t *testing.T) {
	engine, err := New(WithoutCorrelation())
	require.NoError(t, err)
	defer engine.Close()

	var mu sync.Mutex
	var ran []string
	ok := func(name string) event.Handler {
		return event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return nil
		})
	}

	engine.Subscribe(event.Pattern{Type: "job"}, ok("first"))
	engine.Subscribe(event.Pattern{Type: "job"}, event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
		return errors.New("second handler always fails")
	}))
	engine.Subscribe(event.Pattern{Type: "job"}, ok("third"))

	_, err = engine.Publish(context.Background(), event.MustNew("job", "test", nil))
	require.NoError(t, err, "publish completes without raising")

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"first", "third"}, ran)
}

// TestAcceptance_SyncOrdering verifies full sequential completion in
// registration order via a shared observation log.
func TestAcceptance_SyncOrdering(t *testing.T) {
	engine, err := New(WithoutCorrelation())
	require.NoError(t, err)
	defer engine.Close()

	var log []string // no mutex: sync mode guarantees no interleaving
	step := func(name string) event.Handler {
		return event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
			log = append(log, name+":start")
			log = append(log, name+":end")
			return nil
		})
	}

	engine.Subscribe(event.Pattern{Type: "step"}, step("A"))
	engine.Subscribe(event.Pattern{Type: "step"}, step("B"))
	engine.Subscribe(event.Pattern{Type: "step"}, step("C"))

	_, err = engine.PublishSync(context.Background(), event.MustNew("step", "test", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"A:start", "A:end",
		"B:start", "B:end",
		"C:start", "C:end",
	}, log)
}

// TestAcceptance_CorrelationEnrichment verifies that an uncorrelated
// event is republished with a fresh, non-empty correlation ID.
func TestAcceptance_CorrelationEnrichment(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	var mu sync.Mutex
	var enriched []event.Event
	engine.Subscribe(event.Pattern{Type: "file.save"},
		event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
			if evt.Correlated() {
				mu.Lock()
				enriched = append(enriched, evt)
				mu.Unlock()
			}
			return nil
		}))

	original := event.MustNew("file.save", "editor", map[string]any{"path": "a.go"})
	_, err = engine.Publish(context.Background(), original)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, enriched, 1)
	assert.Equal(t, original.ID, enriched[0].ID)
	assert.NotEmpty(t, enriched[0].CorrelationID)
}

// TestAcceptance_CorrelationCompletion verifies the threshold-2
// default: two events sharing a correlation ID produce exactly one
// summary referencing both, and the group restarts cleanly.
func TestAcceptance_CorrelationCompletion(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)
	defer engine.Close()

	var mu sync.Mutex
	var summaries []event.Event
	engine.Subscribe(event.Pattern{Type: correlate.SummaryEventType},
		event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
			mu.Lock()
			summaries = append(summaries, evt)
			mu.Unlock()
			return nil
		}))

	ctx := context.Background()
	first := event.MustNew("a", "svc", nil, event.WithCorrelationID("X"))
	second := event.MustNew("b", "svc", nil, event.WithCorrelationID("X"))

	_, err = engine.PublishSync(ctx, first)
	require.NoError(t, err)
	_, err = engine.PublishSync(ctx, second)
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, summaries, 1)
	summary := summaries[0]
	mu.Unlock()

	assert.Equal(t, "X", summary.CorrelationID)
	ids, ok := summary.Payload["event_ids"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{first.ID, second.ID}, ids)

	// The group for X was discarded; a third event starts fresh.
	assert.Equal(t, 0, engine.Correlator().OpenGroups())
	_, err = engine.PublishSync(ctx, event.MustNew("c", "svc", nil, event.WithCorrelationID("X")))
	require.NoError(t, err)
	assert.Equal(t, 1, engine.Correlator().OpenGroups())

	mu.Lock()
	assert.Len(t, summaries, 1, "no second summary from the fresh group's single event")
	mu.Unlock()
}

// TestAcceptance_StoreRoundTrip verifies store persistence and
// field-equality queries through the engine.
func TestAcceptance_StoreRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	engine, err := New(WithStore(st), WithCompletionRule(correlate.MinCount(100)))
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	failure := event.MustNew("build.failure", "ci",
		map[string]any{"branch": "main"}, event.WithCorrelationID("run-1"))
	success := event.MustNew("build.success", "ci", nil, event.WithCorrelationID("run-1"))

	_, err = engine.PublishSync(ctx, failure)
	require.NoError(t, err)
	_, err = engine.PublishSync(ctx, success)
	require.NoError(t, err)

	got, err := st.GetByID(ctx, failure.ID)
	require.NoError(t, err)
	assert.Equal(t, failure.ID, got.ID)
	assert.Equal(t, failure.Type, got.Type)
	assert.Equal(t, failure.Source, got.Source)
	assert.Equal(t, failure.CorrelationID, got.CorrelationID)
	assert.Equal(t, failure.Payload, got.Payload)

	byType, err := st.Query(ctx, store.Query{Type: "build.failure"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, failure.ID, byType[0].ID)
}
