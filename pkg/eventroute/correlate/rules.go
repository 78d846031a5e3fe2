package correlate

import (
	"time"

	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
)

// CompletionRule decides when a correlation group has seen enough
// events to emit its summary. Implementations must be pure: the
// correlator calls them under the group's lock.
type CompletionRule interface {
	// Complete reports whether the group, with the given events
	// accumulated in observation order, should complete.
	Complete(events []event.Event) bool
}

// CompletionRuleFunc adapts a function to the CompletionRule interface.
type CompletionRuleFunc func(events []event.Event) bool

// Complete implements CompletionRule.
func (f CompletionRuleFunc) Complete(events []event.Event) bool {
	return f(events)
}

// MinCount completes a group once it holds at least n events.
// This is the default rule with n = 2.
func MinCount(n int) CompletionRule {
	return CompletionRuleFunc(func(events []event.Event) bool {
		return len(events) >= n
	})
}

// TypeSet completes a group once every listed event type has been
// observed at least once.
func TypeSet(types ...string) CompletionRule {
	required := make(map[string]struct{}, len(types))
	for _, t := range types {
		required[t] = struct{}{}
	}
	return CompletionRuleFunc(func(events []event.Event) bool {
		seen := make(map[string]struct{}, len(required))
		for _, evt := range events {
			if _, ok := required[evt.Type]; ok {
				seen[evt.Type] = struct{}{}
			}
		}
		return len(seen) == len(required)
	})
}

// Within completes a group once it holds at least n events whose
// timestamps all fall inside a window of the given width.
func Within(n int, window time.Duration) CompletionRule {
	return CompletionRuleFunc(func(events []event.Event) bool {
		if len(events) < n {
			return false
		}
		first, last := events[0].Timestamp, events[0].Timestamp
		for _, evt := range events[1:] {
			if evt.Timestamp.Before(first) {
				first = evt.Timestamp
			}
			if evt.Timestamp.After(last) {
				last = evt.Timestamp
			}
		}
		return last.Sub(first) <= window
	})
}
