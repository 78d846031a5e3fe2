package event

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Wildcard matches every event type.
const Wildcard = "*"

// Pattern selects events by type and payload attributes.
//
// Type is an exact event type, the universal wildcard "*", or a glob
// where each "*" matches zero or more characters ("build.*" matches
// "build.failure" and "build.success" but not "test.failure").
//
// Attributes lists required payload key/value constraints. Every
// constraint must hold for the pattern to match; values are compared
// for exact equality, there is no partial or range matching.
type Pattern struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Validate checks the pattern at subscription time so malformed
// patterns fail fast rather than silently swallowing events at publish
// time.
func (p Pattern) Validate() error {
	if p.Type == "" {
		return fmt.Errorf("pattern type cannot be empty")
	}
	if !doublestar.ValidatePattern(p.Type) {
		return fmt.Errorf("malformed type pattern %q", p.Type)
	}
	return nil
}

// Matches reports whether the event satisfies the pattern. It is a
// pure function and safe to call from concurrent dispatch paths.
func (p Pattern) Matches(evt Event) bool {
	if !p.matchesType(evt.Type) {
		return false
	}
	return p.matchesAttributes(evt.Payload)
}

func (p Pattern) matchesType(eventType string) bool {
	if p.Type == eventType || p.Type == Wildcard {
		return true
	}
	if !strings.Contains(p.Type, "*") {
		return false
	}
	// Event types never contain path separators, so glob "*" spans the
	// whole remainder of the type string.
	ok, err := doublestar.Match(p.Type, eventType)
	if err != nil {
		// Unreachable for patterns accepted by Validate.
		return false
	}
	return ok
}

func (p Pattern) matchesAttributes(payload map[string]any) bool {
	if len(p.Attributes) == 0 {
		return true
	}
	for key, want := range p.Attributes {
		got, ok := payload[key]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// String renders the pattern for logs, e.g. `build.*[severity=high]`.
func (p Pattern) String() string {
	if len(p.Attributes) == 0 {
		return p.Type
	}
	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(p.Type)
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, p.Attributes[k])
	}
	b.WriteByte(']')
	return b.String()
}
