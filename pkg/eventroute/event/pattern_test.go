package event_test

import (
	"testing"

	"github.com/randalmurphal/eventroute/pkg/eventroute/event"
)

func TestPatternExactType(t *testing.T) {
	evt := event.MustNew("build.failure", "ci", nil)

	if !(event.Pattern{Type: "build.failure"}).Matches(evt) {
		t.Error("exact type should match")
	}
	if (event.Pattern{Type: "build.success"}).Matches(evt) {
		t.Error("different type should not match")
	}
}

func TestPatternUniversalWildcard(t *testing.T) {
	p := event.Pattern{Type: "*"}

	for _, typ := range []string{"build.failure", "test.passed", "a", "system.alert.critical"} {
		if !p.Matches(event.MustNew(typ, "test", nil)) {
			t.Errorf("universal wildcard should match %q", typ)
		}
	}
}

func TestPatternGlobWildcard(t *testing.T) {
	tests := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"build.*", "build.failure", true},
		{"build.*", "build.success", true},
		{"build.*", "test.failure", false},
		{"*.failure", "build.failure", true},
		{"*.failure", "build.success", false},
		{"build.*.critical", "build.deploy.critical", true},
		{"build.*.critical", "build.deploy.minor", false},
	}

	for _, tt := range tests {
		p := event.Pattern{Type: tt.pattern}
		got := p.Matches(event.MustNew(tt.eventType, "test", nil))
		if got != tt.want {
			t.Errorf("pattern %q vs type %q: got %v, want %v", tt.pattern, tt.eventType, got, tt.want)
		}
	}
}

func TestPatternAttributes(t *testing.T) {
	p := event.Pattern{
		Type:       "build.failure",
		Attributes: map[string]any{"severity": "high"},
	}

	match := event.MustNew("build.failure", "ci", map[string]any{"severity": "high", "branch": "main"})
	if !p.Matches(match) {
		t.Error("matching attribute should match")
	}

	wrongValue := event.MustNew("build.failure", "ci", map[string]any{"severity": "low"})
	if p.Matches(wrongValue) {
		t.Error("wrong attribute value should not match")
	}

	missingKey := event.MustNew("build.failure", "ci", map[string]any{"branch": "main"})
	if p.Matches(missingKey) {
		t.Error("missing attribute key should not match")
	}
}

func TestPatternAllAttributesRequired(t *testing.T) {
	p := event.Pattern{
		Type:       "*",
		Attributes: map[string]any{"severity": "high", "branch": "main"},
	}

	partial := event.MustNew("build.failure", "ci", map[string]any{"severity": "high"})
	if p.Matches(partial) {
		t.Error("failing one constraint must fail the whole match")
	}

	full := event.MustNew("build.failure", "ci", map[string]any{"severity": "high", "branch": "main"})
	if !p.Matches(full) {
		t.Error("all constraints present should match")
	}
}

func TestPatternValidate(t *testing.T) {
	if err := (event.Pattern{Type: "build.*"}).Validate(); err != nil {
		t.Errorf("valid pattern rejected: %v", err)
	}
	if err := (event.Pattern{Type: ""}).Validate(); err == nil {
		t.Error("empty pattern should be rejected")
	}
	if err := (event.Pattern{Type: "build.[failure"}).Validate(); err == nil {
		t.Error("malformed glob should be rejected")
	}
}

func TestPatternString(t *testing.T) {
	p := event.Pattern{Type: "build.*", Attributes: map[string]any{"severity": "high"}}
	if got := p.String(); got != "build.*[severity=high]" {
		t.Errorf("unexpected String: %s", got)
	}
	bare := event.Pattern{Type: "build.failure"}
	if got := bare.String(); got != "build.failure" {
		t.Errorf("unexpected String: %s", got)
	}
}
