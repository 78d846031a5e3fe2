package event

import (
	"fmt"
	"sync"
)

// Schema describes a known event type so producers with typos or
// missing payload fields are caught before dispatch.
type Schema struct {
	// Type is the event type this schema covers, e.g. "build.failure".
	Type string

	// Source is the producer expected to emit this type.
	Source string

	// Description explains the event's purpose.
	Description string

	// Required lists payload keys that must be present.
	Required []string

	// Validator is an optional custom validation function.
	Validator func(Event) error

	// Deprecated marks the type as deprecated; validation still passes
	// but the registry reports it so callers can log a warning.
	Deprecated bool
}

// Validate checks an event against this schema.
func (s *Schema) Validate(evt Event) error {
	if evt.Type != s.Type {
		return fmt.Errorf("event type mismatch: schema %s, event %s", s.Type, evt.Type)
	}
	for _, key := range s.Required {
		if _, ok := evt.Payload[key]; !ok {
			return fmt.Errorf("event %s missing required payload key %q", evt.Type, key)
		}
	}
	if s.Validator != nil {
		if err := s.Validator(evt); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// SchemaRegistry manages event type definitions. Registries are owned
// and injected by the application composing the engine; there is no
// process-wide default.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewSchemaRegistry creates an empty schema registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		schemas: make(map[string]*Schema),
	}
}

// Register adds a schema, replacing any existing schema for the type.
func (r *SchemaRegistry) Register(schema *Schema) error {
	if schema.Type == "" {
		return fmt.Errorf("event type is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.Type] = schema
	return nil
}

// Get returns the schema for an event type.
func (r *SchemaRegistry) Get(eventType string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[eventType]
	return schema, ok
}

// Has reports whether a schema exists for the event type.
func (r *SchemaRegistry) Has(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[eventType]
	return ok
}

// Validate checks an event against its registered schema.
// Unregistered types are rejected: a registry in use means the set of
// event types is closed.
func (r *SchemaRegistry) Validate(evt Event) error {
	r.mu.RLock()
	schema, ok := r.schemas[evt.Type]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.Type)
	}
	return schema.Validate(evt)
}

// Types returns all registered event types.
func (r *SchemaRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	return types
}

// ListBySource returns all schemas registered for a producer.
func (r *SchemaRegistry) ListBySource(source string) []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var schemas []*Schema
	for _, schema := range r.schemas {
		if schema.Source == source {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}
