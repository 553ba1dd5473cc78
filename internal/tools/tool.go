// Package tools provides the callable capabilities the model may invoke
// mid-generation, and the registry that tracks which of them are enabled.
//
// # Design Principles
//
//   - Capabilities are data (name, description, schema, closure), not a class
//     hierarchy. Dispatch is by name through the registry.
//   - Dependency Injection: capability state (clock, memory store) is captured
//     via closures at construction.
//   - No package-level state: the known set lives in a Registry instance.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Capability is a named, described, schema-typed callable unit.
// It encapsulates metadata and execution logic with type erasure to allow
// heterogeneous storage while keeping compile-time type safety at the
// construction site.
//
// Capabilities are stateless with respect to the orchestration layer; any
// internal state (for example stored memories) is the capability's own
// responsibility and outlives any single generation session.
type Capability struct {
	name        string
	description string
	schema      *jsonschema.Schema

	// handler is the type-erased invocation function. It receives the
	// backend-supplied arguments as raw JSON.
	handler func(ctx context.Context, args json.RawMessage) (string, error)
}

// Name returns the capability's unique identifier within a registry.
func (c *Capability) Name() string {
	return c.name
}

// Description returns the capability's functionality description.
// It is included verbatim in the session preamble so the model knows
// what it can call.
func (c *Capability) Description() string {
	return c.description
}

// ArgumentSchema returns the JSON schema of the capability's typed arguments.
func (c *Capability) ArgumentSchema() *jsonschema.Schema {
	return c.schema
}

// Invoke runs the capability with raw JSON arguments.
func (c *Capability) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	return c.handler(ctx, args)
}

// Call runs the capability with arguments of any JSON-compatible shape
// (the backend passes map[string]any).
func (c *Capability) Call(ctx context.Context, args any) (string, error) {
	if args == nil {
		return c.handler(ctx, nil)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshaling arguments for %s: %w", c.name, err)
	}
	return c.handler(ctx, raw)
}

// New creates a capability with type-safe argument handling.
//
// Type safety is guaranteed at compile time via the In type parameter; the
// argument schema is derived from In by reflection. Type erasure is performed
// internally to allow heterogeneous capability storage.
//
// Example:
//
//	weather := tools.New("getWeather", "Get current weather for a city.",
//	    func(ctx context.Context, input WeatherInput) (string, error) {
//	        return lookup(input.City), nil
//	    },
//	)
func New[In any](name, description string, handler func(context.Context, In) (string, error)) *Capability {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	var zero In
	schema := reflector.Reflect(zero)

	erased := func(ctx context.Context, args json.RawMessage) (string, error) {
		var input In
		if len(args) > 0 {
			if err := json.Unmarshal(args, &input); err != nil {
				return "", fmt.Errorf("invalid arguments for %s: expected %T: %w", name, zero, err)
			}
		}
		return handler(ctx, input)
	}

	return &Capability{
		name:        name,
		description: description,
		schema:      schema,
		handler:     erased,
	}
}
