package tools

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
)

func TestSchemaMap(t *testing.T) {
	c := greetCapability()

	m := schemaMap(c.ArgumentSchema())
	if m["type"] != "object" {
		t.Errorf("schema type = %v, want object", m["type"])
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties = %T, want map", m["properties"])
	}
	if _, ok := props["name"]; !ok {
		t.Error("schema map should carry the name property")
	}
}

func TestRegisterAll(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	r := NewRegistry(greetCapability())
	RegisterAll(g, r, nil)

	if tool := genkit.LookupTool(g, "greet"); tool == nil {
		t.Fatal("greet should be registered after RegisterAll")
	}

	refs := Refs(g, r.Known())
	if len(refs) != 1 {
		t.Errorf("Refs() returned %d handles, want 1", len(refs))
	}
}
