package tools

import (
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/invopop/jsonschema"

	"github.com/Maaaxiii/toolchat/internal/log"
)

// RegisterAll defines every known capability of the registry as a Genkit tool.
// Registration happens once at startup; sessions later resolve the subset
// they bind via Refs.
//
// Invocation failures never propagate as hard failures to the generation
/// loop: the error is logged and converted into textual tool output so the
// model can recover in its reply.
func RegisterAll(g *genkit.Genkit, r *Registry, logger log.Logger) {
	if logger == nil {
		logger = log.NewNop()
	}

	for _, c := range r.Known() {
		genkit.DefineToolWithInputSchema(g, c.Name(), c.Description(), schemaMap(c.ArgumentSchema()),
			func(tctx *ai.ToolContext, input any) (string, error) {
				out, err := c.Call(tctx.Context, input)
				if err != nil {
					logger.Warn("tool invocation failed",
						"tool", c.Name(),
						"error", err)
					return fmt.Sprintf("The %s tool failed: %v", c.Name(), err), nil
				}
				return out, nil
			})
		logger.Debug("registered tool", "name", c.Name())
	}
}

// schemaMap flattens a reflected JSON schema into the plain map form that
// Genkit expects for tool input schemas.
func schemaMap(s *jsonschema.Schema) map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Refs resolves the Genkit tool handles for the given capabilities.
// Capabilities that were never registered are skipped.
func Refs(g *genkit.Genkit, caps []*Capability) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(caps))
	for _, c := range caps {
		if tool := genkit.LookupTool(g, c.Name()); tool != nil {
			refs = append(refs, tool)
		}
	}
	return refs
}
