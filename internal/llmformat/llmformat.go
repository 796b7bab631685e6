// Package llmformat converts an MCP tool catalog into the function/tool
// schema shape each major LLM provider's API expects, so a caller built
// on this client can hand its aggregated tool list straight to an
// OpenAI, Anthropic, or Google chat completion request.
package llmformat

import (
	"github.com/mcpgo/mcpgo/internal/protocol"
)

// OpenAIFunction is the "function" object inside an OpenAI tool entry.
type OpenAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// OpenAITool is one entry of an OpenAI chat completion request's "tools"
// array.
type OpenAITool struct {
	Type     string         `json:"type"` // always "function"
	Function OpenAIFunction `json:"function"`
}

// ToOpenAITools converts tools to the OpenAI tools array shape.
func ToOpenAITools(tools []protocol.Tool) []OpenAITool {
	out := make([]OpenAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  emptyObjectSchemaIfNil(t.InputSchema),
			},
		})
	}
	return out
}

// AnthropicTool is one entry of an Anthropic Messages API request's
// "tools" array.
type AnthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToAnthropicTools converts tools to the Anthropic tools array shape.
func ToAnthropicTools(tools []protocol.Tool) []AnthropicTool {
	out := make([]AnthropicTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, AnthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: emptyObjectSchemaIfNil(t.InputSchema),
		})
	}
	return out
}

// GoogleFunctionDeclaration is one entry of a Gemini request's
// "function_declarations" array.
type GoogleFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ToGoogleTools converts tools to Gemini's function_declarations shape.
// Google's schema dialect rejects the "$schema" keyword JSON Schema
// documents otherwise carry, so it's stripped recursively from every
// nested schema object before returning.
func ToGoogleTools(tools []protocol.Tool) []GoogleFunctionDeclaration {
	out := make([]GoogleFunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		out = append(out, GoogleFunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  stripSchemaKey(emptyObjectSchemaIfNil(t.InputSchema)),
		})
	}
	return out
}

func emptyObjectSchemaIfNil(schema map[string]any) map[string]any {
	if schema != nil {
		return schema
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// stripSchemaKey removes "$schema" from m and every nested object/array,
// returning a copy so the caller's original tool catalog is untouched.
func stripSchemaKey(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "$schema" {
			continue
		}
		out[k] = stripSchemaValue(v)
	}
	return out
}

func stripSchemaValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return stripSchemaKey(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = stripSchemaValue(item)
		}
		return out
	default:
		return v
	}
}
