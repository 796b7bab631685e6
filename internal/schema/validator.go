package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mcpgo/mcpgo/internal/protocol"
)

// Validator compiles one elicitation schema and validates candidate
// content against it. The generic type/enum/format/bounds checking is
// delegated to santhosh-tekuri/jsonschema/v5; ValidateFlatShape runs
// first and rejects anything the library would otherwise happily accept
// but MCP's restricted elicitation form forbids.
type Validator struct {
	compiled *jsonschema.Schema
	raw      json.RawMessage
}

// Compile validates the flat-object shape restriction and compiles raw
// with the jsonschema library. The returned Validator is safe for
// concurrent use across goroutines.
func Compile(raw json.RawMessage) (*Validator, error) {
	if err := ValidateFlatShape(raw); err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	const resourceName = "elicitation.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, protocol.NewValidationError("elicitation schema: %v", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, protocol.NewValidationError("elicitation schema: %v", err)
	}
	return &Validator{compiled: compiled, raw: raw}, nil
}

// Validate checks content against the compiled schema. Callers treat a
// non-nil error as non-fatal: log it as a warning and still forward the
// user's answer rather than rejecting it outright, since the host UI —
// not this client — is responsible for enforcing the form.
func (v *Validator) Validate(content map[string]any) error {
	if err := v.compiled.Validate(content); err != nil {
		return protocol.NewValidationError("elicitation content failed schema validation: %v", err)
	}
	return nil
}

// RawSchema returns the compiled schema's original JSON, e.g. so a host
// UI can render the form the schema describes.
func (v *Validator) RawSchema() json.RawMessage { return v.raw }

// ValidateRequired checks call_tool arguments against a tool's
// inputSchema. Unlike elicitation schemas,
// tool input schemas are NOT restricted to the flat shape — this path
// skips ValidateFlatShape and only enforces the "required" array absence
// check the facade needs before ever reaching the wire, so a typo'd
// parameter name fails fast with a clear message instead of a server
// round trip.
func ValidateRequired(schemaRaw json.RawMessage, provided map[string]any) error {
	if len(schemaRaw) == 0 {
		return nil
	}
	var doc struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaRaw, &doc); err != nil {
		return nil
	}
	var missing []string
	for _, name := range doc.Required {
		if _, ok := provided[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return protocol.NewValidationError("missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
