// Package schema validates elicitation request schemas and the user
// content offered back against them. MCP restricts elicitation schemas to
// a single flat JSON object — no nested objects, no $ref, arrays only as
// a multi-select of enum/const primitives — so hosts can render a form
// without understanding arbitrary JSON Schema. ValidateFlatShape enforces
// that restriction before the schema is handed to the generic validator;
// Validator (validator.go) does the generic type/enum/bounds checking on top
// via santhosh-tekuri/jsonschema/v5.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/mcpgo/mcpgo/internal/protocol"
)

// FlatShapeError reports a schema shape elicitation forbids.
type FlatShapeError struct {
	Field  string
	Reason string
}

func (e *FlatShapeError) Error() string {
	return fmt.Sprintf("elicitation schema field %q: %s", e.Field, e.Reason)
}

// ValidateFlatShape enforces MCP's restricted elicitation schema: a
// single flat JSON object whose properties are primitives, or arrays of
// primitives restricted to an enum/const/anyOf-of-consts. Nested objects,
// arrays of objects, and $ref are rejected before the schema ever reaches
// the generic validator.
func ValidateFlatShape(raw json.RawMessage) error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return protocol.NewValidationError("elicitation schema is not valid JSON: %v", err)
	}
	if t, _ := doc["type"].(string); t != "object" {
		return &FlatShapeError{Field: "$", Reason: `top-level schema must have "type": "object"`}
	}
	if _, hasRef := doc["$ref"]; hasRef {
		return &FlatShapeError{Field: "$", Reason: "$ref is not allowed at the top level"}
	}

	props, _ := doc["properties"].(map[string]any)
	for name, v := range props {
		prop, ok := v.(map[string]any)
		if !ok {
			return &FlatShapeError{Field: name, Reason: "property schema must be a JSON object"}
		}
		if err := validateProperty(name, prop); err != nil {
			return err
		}
	}
	return nil
}

func validateProperty(name string, prop map[string]any) error {
	if _, hasRef := prop["$ref"]; hasRef {
		return &FlatShapeError{Field: name, Reason: "$ref is not allowed in a flat elicitation schema"}
	}

	t, hasType := prop["type"].(string)
	_, hasEnum := prop["enum"]
	_, hasConst := prop["const"]

	switch {
	case t == "object":
		return &FlatShapeError{Field: name, Reason: "nested objects are not allowed"}
	case t == "array":
		return validateArrayProperty(name, prop)
	case t == "string", t == "number", t == "integer", t == "boolean":
		return nil
	case !hasType && (hasEnum || hasConst):
		return nil
	default:
		return &FlatShapeError{Field: name, Reason: fmt.Sprintf("unsupported property type %q", t)}
	}
}

func validateArrayProperty(name string, prop map[string]any) error {
	items, ok := prop["items"].(map[string]any)
	if !ok {
		return &FlatShapeError{Field: name, Reason: "array properties must declare items"}
	}
	if itemType, _ := items["type"].(string); itemType == "object" {
		return &FlatShapeError{Field: name, Reason: "arrays of objects are not allowed"}
	}

	_, hasEnum := items["enum"]
	_, hasConst := items["const"]
	anyOf, hasAnyOf := items["anyOf"].([]any)

	if !hasEnum && !hasConst && !hasAnyOf {
		return &FlatShapeError{Field: name, Reason: "array items must be restricted to an enum, const, or anyOf of consts"}
	}
	if hasAnyOf {
		for _, alt := range anyOf {
			altMap, ok := alt.(map[string]any)
			if !ok {
				return &FlatShapeError{Field: name, Reason: "anyOf entries must be JSON objects"}
			}
			if _, ok := altMap["const"]; !ok {
				return &FlatShapeError{Field: name, Reason: "anyOf entries must each be a const (multi-select)"}
			}
		}
	}
	return nil
}
