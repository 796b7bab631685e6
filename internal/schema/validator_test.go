package schema

import (
	"errors"
	"testing"

	"github.com/mcpgo/mcpgo/internal/protocol"
)

func TestCompileRejectsNonFlatSchema(t *testing.T) {
	_, err := Compile([]byte(`{"type":"object","properties":{"addr":{"type":"object"}}}`))
	if err == nil {
		t.Fatal("expected Compile to reject a nested-object schema")
	}
	var shapeErr *FlatShapeError
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected a *FlatShapeError, got %T: %v", err, err)
	}
}

func TestValidateContentAgainstEnum(t *testing.T) {
	v, err := Compile([]byte(`{"type":"object","properties":{"color":{"type":"string","enum":["red","green"]}},"required":["color"]}`))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if err := v.Validate(map[string]any{"color": "red"}); err != nil {
		t.Errorf("Validate(valid enum member) = %v, want nil", err)
	}

	err = v.Validate(map[string]any{"color": "blue"})
	if err == nil {
		t.Fatal("expected Validate to report \"blue\" is not in the enum")
	}
	var mcpErr *protocol.MCPError
	if !errors.As(err, &mcpErr) || mcpErr.Kind != protocol.KindValidationError {
		t.Errorf("expected a KindValidationError, got %v", err)
	}
}

func TestValidateRequired(t *testing.T) {
	schemaRaw := []byte(`{"type":"object","required":["name","count"]}`)

	if err := ValidateRequired(schemaRaw, map[string]any{"name": "x", "count": 1}); err != nil {
		t.Errorf("ValidateRequired() with all params present = %v, want nil", err)
	}

	err := ValidateRequired(schemaRaw, map[string]any{"name": "x"})
	if err == nil {
		t.Fatal("expected ValidateRequired to report the missing \"count\" parameter")
	}
}
