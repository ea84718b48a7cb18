package agentloop

import (
	"context"
	"testing"
)

type strictTool struct{}

func (strictTool) Name() string        { return "strict" }
func (strictTool) Description() string { return "requires a string message field" }
func (strictTool) ParametersSchema() []byte {
	return []byte(`{
		"type": "object",
		"properties": {"message": {"type": "string"}},
		"required": ["message"]
	}`)
}
func (strictTool) Execute(ctx context.Context, argsJSON string) (ToolResult, error) {
	return ToolResult{Output: argsJSON, Success: true}, nil
}

func TestToolRegistryLookupAndNames(t *testing.T) {
	r := NewToolRegistry()
	r.Register(echoTool{})

	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected missing tool to be absent")
	}
	tool, ok := r.Lookup("echo")
	if !ok || tool.Name() != "echo" {
		t.Fatalf("expected echo tool registered, got %v, %v", tool, ok)
	}
	names := r.Names()
	if len(names) != 1 || names[0] != "echo" {
		t.Fatalf("want [echo], got %v", names)
	}
}

func TestValidateArgumentsEmptySchemaAllowsAnything(t *testing.T) {
	r := NewToolRegistry()
	r.Register(echoTool{})

	if err := r.ValidateArguments("echo", `{"message":"hi"}`); err != nil {
		t.Fatalf("ValidateArguments() error = %v", err)
	}
	if err := r.ValidateArguments("echo", ""); err != nil {
		t.Fatalf("ValidateArguments() with empty args error = %v", err)
	}
}

func TestValidateArgumentsRejectsMissingRequiredField(t *testing.T) {
	r := NewToolRegistry()
	r.Register(strictTool{})

	if err := r.ValidateArguments("strict", `{}`); err == nil {
		t.Fatal("expected schema validation error for missing required field")
	}
	if err := r.ValidateArguments("strict", `{"message":"hi"}`); err != nil {
		t.Fatalf("ValidateArguments() error = %v", err)
	}
}

func TestValidateArgumentsUnregisteredTool(t *testing.T) {
	r := NewToolRegistry()
	if err := r.ValidateArguments("missing", "{}"); err != ErrToolNotRegistered {
		t.Fatalf("want ErrToolNotRegistered, got %v", err)
	}
}
