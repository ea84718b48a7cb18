package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolResult is what a Tool's Execute returns on success.
type ToolResult struct {
	Output  string
	Success bool
}

// Tool is the external tool contract of SPEC_FULL.md §6.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() []byte // JSON schema
	Execute(ctx context.Context, argumentsJSON string) (ToolResult, error)
}

// ToolRegistry is an exact-name lookup table for registered tools,
// grounded on the teacher's internal/agent/tool_registry.go.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool, overwriting any existing registration under the same name.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Lookup returns the tool registered under name, if any.
func (r *ToolRegistry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// schemaCache memoizes compiled JSON schemas by their raw schema bytes,
// grounded on the teacher's pkg/pluginsdk.compileSchema.
var schemaCache sync.Map

func compileToolSchema(schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateArguments checks argumentsJSON against the named tool's
// ParametersSchema before the loop executes the call. A tool with an
// empty schema accepts any arguments.
func (r *ToolRegistry) ValidateArguments(name, argumentsJSON string) error {
	tool, ok := r.Lookup(name)
	if !ok {
		return ErrToolNotRegistered
	}
	schemaBytes := tool.ParametersSchema()
	if len(schemaBytes) == 0 {
		return nil
	}
	schema, err := compileToolSchema(schemaBytes)
	if err != nil {
		return fmt.Errorf("compile schema for tool %q: %w", name, err)
	}
	var decoded any
	if argumentsJSON == "" {
		argumentsJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &decoded); err != nil {
		return fmt.Errorf("decode arguments for tool %q: %w", name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("arguments for tool %q: %w", name, err)
	}
	return nil
}

// Names returns every registered tool name.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// ErrToolNotRegistered is returned as is (not wrapped) when a tool call
// names an unregistered tool.
var ErrToolNotRegistered = fmt.Errorf("tool is not registered")
