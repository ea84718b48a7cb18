package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// ResourceHandler is the capability set a resource-type plugin must
// implement (SPEC_FULL.md §4.7: start, stop, kill, extract_state,
// apply_state, probe_health, list_fallbacks). Handlers are the only
// component that speak to the concrete resource implementation.
type ResourceHandler interface {
	Start(ctx context.Context, inst fabric.ResourceInstance) error
	Stop(ctx context.Context, inst fabric.ResourceInstance) error
	Kill(ctx context.Context, inst fabric.ResourceInstance) error
	ExtractState(ctx context.Context, inst fabric.ResourceInstance) (fabric.PreservedState, error)
	ApplyState(ctx context.Context, inst fabric.ResourceInstance, state fabric.PreservedState) error
	ProbeHealth(ctx context.Context, inst fabric.ResourceInstance) error
	ListFallbacks(ctx context.Context, inst fabric.ResourceInstance) ([]fabric.ResourceType, error)
}

// PluginRegistry holds per-resource-type handlers.
type PluginRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ResourceHandler
}

// NewPluginRegistry constructs an empty PluginRegistry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{handlers: make(map[string]ResourceHandler)}
}

// Register installs the handler for a resource type, overwriting any
// previous registration.
func (p *PluginRegistry) Register(t fabric.ResourceType, h ResourceHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[t.String()] = h
}

// HandlerFor returns the registered handler for a resource type.
func (p *PluginRegistry) HandlerFor(t fabric.ResourceType) (ResourceHandler, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[t.String()]
	if !ok {
		return nil, fmt.Errorf("lifecycle: no handler registered for resource type %q", t.String())
	}
	return h, nil
}
