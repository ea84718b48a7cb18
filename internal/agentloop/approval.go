package agentloop

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/agentfabric/agentd/internal/eventbus"
)

// ApprovalNeeded is published on the event bus when a tool call requires
// user authorization (SPEC_FULL.md §4.2).
type ApprovalNeeded struct {
	ActionID string
	ToolName string
	Args     string
}

// ApprovalResponse is published on the event bus to resolve a pending
// ApprovalNeeded by action id.
type ApprovalResponse struct {
	ActionID string
	Approved bool
}

// ApprovalGate rendezvouses ApprovalNeeded publications with their matching
// ApprovalResponse by action id. Per SPEC_FULL.md §9 design notes, this is
// a request/response pair keyed by id, not a shared mutable slot: each
// pending wait owns its own channel, registered under a map guarded by a
// mutex, so concurrent approvals for distinct actions never interfere.
type ApprovalGate struct {
	bus *eventbus.Bus

	mu      sync.Mutex
	pending map[string]chan bool
}

// NewApprovalGate subscribes to the bus for ApprovalResponse events.
func NewApprovalGate(bus *eventbus.Bus) *ApprovalGate {
	g := &ApprovalGate{bus: bus, pending: make(map[string]chan bool)}
	sub := bus.Subscribe()
	go func() {
		for e := range sub.Events {
			resp, ok := e.Data.(ApprovalResponse)
			if !ok {
				continue
			}
			g.resolve(resp.ActionID, resp.Approved)
		}
	}()
	return g
}

func (g *ApprovalGate) resolve(actionID string, approved bool) {
	g.mu.Lock()
	ch, ok := g.pending[actionID]
	if ok {
		delete(g.pending, actionID)
	}
	g.mu.Unlock()
	if ok {
		ch <- approved
		close(ch)
	}
}

// Request publishes ApprovalNeeded for toolName/args and blocks until a
// matching ApprovalResponse arrives or timeout elapses. Returns approved,
// timedOut.
func (g *ApprovalGate) Request(ctx context.Context, toolName, args string, timeout time.Duration) (approved bool, timedOut bool) {
	actionID := uuid.NewString()
	ch := make(chan bool, 1)
	g.mu.Lock()
	g.pending[actionID] = ch
	g.mu.Unlock()

	g.bus.Publish(eventbus.Event{Type: "ApprovalNeeded", Data: ApprovalNeeded{ActionID: actionID, ToolName: toolName, Args: args}})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case approved = <-ch:
		return approved, false
	case <-timer.C:
		g.mu.Lock()
		delete(g.pending, actionID)
		g.mu.Unlock()
		return false, true
	case <-ctx.Done():
		g.mu.Lock()
		delete(g.pending, actionID)
		g.mu.Unlock()
		return false, true
	}
}
