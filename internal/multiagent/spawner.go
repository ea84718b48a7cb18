// Package multiagent implements the Subagent Spawner and Orchestrator of
// SPEC_FULL.md §4.3, grounded on the teacher's internal/multiagent package
// (haasonsaas/nexus orchestrator.go's registry-of-runtimes pattern and
// event-callback style), generalized from its peer-handoff supervisor
// model to the spec's bounded-parallelism fan-out with quorum/first/all
// modes.
package multiagent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/agentfabric/agentd/internal/eventbus"
	"github.com/agentfabric/agentd/pkg/fabric"
)

// ThinkingLevel selects the temperature/token-cap pair for a spawned lane.
type ThinkingLevel string

const (
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
	ThinkingXhigh  ThinkingLevel = "xhigh"
)

// ThinkingParams is the (temperature, max_tokens) pair for a ThinkingLevel.
type ThinkingParams struct {
	Temperature float64
	MaxTokens   int
}

var thinkingTable = map[ThinkingLevel]ThinkingParams{
	ThinkingLow:    {Temperature: 0.3, MaxTokens: 2048},
	ThinkingMedium: {Temperature: 0.7, MaxTokens: 4096},
	ThinkingHigh:   {Temperature: 0.5, MaxTokens: 8192},
	ThinkingXhigh:  {Temperature: 0.3, MaxTokens: 16384},
}

// ParamsFor returns the temperature/token-cap pair for level, defaulting to Medium.
func ParamsFor(level ThinkingLevel) ThinkingParams {
	if p, ok := thinkingTable[level]; ok {
		return p
	}
	return thinkingTable[ThinkingMedium]
}

// ErrSpawnDepthExceeded is returned when a spawn would exceed max_spawn_depth.
var ErrSpawnDepthExceeded = fmt.Errorf("multiagent: max spawn depth exceeded")

// AgentTurnRunner runs one Agent Loop turn for a subagent task. It is the
// seam between this package and internal/agentloop, kept narrow so the
// spawner has no compile-time dependency on the loop's provider/tool wiring.
type AgentTurnRunner func(ctx context.Context, sessionKey fabric.SessionKey, prompt string, params ThinkingParams) (response string, err error)

// SubagentResult is the spec.md §4.3 completion record.
type SubagentResult struct {
	LaneID      string
	SessionKey  fabric.SessionKey
	TaskID      string
	Response    string
	Success     bool
	Error       string
	SpawnDepth  int
	StartedAt   time.Time
	CompletedAt time.Time
}

// laneEntry tracks one active subagent invocation.
type laneEntry struct {
	laneID     string
	sessionKey fabric.SessionKey
	depth      int
	cancel     context.CancelFunc
}

// Spawner allocates lanes and runs subagent turns.
type Spawner struct {
	mu            sync.Mutex
	active        map[string]*laneEntry
	maxSpawnDepth int
	runner        AgentTurnRunner
	bus           *eventbus.Bus
}

// NewSpawner constructs a Spawner. maxSpawnDepth<=0 uses the spec default of 5.
func NewSpawner(runner AgentTurnRunner, bus *eventbus.Bus, maxSpawnDepth int) *Spawner {
	if maxSpawnDepth <= 0 {
		maxSpawnDepth = 5
	}
	return &Spawner{active: make(map[string]*laneEntry), maxSpawnDepth: maxSpawnDepth, runner: runner, bus: bus}
}

// Spawn allocates a lane under parentAgent at parentDepth+1, rejects spawns
// exceeding max_spawn_depth, runs one turn against prompt, then unregisters
// the lane and emits a SubagentResult (SPEC_FULL.md §4.3).
func (s *Spawner) Spawn(ctx context.Context, parentAgent string, parentDepth int, taskID, prompt string, level ThinkingLevel) (SubagentResult, error) {
	depth := parentDepth + 1
	if depth > s.maxSpawnDepth {
		return SubagentResult{}, fmt.Errorf("%w: depth %d exceeds max %d", ErrSpawnDepthExceeded, depth, s.maxSpawnDepth)
	}

	laneID := "lane-" + uuid.NewString()
	sessionKey := fabric.SessionKey{Agent: "agent", Scope: parentAgent, Channel: "subagent", Peer: laneID}

	lctx, cancel := context.WithCancel(ctx)
	entry := &laneEntry{laneID: laneID, sessionKey: sessionKey, depth: depth, cancel: cancel}

	s.mu.Lock()
	s.active[laneID] = entry
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, laneID)
		s.mu.Unlock()
	}()

	params := ParamsFor(level)
	started := time.Now()
	response, err := s.runner(lctx, sessionKey, prompt, params)
	completed := time.Now()

	result := SubagentResult{
		LaneID:      laneID,
		SessionKey:  sessionKey,
		TaskID:      taskID,
		Response:    response,
		Success:     err == nil,
		SpawnDepth:  depth,
		StartedAt:   started,
		CompletedAt: completed,
	}
	if err != nil {
		result.Error = err.Error()
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "SubagentResult", Data: result})
	}
	return result, nil
}

// Cancel cancels an active lane's context, if still running.
func (s *Spawner) Cancel(laneID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.active[laneID]; ok {
		e.cancel()
	}
}

// ActiveLanes returns the lane ids currently registered.
func (s *Spawner) ActiveLanes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for id := range s.active {
		out = append(out, id)
	}
	return out
}
