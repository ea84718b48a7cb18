package lifecycle

import (
	"testing"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	inst := fabric.ResourceInstance{ID: "r1", ResourceType: fabric.ResourceAgent, State: fabric.Idle()}
	r.Register(inst)

	got, ok := r.Get("r1")
	if !ok || got.ID != "r1" {
		t.Fatalf("Get: ok=%v got=%+v", ok, got)
	}
}

func TestRegistryUpdateStateAppendsTransitionHistory(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(fabric.ResourceInstance{ID: "r1", ResourceType: fabric.ResourceAgent, State: fabric.Idle()})

	if err := r.UpdateState("r1", fabric.Running("working", time.Now(), nil), "started"); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	history := r.GetHistory("r1")
	if len(history) != 1 || history[0].From != fabric.StateIdle || history[0].To != fabric.StateRunning {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestRegistryRejectsInvalidTransition(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(fabric.ResourceInstance{ID: "r1", ResourceType: fabric.ResourceAgent, State: fabric.Idle()})

	// Stuck is only reachable from Running per ResourceState.CanTransitionTo.
	err := r.UpdateState("r1", fabric.Stuck(time.Now(), 0, nil), "bogus")
	if err == nil {
		t.Fatal("expected rejection of Idle -> Stuck transition")
	}
}

func TestRegistryGetStuckAndGetByType(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(fabric.ResourceInstance{ID: "a1", ResourceType: fabric.ResourceAgent, State: fabric.Idle()})
	r.Register(fabric.ResourceInstance{ID: "t1", ResourceType: fabric.ResourceTool, State: fabric.Idle()})

	r.UpdateState("a1", fabric.Running("x", time.Now(), nil), "start")
	r.UpdateState("a1", fabric.Stuck(time.Now(), 0, nil), "stuck")

	stuck := r.GetStuck()
	if len(stuck) != 1 || stuck[0].ID != "a1" {
		t.Fatalf("expected one stuck resource a1, got %+v", stuck)
	}

	agents := r.GetByType(fabric.ResourceAgent)
	if len(agents) != 1 {
		t.Fatalf("expected one agent-typed resource, got %d", len(agents))
	}
}

func TestRegistryPurgesTerminalBeyondRetention(t *testing.T) {
	r := NewRegistry(nil)
	for i := 0; i < retentionCount+5; i++ {
		id := randomID(i)
		r.Register(fabric.ResourceInstance{ID: id, ResourceType: fabric.ResourceTool, State: fabric.Idle()})
		if err := r.UpdateState(id, fabric.Completed(time.Now(), "done"), "finished"); err != nil {
			t.Fatalf("UpdateState: %v", err)
		}
	}
	all := r.GetAll()
	if len(all) != retentionCount {
		t.Fatalf("expected %d retained instances, got %d", retentionCount, len(all))
	}
}

func randomID(i int) string {
	return "inst-" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}
