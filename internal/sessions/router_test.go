package sessions

import (
	"fmt"
	"testing"

	"github.com/agentfabric/agentd/pkg/fabric"
)

func TestParseSessionKeyRoundTrip(t *testing.T) {
	key := fabric.SessionKey{Agent: "main", Scope: "dm", Channel: "tauri", Peer: "user"}
	parsed, err := fabric.ParseSessionKey(key.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != key {
		t.Fatalf("got %+v, want %+v", parsed, key)
	}
}

func TestParseSessionKeyRejectsWrongFieldCount(t *testing.T) {
	cases := []string{"a:b:c", "a:b:c:d:e", "", "a:b:c:"}
	for _, c := range cases {
		if _, err := fabric.ParseSessionKey(c); err == nil {
			t.Errorf("expected error parsing %q", c)
		}
	}
}

func TestResolvePolicyTable(t *testing.T) {
	cases := []struct {
		channel, context, want string
	}{
		{"user", "", "main:dm:tauri:user"},
		{"heartbeat", "", "main:heartbeat:scheduler:check"},
		{"cron", "", "isolated:task:scheduler:default"},
		{"cron", "job1", "isolated:task:scheduler:job1"},
		{"telegram", "-100123", "isolated:group:telegram:-100123"},
		{"telegram", "555", "main:dm:telegram:555"},
		{"telegram", "", "isolated:task:telegram:default"},
		{"slack", "", "isolated:task:slack:default"},
		{"slack", "C1", "isolated:task:slack:C1"},
	}
	for _, c := range cases {
		got := Resolve(c.channel, c.context).String()
		if got != c.want {
			t.Errorf("Resolve(%q,%q) = %q, want %q", c.channel, c.context, got, c.want)
		}
	}
}

func TestPushMessageCreatesSession(t *testing.T) {
	r := NewRouter(nil)
	key := Resolve("user", "")
	r.PushMessage(key, fabric.NewUserMessage("hi"))
	s, ok := r.Get(key)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(s.Messages) != 1 || s.Messages[0].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", s.Messages)
	}
}

func TestDistinctKeysHaveDisjointHistories(t *testing.T) {
	r := NewRouter(nil)
	a := Resolve("slack", "A")
	b := Resolve("slack", "B")
	r.PushMessage(a, fabric.NewUserMessage("to-a"))
	r.PushMessage(b, fabric.NewUserMessage("to-b"))
	sa, _ := r.Get(a)
	sb, _ := r.Get(b)
	if len(sa.Messages) != 1 || len(sb.Messages) != 1 {
		t.Fatal("expected exactly one message in each session")
	}
	if sa.Messages[0].Content == sb.Messages[0].Content {
		t.Fatal("sessions should be disjoint")
	}
}

// TestCompactionScenarioD is spec.md §8 Scenario D verbatim.
func TestCompactionScenarioD(t *testing.T) {
	r := NewRouter(nil)
	key := Resolve("slack", "compaction-test")
	for i := 0; i < 8; i++ {
		r.PushMessage(key, fabric.NewUserMessage(fmt.Sprintf("msg %d", i)))
	}
	if changed := r.Compact(key, 5); !changed {
		t.Fatal("expected compaction to occur")
	}
	s, _ := r.Get(key)
	if len(s.Messages) != 5 {
		t.Fatalf("got %d messages, want 5", len(s.Messages))
	}
	want := []string{"msg 0", "msg 1", "msg 5", "msg 6", "msg 7"}
	for i, w := range want {
		if s.Messages[i].Content != w {
			t.Errorf("message %d = %q, want %q", i, s.Messages[i].Content, w)
		}
	}
	if s.CompactionSummary == "" {
		t.Error("expected a compaction summary to be recorded")
	}
}

func TestCompactionNoopWhenUnderLimit(t *testing.T) {
	r := NewRouter(nil)
	key := Resolve("slack", "short")
	r.PushMessage(key, fabric.NewUserMessage("a"))
	r.PushMessage(key, fabric.NewUserMessage("b"))
	if r.Compact(key, 5) {
		t.Fatal("expected no compaction under the limit")
	}
}

func TestRemoveDestroysSession(t *testing.T) {
	r := NewRouter(nil)
	key := Resolve("slack", "gone")
	r.PushMessage(key, fabric.NewUserMessage("hi"))
	r.Remove(key)
	if _, ok := r.Get(key); ok {
		t.Fatal("expected session to be removed")
	}
}
