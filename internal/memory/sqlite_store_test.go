package memory

import (
	"strings"
	"testing"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		if strings.Contains(err.Error(), "unknown driver") {
			t.Skip("sqlite driver not available in this environment")
		}
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreUpsertPreservesIdentity(t *testing.T) {
	s := newTestStore(t)

	first, err := s.StoreEntry("k1", "v1", fabric.MemoryCore)
	if err != nil {
		t.Fatalf("StoreEntry: %v", err)
	}
	second, err := s.StoreEntry("k1", "v2", fabric.MemoryCore)
	if err != nil {
		t.Fatalf("StoreEntry overwrite: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("id changed on overwrite")
	}
	if second.Content != "v2" {
		t.Fatalf("content not updated: %q", second.Content)
	}
}

func TestSQLiteStoreRecallFTS(t *testing.T) {
	s := newTestStore(t)
	s.StoreEntry("a", "deploy the staging environment", fabric.MemoryCore)
	s.StoreEntry("b", "rotate database credentials", fabric.MemoryCore)

	got, err := s.Recall("staging", 10)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 1 || got[0].Key != "a" {
		t.Fatalf("expected one FTS hit for key a, got %+v", got)
	}
	if got[0].Score <= 0 || got[0].Score > 1 {
		t.Fatalf("expected normalized score in (0,1], got %v", got[0].Score)
	}
}

func TestSQLiteStoreRecallBlankQueryMostRecent(t *testing.T) {
	s := newTestStore(t)
	s.StoreEntry("a", "first", fabric.MemoryCore)
	time.Sleep(2 * time.Millisecond)
	s.StoreEntry("b", "second", fabric.MemoryCore)

	got, err := s.Recall("", 1)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 1 || got[0].Key != "b" {
		t.Fatalf("expected most recent entry b, got %+v", got)
	}
}

func TestSQLiteStoreForgetAndDailyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	if err := s.StoreDaily("morning notes", day); err != nil {
		t.Fatalf("StoreDaily: %v", err)
	}
	if err := s.StoreDaily("evening notes", day); err != nil {
		t.Fatalf("StoreDaily: %v", err)
	}
	content, ok, err := s.RecallDaily("2026-05-01")
	if err != nil || !ok {
		t.Fatalf("RecallDaily: ok=%v err=%v", ok, err)
	}
	if content != "morning notes\n\nevening notes" {
		t.Fatalf("unexpected daily content: %q", content)
	}

	deleted, err := s.Forget(dailyKey("2026-05-01"))
	if err != nil || !deleted {
		t.Fatalf("Forget: deleted=%v err=%v", deleted, err)
	}
}
