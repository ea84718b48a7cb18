// Package memory implements the Memory Store of SPEC_FULL.md §4.6: a
// keyed long-term store with full-text recall, grounded on the teacher's
// sqlitevec backend (haasonsaas/nexus internal/memory/backend/sqlitevec)
// for the database/sql + modernc.org/sqlite wiring, generalized from
// vector similarity search to SQLite FTS5 keyword recall.
package memory

import (
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// defaultScore is the score new entries receive via store().
const defaultScore = 0.5

// fallbackScore is the fixed score substring-scan fallback results receive
// when the full-text index yields nothing.
const fallbackScore = 0.1

// Store is the Memory Store contract of SPEC_FULL.md §4.6.
type Store interface {
	StoreEntry(key, content string, category fabric.MemoryCategory) (fabric.MemoryEntry, error)
	Recall(query string, limit int) ([]fabric.MemoryEntry, error)
	Forget(key string) (bool, error)
	StoreDaily(content string, at time.Time) error
	RecallDaily(date string) (string, bool, error)
	Close() error
}

func dailyKey(date string) string {
	return "daily:" + date
}
