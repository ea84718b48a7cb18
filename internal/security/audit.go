package security

import (
	"sync"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// AuditLog is the append-only decision audit log of SPEC_FULL.md §3/§4.4.
type AuditLog struct {
	mu      sync.RWMutex
	entries []fabric.AuditEntry
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append records an entry.
func (l *AuditLog) Append(e fabric.AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Recent returns the n most recently appended entries, newest last.
func (l *AuditLog) Recent(n int) []fabric.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]fabric.AuditEntry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Len returns the total number of entries ever appended.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// AuditEntryFor builds an AuditEntry for a validated command decision.
func AuditEntryFor(command, risk string, decision Decision) fabric.AuditEntry {
	return fabric.AuditEntry{
		Timestamp: time.Now(),
		ToolName:  firstToken(command),
		Args:      command,
		RiskLevel: risk,
		Decision:  string(decision.Kind),
		Result:    decision.Reason,
	}
}
