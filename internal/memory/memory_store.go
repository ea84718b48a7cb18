package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// InMemoryStore is a non-durable Store, grounded on the teacher's
// MemoryAgentStore pattern (haasonsaas/nexus internal/storage/memory.go):
// a mutex-guarded map satisfying the same interface as the durable backend.
// Useful for tests and for process-local deployments with no database pool.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]fabric.MemoryEntry
	now     func() time.Time
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]fabric.MemoryEntry), now: time.Now}
}

// WithInMemoryClock overrides the store's time source, for deterministic tests.
func (s *InMemoryStore) WithInMemoryClock(now func() time.Time) *InMemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *InMemoryStore) StoreEntry(key, content string, category fabric.MemoryCategory) (fabric.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	entry, exists := s.entries[key]
	if exists {
		entry.Content = content
		entry.Category = category
		entry.UpdatedAt = now
	} else {
		entry = fabric.MemoryEntry{
			ID:        uuid.NewString(),
			Key:       key,
			Content:   content,
			Category:  category,
			Score:     defaultScore,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	s.entries[key] = entry
	return entry, nil
}

func (s *InMemoryStore) Recall(query string, limit int) ([]fabric.MemoryEntry, error) {
	if limit == 0 {
		return nil, nil
	}
	s.mu.RLock()
	all := make([]fabric.MemoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	s.mu.RUnlock()

	sortByUpdatedDesc(all)

	query = strings.TrimSpace(query)
	if query == "" {
		return capEntries(all, limit), nil
	}

	terms := strings.Fields(strings.ToLower(query))
	var hits []fabric.MemoryEntry
	for _, e := range all {
		if containsAllTerms(strings.ToLower(e.Content), terms) {
			hits = append(hits, e)
		}
	}
	if len(hits) > 0 {
		return capEntries(hits, limit), nil
	}

	var substring []fabric.MemoryEntry
	lowered := strings.ToLower(query)
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Content), lowered) {
			e.Score = fallbackScore
			substring = append(substring, e)
		}
	}
	return capEntries(substring, limit), nil
}

func containsAllTerms(content string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(content, t) {
			return false
		}
	}
	return true
}

func capEntries(entries []fabric.MemoryEntry, limit int) []fabric.MemoryEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

func (s *InMemoryStore) Forget(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *InMemoryStore) StoreDaily(content string, at time.Time) error {
	key := dailyKey(at.UTC().Format("2006-01-02"))
	s.mu.Lock()
	existing, found := s.entries[key]
	s.mu.Unlock()
	merged := content
	if found && existing.Content != "" {
		merged = existing.Content + "\n\n" + content
	}
	_, err := s.StoreEntry(key, merged, fabric.MemoryDaily)
	return err
}

func (s *InMemoryStore) RecallDaily(date string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[dailyKey(date)]
	if !ok {
		return "", false, nil
	}
	return entry.Content, true, nil
}

func (s *InMemoryStore) Close() error { return nil }
