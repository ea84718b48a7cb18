package memory

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/agentfabric/agentd/pkg/fabric"
)

// SQLiteStore is the durable Memory Store, backed by a relational table
// with an FTS5 auxiliary index (SPEC_FULL.md §6 persisted state layout).
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the store's time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating if absent) a SQLite-backed memory store at path.
// path may be ":memory:" for an ephemeral, process-local store.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}
	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			score REAL NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_entries_fts USING fts5(
			key UNINDEXED,
			content,
			content='memory_entries',
			content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_ai AFTER INSERT ON memory_entries BEGIN
			INSERT INTO memory_entries_fts(rowid, key, content) VALUES (new.rowid, new.key, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_ad AFTER DELETE ON memory_entries BEGIN
			INSERT INTO memory_entries_fts(memory_entries_fts, rowid, key, content) VALUES ('delete', old.rowid, old.key, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_au AFTER UPDATE ON memory_entries BEGIN
			INSERT INTO memory_entries_fts(memory_entries_fts, rowid, key, content) VALUES ('delete', old.rowid, old.key, old.content);
			INSERT INTO memory_entries_fts(rowid, key, content) VALUES (new.rowid, new.key, new.content);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("memory: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// StoreEntry upserts by key, preserving id and created_at across overwrites
// (SPEC_FULL.md §4.6).
func (s *SQLiteStore) StoreEntry(key, content string, category fabric.MemoryCategory) (fabric.MemoryEntry, error) {
	now := s.now()
	existing, found, err := s.getByKey(key)
	if err != nil {
		return fabric.MemoryEntry{}, err
	}

	entry := fabric.MemoryEntry{
		ID:        uuid.NewString(),
		Key:       key,
		Content:   content,
		Category:  category,
		Score:     defaultScore,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if found {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
		entry.Score = existing.Score
	}

	_, err = s.db.Exec(`
		INSERT INTO memory_entries (id, key, content, category, score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET content=excluded.content, category=excluded.category, updated_at=excluded.updated_at
	`, entry.ID, entry.Key, entry.Content, entry.Category.String(), entry.Score,
		entry.CreatedAt.Format(time.RFC3339Nano), entry.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fabric.MemoryEntry{}, fmt.Errorf("memory: store %q: %w", key, err)
	}
	return entry, nil
}

func (s *SQLiteStore) getByKey(key string) (fabric.MemoryEntry, bool, error) {
	row := s.db.QueryRow(`SELECT id, key, content, category, score, created_at, updated_at FROM memory_entries WHERE key = ?`, key)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return fabric.MemoryEntry{}, false, nil
	}
	if err != nil {
		return fabric.MemoryEntry{}, false, fmt.Errorf("memory: lookup %q: %w", key, err)
	}
	return entry, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (fabric.MemoryEntry, error) {
	var e fabric.MemoryEntry
	var categoryStr, createdStr, updatedStr string
	if err := row.Scan(&e.ID, &e.Key, &e.Content, &categoryStr, &e.Score, &createdStr, &updatedStr); err != nil {
		return fabric.MemoryEntry{}, err
	}
	e.Category = parseCategory(categoryStr)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return e, nil
}

func parseCategory(s string) fabric.MemoryCategory {
	switch s {
	case fabric.MemoryCore.String():
		return fabric.MemoryCore
	case fabric.MemoryDaily.String():
		return fabric.MemoryDaily
	case fabric.MemoryConversation.String():
		return fabric.MemoryConversation
	default:
		if strings.HasPrefix(s, "custom:") {
			return fabric.MemoryCustom(strings.TrimPrefix(s, "custom:"))
		}
		return fabric.MemoryCategory{Kind: s}
	}
}

// Recall implements the recall(query, limit) contract of SPEC_FULL.md §4.6.
func (s *SQLiteStore) Recall(query string, limit int) ([]fabric.MemoryEntry, error) {
	if limit == 0 {
		return nil, nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return s.recallRecent(limit)
	}

	results, err := s.recallFTS(query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results, nil
	}
	return s.recallSubstring(query, limit)
}

func (s *SQLiteStore) recallRecent(limit int) ([]fabric.MemoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, key, content, category, score, created_at, updated_at
		FROM memory_entries ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recall recent: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// recallFTS tokenises the query into whitespace-delimited quoted phrases to
// defang FTS operators, runs the full-text index, and normalises bm25 rank
// into (0,1].
func (s *SQLiteStore) recallFTS(query string, limit int) ([]fabric.MemoryEntry, error) {
	ftsQuery := quoteTerms(query)
	rows, err := s.db.Query(`
		SELECT e.id, e.key, e.content, e.category, e.score, e.created_at, e.updated_at, bm25(memory_entries_fts) AS rank
		FROM memory_entries_fts
		JOIN memory_entries e ON e.rowid = memory_entries_fts.rowid
		WHERE memory_entries_fts MATCH ?
		ORDER BY rank LIMIT ?`, ftsQuery, limit)
	if err != nil {
		// A pathological query (e.g. an unbalanced quote after tokenising)
		// degrades to "no FTS hits", triggering the substring fallback.
		return nil, nil
	}
	defer rows.Close()

	var out []fabric.MemoryEntry
	var ranks []float64
	for rows.Next() {
		var e fabric.MemoryEntry
		var categoryStr, createdStr, updatedStr string
		var rank float64
		if err := rows.Scan(&e.ID, &e.Key, &e.Content, &categoryStr, &e.Score, &createdStr, &updatedStr, &rank); err != nil {
			return nil, fmt.Errorf("memory: scan fts row: %w", err)
		}
		e.Category = parseCategory(categoryStr)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		out = append(out, e)
		ranks = append(ranks, rank)
	}
	normalizeRanks(out, ranks)
	return out, nil
}

// normalizeRanks maps bm25's unbounded, lower-is-better rank onto (0,1]
// with the best match nearest 1.
func normalizeRanks(entries []fabric.MemoryEntry, ranks []float64) {
	if len(entries) == 0 {
		return
	}
	worst := ranks[0]
	for _, r := range ranks {
		if r > worst {
			worst = r
		}
	}
	// bm25 is negative-or-zero in SQLite's convention (more negative = better match).
	span := worst + 1 // avoid division by zero when every rank is identical
	for i := range entries {
		normalized := (worst - ranks[i] + 0.01) / (span + 0.01)
		if normalized <= 0 {
			normalized = 0.01
		}
		if normalized > 1 {
			normalized = 1
		}
		entries[i].Score = normalized
	}
}

func (s *SQLiteStore) recallSubstring(query string, limit int) ([]fabric.MemoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, key, content, category, score, created_at, updated_at
		FROM memory_entries WHERE content LIKE ? ORDER BY updated_at DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("memory: substring recall: %w", err)
	}
	defer rows.Close()
	out, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Score = fallbackScore
	}
	return out, nil
}

func scanAll(rows *sql.Rows) ([]fabric.MemoryEntry, error) {
	var out []fabric.MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: scan row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// quoteTerms wraps each whitespace-delimited token in double quotes so FTS5
// treats operators like AND/OR/NOT/NEAR and bare hyphens as literal text.
func quoteTerms(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// Forget deletes by key, reporting whether a row was deleted.
func (s *SQLiteStore) Forget(key string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM memory_entries WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("memory: forget %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("memory: forget %q: %w", key, err)
	}
	return n > 0, nil
}

// StoreDaily appends to key daily:{YYYY-MM-DD} (UTC), separating existing
// content with a blank line.
func (s *SQLiteStore) StoreDaily(content string, at time.Time) error {
	key := dailyKey(at.UTC().Format("2006-01-02"))
	existing, found, err := s.getByKey(key)
	if err != nil {
		return err
	}
	merged := content
	if found && existing.Content != "" {
		merged = existing.Content + "\n\n" + content
	}
	_, err = s.StoreEntry(key, merged, fabric.MemoryDaily)
	return err
}

// RecallDaily fetches content stored under daily:{date}.
func (s *SQLiteStore) RecallDaily(date string) (string, bool, error) {
	entry, found, err := s.getByKey(dailyKey(date))
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	return entry.Content, true, nil
}

// sortByUpdatedDesc is kept for callers that need to re-sort an
// already-fetched slice (e.g. after merging results from two queries).
func sortByUpdatedDesc(entries []fabric.MemoryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
}
