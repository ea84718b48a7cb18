// Package sessions implements the Session Router (SPEC_FULL.md §4.1): a
// map from SessionKey to Session guarded by a single reader-writer lock,
// grounded on the teacher's internal/sessions package (haasonsaas/nexus),
// generalized from its agent-id-prefixed routing scheme to the spec's
// strict four-field {agent}:{scope}:{channel}:{peer} key.
package sessions

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// Session is one conversation's ordered, append-only message history.
type Session struct {
	Key                fabric.SessionKey
	Messages           []fabric.SessionMessage
	CompactionSummary  string
	CreatedAt          time.Time
}

// Mirror optionally persists session mutations to a durable store. Callers
// that don't need durability pass a nil Mirror.
type Mirror interface {
	PutSession(key string, createdAt time.Time) error
	AppendMessage(key string, seq int, msg fabric.SessionMessage) error
	SetCompactionSummary(key, summary string) error
	DeleteSession(key string) error
}

// Router maintains the Session Key -> Session mapping.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	mirror   Mirror
}

// NewRouter creates an empty router. mirror may be nil.
func NewRouter(mirror Mirror) *Router {
	return &Router{sessions: make(map[string]*Session), mirror: mirror}
}

// Resolve implements the deterministic channel->SessionKey policy table of
// SPEC_FULL.md §4.1.
func Resolve(channel string, context string) fabric.SessionKey {
	switch channel {
	case "user":
		return fabric.SessionKey{Agent: "main", Scope: "dm", Channel: "tauri", Peer: "user"}
	case "heartbeat":
		return fabric.SessionKey{Agent: "main", Scope: "heartbeat", Channel: "scheduler", Peer: "check"}
	case "cron":
		ctx := context
		if ctx == "" {
			ctx = "default"
		}
		return fabric.SessionKey{Agent: "isolated", Scope: "task", Channel: "scheduler", Peer: ctx}
	case "telegram":
		if n, err := strconv.ParseInt(context, 10, 64); err == nil {
			if n < 0 {
				return fabric.SessionKey{Agent: "isolated", Scope: "group", Channel: "telegram", Peer: strconv.FormatInt(n, 10)}
			}
			return fabric.SessionKey{Agent: "main", Scope: "dm", Channel: "telegram", Peer: strconv.FormatInt(n, 10)}
		}
		ctx := context
		if ctx == "" {
			ctx = "default"
		}
		return fabric.SessionKey{Agent: "isolated", Scope: "task", Channel: "telegram", Peer: ctx}
	default:
		ctx := context
		if ctx == "" {
			ctx = "default"
		}
		return fabric.SessionKey{Agent: "isolated", Scope: "task", Channel: channel, Peer: ctx}
	}
}

// GetOrCreate idempotently fetches or lazily creates the session for key.
func (r *Router) GetOrCreate(key fabric.SessionKey) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(key)
}

func (r *Router) getOrCreateLocked(key fabric.SessionKey) *Session {
	k := key.String()
	if s, ok := r.sessions[k]; ok {
		return s
	}
	s := &Session{Key: key, CreatedAt: time.Now()}
	r.sessions[k] = s
	if r.mirror != nil {
		_ = r.mirror.PutSession(k, s.CreatedAt)
	}
	return s
}

// PushMessage appends a message to the session for key, creating it if absent.
func (r *Router) PushMessage(key fabric.SessionKey, msg fabric.SessionMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.getOrCreateLocked(key)
	s.Messages = append(s.Messages, msg)
	if r.mirror != nil {
		_ = r.mirror.AppendMessage(key.String(), len(s.Messages)-1, msg)
	}
}

// Get returns the session for key if it exists.
func (r *Router) Get(key fabric.SessionKey) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key.String()]
	return s, ok
}

// Remove destroys a session explicitly (spec.md §3: "destroyed only by
// explicit removal").
func (r *Router) Remove(key fabric.SessionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key.String())
	if r.mirror != nil {
		_ = r.mirror.DeleteSession(key.String())
	}
}

// Compact drops the oldest len-max entries when len(messages) > max,
// preserving the first two and the most recent max-2, and replaces the
// dropped prefix with a synthetic compaction summary. Returns true iff
// compaction occurred.
func (r *Router) Compact(key fabric.SessionKey, maxMessages int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key.String()]
	if !ok || maxMessages < 2 {
		return false
	}
	n := len(s.Messages)
	if n <= maxMessages {
		return false
	}
	dropped := n - maxMessages
	first2 := append([]fabric.SessionMessage{}, s.Messages[:2]...)
	tail := append([]fabric.SessionMessage{}, s.Messages[2+dropped:]...)
	summary := fmt.Sprintf("[compacted %d messages from session started %s]", dropped, s.CreatedAt.Format(time.RFC3339))
	s.Messages = append(first2, tail...)
	s.CompactionSummary = summary
	if r.mirror != nil {
		_ = r.mirror.SetCompactionSummary(key.String(), summary)
	}
	return true
}

// ListKeys returns every known session key (diagnostics).
func (r *Router) ListKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	return keys
}

// SessionCount returns the number of tracked sessions (diagnostics).
func (r *Router) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
