package gateway

import (
	"net/http"

	"github.com/agentfabric/agentd/internal/sessions"
	"github.com/agentfabric/agentd/pkg/fabric"
)

// sessionView is the wire representation of a Session, trimming internal
// bookkeeping the client has no use for.
type sessionView struct {
	Key               string                  `json:"key"`
	Messages          []fabric.SessionMessage `json:"messages"`
	CompactionSummary string                  `json:"compaction_summary,omitempty"`
}

func toSessionView(s *sessions.Session) sessionView {
	return sessionView{
		Key:               s.Key.String(),
		Messages:          s.Messages,
		CompactionSummary: s.CompactionSummary,
	}
}

type createSessionRequest struct {
	Channel string `json:"channel"`
	Context string `json:"context"`
}

// handleCreateSession resolves a channel/context pair to its session key
// and lazily creates the session, matching sessions.Resolve/GetOrCreate.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := sessions.Resolve(req.Channel, req.Context)
	sess := s.cfg.Sessions.GetOrCreate(key)
	writeJSON(w, http.StatusCreated, toSessionView(sess))
}

// handleListSessions returns every tracked session key.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"keys": s.cfg.Sessions.ListKeys()})
}

// handleGetSession returns the session for the path's {key}, or 404.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key, err := fabric.ParseSessionKey(r.PathValue("key"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, found := s.cfg.Sessions.Get(key)
	if !found {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(sess))
}

// handleDeleteSession destroys the session for the path's {key} (spec.md
// §3: sessions are destroyed only by explicit removal).
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	key, err := fabric.ParseSessionKey(r.PathValue("key"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.cfg.Sessions.Remove(key)
	w.WriteHeader(http.StatusNoContent)
}
