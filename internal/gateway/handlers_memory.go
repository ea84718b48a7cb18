package gateway

import (
	"net/http"
	"strconv"

	"github.com/agentfabric/agentd/pkg/fabric"
)

type storeMemoryRequest struct {
	Key      string `json:"key"`
	Content  string `json:"content"`
	Category string `json:"category"` // "core", "daily", "conversation", or "custom:{tag}"
}

func parseMemoryCategory(raw string) fabric.MemoryCategory {
	switch raw {
	case "core":
		return fabric.MemoryCore
	case "daily":
		return fabric.MemoryDaily
	case "conversation":
		return fabric.MemoryConversation
	default:
		if len(raw) > len("custom:") && raw[:len("custom:")] == "custom:" {
			return fabric.MemoryCustom(raw[len("custom:"):])
		}
		return fabric.MemoryConversation
	}
}

// handleStoreMemory stores or updates a keyed memory entry.
func (s *Server) handleStoreMemory(w http.ResponseWriter, r *http.Request) {
	var req storeMemoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeJSONError(w, http.StatusBadRequest, "key is required")
		return
	}
	entry, err := s.cfg.Memory.StoreEntry(req.Key, req.Content, parseMemoryCategory(req.Category))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleRecallMemory runs a full-text recall query against the memory store.
func (s *Server) handleRecallMemory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.cfg.Memory.Recall(query, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleForgetMemory deletes the memory entry for the path's {key}.
func (s *Server) handleForgetMemory(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.cfg.Memory.Forget(r.PathValue("key"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeJSONError(w, http.StatusNotFound, "memory entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
