package gateway

import (
	"net/http"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// handleListResources returns every tracked resource instance, optionally
// filtered to one type via ?type=.
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" {
		writeJSON(w, http.StatusOK, map[string]any{"resources": s.cfg.Supervisor.Registry.GetByType(fabric.ParseResourceType(t))})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": s.cfg.Supervisor.Registry.GetAll()})
}

// handleGetResource returns one resource instance and its transition history.
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inst, ok := s.cfg.Supervisor.Registry.Get(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resource": inst,
		"history":  s.cfg.Supervisor.Registry.GetHistory(id),
	})
}

// handleStopResource stops a resource cleanly.
func (s *Server) handleStopResource(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Supervisor.StopResource(r.PathValue("id")); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type killResourceRequest struct {
	Reason string `json:"reason"`
}

// handleKillResource terminates a resource immediately and marks it terminal.
func (s *Server) handleKillResource(w http.ResponseWriter, r *http.Request) {
	var req killResourceRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if err := s.cfg.Supervisor.KillResource(r.PathValue("id"), req.Reason); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRetryResource asks the Escalation Manager / Recovery Engine to
// attempt recovery of a stuck resource.
func (s *Server) handleRetryResource(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.cfg.Supervisor.RecoverResource(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
