package gateway

import (
	"net/http"

	"github.com/agentfabric/agentd/internal/identity"
)

type identityFileView struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func toIdentityFileView(f identity.File) identityFileView {
	return identityFileView{Name: f.Name, Content: f.Content}
}

// handleListIdentity returns both identity files (system prompt and
// heartbeat checklist), present or not.
func (s *Server) handleListIdentity(w http.ResponseWriter, r *http.Request) {
	files := s.cfg.Identity.List()
	views := make([]identityFileView, len(files))
	for i, f := range files {
		views[i] = toIdentityFileView(f)
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": views})
}

// handleGetIdentityFile returns one named identity file's content.
func (s *Server) handleGetIdentityFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.cfg.Identity.Get(r.PathValue("name"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown identity file")
		return
	}
	writeJSON(w, http.StatusOK, toIdentityFileView(f))
}

type putIdentityFileRequest struct {
	Content string `json:"content"`
}

// handlePutIdentityFile overwrites one named identity file's content.
func (s *Server) handlePutIdentityFile(w http.ResponseWriter, r *http.Request) {
	var req putIdentityFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := r.PathValue("name")
	if err := s.cfg.Identity.Put(name, req.Content); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, identityFileView{Name: name, Content: req.Content})
}
