package gateway

import (
	"net/http"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// handleCreateJob registers a new scheduled job.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var job fabric.ScheduledJob
	if !decodeJSON(w, r, &job) {
		return
	}
	created, err := s.cfg.Scheduler.AddJob(job)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListJobs returns every registered job.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.cfg.Scheduler.ListJobs()})
}

// handleGetJob returns one job and its execution history by id.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, ok := s.cfg.Scheduler.GetJob(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job":     job,
		"history": s.cfg.Scheduler.History(id),
	})
}

// handleUpdateJob replaces a job's configuration in place.
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.cfg.Scheduler.GetJob(id); !ok {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	var job fabric.ScheduledJob
	if !decodeJSON(w, r, &job) {
		return
	}
	job.ID = id
	s.cfg.Scheduler.UpdateJob(job)
	writeJSON(w, http.StatusOK, job)
}

// handleDeleteJob removes a job entirely, including its persisted row.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.cfg.Scheduler.GetJob(id); !ok {
		writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	s.cfg.Scheduler.RemoveJob(id)
	w.WriteHeader(http.StatusNoContent)
}
