package gateway

import (
	"net/http"

	"github.com/agentfabric/agentd/internal/agentloop"
	"github.com/agentfabric/agentd/internal/eventbus"
)

type submitApprovalRequest struct {
	Approved bool `json:"approved"`
}

// handleSubmitApproval resolves a pending ApprovalNeeded by publishing the
// matching ApprovalResponse onto the event bus; agentloop.ApprovalGate
// rendezvouses it with the blocked Request call by action id.
func (s *Server) handleSubmitApproval(w http.ResponseWriter, r *http.Request) {
	var req submitApprovalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	actionID := r.PathValue("action_id")
	if len(s.cfg.ApprovalTokenSecret) > 0 {
		if token := r.URL.Query().Get("token"); token != "" {
			if err := verifyApprovalToken(s.cfg.ApprovalTokenSecret, token, actionID); err != nil {
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}
	}
	s.cfg.Bus.Publish(eventbus.Event{
		Type: "ApprovalResponse",
		Data: agentloop.ApprovalResponse{ActionID: actionID, Approved: req.Approved},
	})
	w.WriteHeader(http.StatusAccepted)
}
