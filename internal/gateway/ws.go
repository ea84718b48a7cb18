package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentfabric/agentd/internal/agentloop"
	"github.com/agentfabric/agentd/internal/eventbus"
)

// upgrader matches the teacher's ws_control_plane.go's permissive
// same-process-proxy CORS stance: the gateway sits behind the caller's own
// reverse proxy, so origin checking is delegated there.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// handleWebSocket upgrades the connection and streams every bus event as a
// JSON frame until the client disconnects or the bus subscription is torn
// down. One goroutine per connection pumps bus events to the socket; a
// second drains and discards client frames to notice disconnects promptly.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("gateway: websocket upgrade failed", "error", err)
		}
		return
	}
	defer conn.Close()

	sub := s.cfg.Bus.Subscribe()
	defer sub.Unsubscribe()

	s.metrics.WSConnections.Inc()
	defer s.metrics.WSConnections.Dec()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := s.writeEvent(conn, e); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, e eventbus.Event) error {
	s.metrics.EventsBroadcast.WithLabelValues(e.Type).Inc()

	data := e.Data
	if needed, ok := e.Data.(agentloop.ApprovalNeeded); ok && len(s.cfg.ApprovalTokenSecret) > 0 {
		token, err := signApprovalToken(s.cfg.ApprovalTokenSecret, needed.ActionID, s.cfg.ApprovalTokenTTL)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("gateway: failed to sign approval callback token", "action_id", needed.ActionID, "error", err)
			}
		} else {
			data = approvalEventPayload{ApprovalNeeded: needed, Token: token}
		}
	}

	payload, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: e.Type, Data: data})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
