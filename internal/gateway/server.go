// Package gateway implements the HTTP/WebSocket control plane of
// SPEC_FULL.md §6's "Addition — concrete HTTP surface": a thin JSON layer
// over the Session Router, Memory Store, Identity Provider, Scheduler,
// and Lifecycle Supervisor, plus an event-bus-streaming /ws endpoint and
// a Prometheus /metrics endpoint. Grounded on the teacher's
// internal/gateway package (haasonsaas/nexus) — its http.ServeMux
// wiring in http_server.go and its bearer-auth middleware in
// internal/web/middleware.go — generalized from the teacher's
// channel/webhook/UI gateway onto this module's resource-family REST
// surface (cmd/nexus/handlers_*.go's one-file-per-family naming).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentfabric/agentd/internal/eventbus"
	"github.com/agentfabric/agentd/internal/identity"
	"github.com/agentfabric/agentd/internal/lifecycle"
	"github.com/agentfabric/agentd/internal/memory"
	"github.com/agentfabric/agentd/internal/scheduler"
	"github.com/agentfabric/agentd/internal/sessions"
)

// Config wires the gateway to the rest of the fabric. Every route is
// registered regardless of which collaborators are set, so each
// collaborator field is required; a nil one is not guarded against.
type Config struct {
	Addr        string
	BearerToken string

	// ApprovalTokenSecret signs the short-lived, action-scoped JWT embedded
	// in ApprovalNeeded events per SPEC_FULL.md §2.2. Empty disables the
	// extra layer; the shared bearer token still guards the endpoint.
	ApprovalTokenSecret []byte
	ApprovalTokenTTL    time.Duration

	Sessions   *sessions.Router
	Memory     memory.Store
	Identity   *identity.FileProvider
	Scheduler  *scheduler.Scheduler
	Supervisor *lifecycle.Supervisor
	Bus        *eventbus.Bus

	Logger   *slog.Logger
	Registry *prometheus.Registry // nil uses prometheus.NewRegistry()
}

// Server is the gateway's HTTP server.
type Server struct {
	cfg     Config
	metrics *Metrics
	mux     *http.ServeMux
	http    *http.Server
	logger  *slog.Logger
}

// New builds a Server and registers every route.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{cfg: cfg, metrics: NewMetrics(reg), mux: http.NewServeMux(), logger: cfg.Logger}
	s.routes(reg)
	return s
}

// wrapped returns the mux wrapped in the BearerAuth and Logging
// middleware, the handler actually installed on the http.Server.
func (s *Server) wrapped() http.Handler {
	return Logging(s.logger)(BearerAuth(s.cfg.BearerToken, s.logger)(s.mux))
}

func (s *Server) routes(reg *prometheus.Registry) {
	mux := s.mux

	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{key}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{key}", s.handleDeleteSession)

	mux.HandleFunc("POST /memory", s.handleStoreMemory)
	mux.HandleFunc("GET /memory", s.handleRecallMemory)
	mux.HandleFunc("DELETE /memory/{key}", s.handleForgetMemory)

	mux.HandleFunc("GET /identity", s.handleListIdentity)
	mux.HandleFunc("GET /identity/{name}", s.handleGetIdentityFile)
	mux.HandleFunc("PUT /identity/{name}", s.handlePutIdentityFile)

	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("PATCH /jobs/{id}", s.handleUpdateJob)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)

	mux.HandleFunc("GET /resources", s.handleListResources)
	mux.HandleFunc("GET /resources/{type}/{id}", s.handleGetResource)
	mux.HandleFunc("POST /resources/{type}/{id}/stop", s.handleStopResource)
	mux.HandleFunc("POST /resources/{type}/{id}/kill", s.handleKillResource)
	mux.HandleFunc("POST /resources/{type}/{id}/retry", s.handleRetryResource)

	mux.HandleFunc("POST /approvals/{action_id}", s.handleSubmitApproval)

	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// handleHealthz reports liveness, matching the teacher's handleHealthz
// marshal-then-write idiom.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe starts the HTTP server and blocks until ctx is canceled
// or the server errors, matching the teacher's startHTTPServer/net.Listen
// + http.Server.Shutdown pairing (http_server.go).
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.wrapped(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the fully wrapped (auth + logging) handler, for tests
// that drive the server via httptest.NewServer without a real listener.
func (s *Server) Handler() http.Handler {
	return s.wrapped()
}
