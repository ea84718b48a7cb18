package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentfabric/agentd/internal/eventbus"
	"github.com/agentfabric/agentd/internal/identity"
	"github.com/agentfabric/agentd/internal/lifecycle"
	"github.com/agentfabric/agentd/internal/memory"
	"github.com/agentfabric/agentd/internal/scheduler"
	"github.com/agentfabric/agentd/internal/sessions"
	"github.com/agentfabric/agentd/pkg/fabric"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T, token string) (*Server, *httptest.Server) {
	t.Helper()
	bus := eventbus.New()
	srv := New(Config{
		BearerToken: token,
		Sessions:    sessions.NewRouter(nil),
		Memory:      memory.NewInMemoryStore(),
		Identity:    identity.NewFileProvider(t.TempDir()),
		Scheduler:   scheduler.New(bus),
		Supervisor:  lifecycle.NewSupervisor(bus, nil),
		Bus:         bus,
		Registry:    prometheus.NewRegistry(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, ts *httptest.Server, token, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestHealthzRequiresNoAuth(t *testing.T) {
	_, ts := newTestServer(t, "secret")
	resp := doJSON(t, ts, "", "GET", "/healthz", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	_, ts := newTestServer(t, "secret")
	resp := doJSON(t, ts, "", "GET", "/sessions", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	_, ts := newTestServer(t, "secret")
	resp := doJSON(t, ts, "secret", "POST", "/sessions", createSessionRequest{Channel: "user"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	var view sessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	getResp := doJSON(t, ts, "secret", "GET", "/sessions/"+view.Key, nil)
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", getResp.StatusCode)
	}
}

func TestMemoryStoreRecallForget(t *testing.T) {
	_, ts := newTestServer(t, "secret")
	storeResp := doJSON(t, ts, "secret", "POST", "/memory", storeMemoryRequest{Key: "k1", Content: "hello world", Category: "core"})
	defer storeResp.Body.Close()
	if storeResp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", storeResp.StatusCode)
	}

	recallResp := doJSON(t, ts, "secret", "GET", "/memory?q=hello", nil)
	defer recallResp.Body.Close()
	var body struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.NewDecoder(recallResp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Entries) != 1 {
		t.Fatalf("want 1 recalled entry, got %d", len(body.Entries))
	}

	forgetResp := doJSON(t, ts, "secret", "DELETE", "/memory/k1", nil)
	defer forgetResp.Body.Close()
	if forgetResp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", forgetResp.StatusCode)
	}
}

func TestApprovalSubmissionPublishesResponse(t *testing.T) {
	srv, ts := newTestServer(t, "secret")
	sub := srv.cfg.Bus.Subscribe()
	defer sub.Unsubscribe()

	resp := doJSON(t, ts, "secret", "POST", "/approvals/action-123", submitApprovalRequest{Approved: true})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("want 202, got %d", resp.StatusCode)
	}

	select {
	case e := <-sub.Events:
		if e.Type != "ApprovalResponse" {
			t.Fatalf("want ApprovalResponse event, got %q", e.Type)
		}
	default:
		t.Fatal("expected ApprovalResponse to be published synchronously")
	}
}

func TestResourceLifecycleViaHTTP(t *testing.T) {
	srv, ts := newTestServer(t, "secret")
	inst, err := srv.cfg.Supervisor.SpawnResource(fabric.ResourceTool, map[string]any{"name": "shell"})
	if err != nil {
		t.Fatalf("spawn resource: %v", err)
	}

	getResp := doJSON(t, ts, "secret", "GET", "/resources/tool/"+inst.ID, nil)
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", getResp.StatusCode)
	}

	stopResp := doJSON(t, ts, "secret", "POST", "/resources/tool/"+inst.ID+"/stop", nil)
	defer stopResp.Body.Close()
	if stopResp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", stopResp.StatusCode)
	}
}

func TestApprovalTokenRoundTrip(t *testing.T) {
	secret := []byte("test-signing-secret")
	token, err := signApprovalToken(secret, "action-1", 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := verifyApprovalToken(secret, token, "action-1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := verifyApprovalToken(secret, token, "action-2"); err == nil {
		t.Fatal("expected verification to fail for a different action id")
	}
}
