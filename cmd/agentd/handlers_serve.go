package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentfabric/agentd/internal/agentloop"
	"github.com/agentfabric/agentd/internal/config"
	"github.com/agentfabric/agentd/internal/eventbus"
	"github.com/agentfabric/agentd/internal/gateway"
	"github.com/agentfabric/agentd/internal/identity"
	"github.com/agentfabric/agentd/internal/lifecycle"
	"github.com/agentfabric/agentd/internal/memory"
	"github.com/agentfabric/agentd/internal/multiagent"
	"github.com/agentfabric/agentd/internal/providers/anthropic"
	"github.com/agentfabric/agentd/internal/providers/openai"
	"github.com/agentfabric/agentd/internal/scheduler"
	"github.com/agentfabric/agentd/internal/security"
	"github.com/agentfabric/agentd/internal/sessions"
	"github.com/agentfabric/agentd/pkg/fabric"
)

// runServe implements the serve command: load config, wire every
// component of the fabric, start the gateway, and shut down gracefully
// on SIGINT/SIGTERM.
func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	slog.Info("starting agentd", "version", version, "commit", commit, "config", configPath, "debug", debug)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	bus := eventbus.New()

	memStore, err := openMemoryStore(cfg.Memory)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}

	sessionRouter := sessions.NewRouter(nil)
	identityProvider := identity.NewFileProvider(cfg.Identity.Dir)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		// validated at config load time; defensive fallback only.
		location = time.UTC
	}

	policy := security.NewPolicy(
		security.Autonomy(cfg.Security.Autonomy),
		security.PathValidation{
			WorkspaceRoot: cfg.Security.WorkspaceRoot,
			BlockedDirs:   cfg.Security.BlockedDirs,
		},
		security.RateLimiterConfig{
			WindowSecs: cfg.Security.RateLimitWindowSecs,
			MaxActions: cfg.Security.RateLimitMaxActions,
		},
	)

	provider, err := buildProvider(cfg.Providers)
	if err != nil {
		return fmt.Errorf("failed to construct completion provider: %w", err)
	}

	gate := agentloop.NewApprovalGate(bus)
	registry := agentloop.NewToolRegistry()

	loop := agentloop.New(provider, registry, policy, bus, gate, agentloop.Config{
		MaxIterations:   cfg.AgentLoop.MaxIterations,
		MaxHistory:      cfg.AgentLoop.MaxHistory,
		Model:           cfg.AgentLoop.Model,
		Temperature:     cfg.AgentLoop.Temperature,
		MaxTokens:       cfg.AgentLoop.MaxTokens,
		ApprovalTimeout: cfg.Security.ApprovalTimeout,
	})

	runner := &turnRunner{loop: loop, sessions: sessionRouter, identity: identityProvider}

	spawner := multiagent.NewSpawner(runner.runSubagentTurn, bus, cfg.Multiagent.MaxSpawnDepth)
	_ = multiagent.NewOrchestrator(spawner, cfg.Multiagent.MaxConcurrency)

	sched := scheduler.New(bus,
		scheduler.WithLocation(location),
		scheduler.WithAgentTurn(runner.runScheduledTurn),
		scheduler.WithHeartbeat(runner.runHeartbeat),
	)
	sched.Start(ctx)
	defer sched.Stop()

	supervisor := lifecycle.NewSupervisor(bus, nil)
	supervisor.StartMonitoring(ctx, cfg.Lifecycle.HealthCheckInterval)
	defer supervisor.StopMonitoring()

	srv := gateway.New(gateway.Config{
		Addr:                cfg.Gateway.Addr,
		BearerToken:         cfg.Gateway.BearerToken,
		ApprovalTokenSecret: []byte(cfg.Gateway.ApprovalTokenSecret),
		ApprovalTokenTTL:    cfg.Gateway.ApprovalTokenTTL,
		Sessions:            sessionRouter,
		Memory:              memStore,
		Identity:            identityProvider,
		Scheduler:           sched,
		Supervisor:          supervisor,
		Bus:                 bus,
		Logger:              slog.Default(),
	})

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	slog.Info("agentd gateway started", "addr", cfg.Gateway.Addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, initiating graceful shutdown")
	slog.Info("agentd gateway stopped gracefully")
	return nil
}

// runConfigValidate implements "agentd config validate".
func runConfigValidate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "config OK: %s\n", configPath)
	fmt.Fprintf(out, "  gateway.addr:        %s\n", cfg.Gateway.Addr)
	fmt.Fprintf(out, "  providers.default:   %s\n", cfg.Providers.Default)
	fmt.Fprintf(out, "  security.autonomy:   %s\n", cfg.Security.Autonomy)
	fmt.Fprintf(out, "  scheduler.timezone:  %s\n", cfg.Scheduler.Timezone)
	return nil
}

func openMemoryStore(cfg config.MemoryConfig) (memory.Store, error) {
	if cfg.Path == "" {
		return memory.NewInMemoryStore(), nil
	}
	return memory.Open(cfg.Path)
}

func buildProvider(cfg config.ProvidersConfig) (agentloop.CompletionProvider, error) {
	switch cfg.Default {
	case "openai":
		return openai.New(cfg.OpenAI.APIKey)
	default:
		return anthropic.New(anthropic.Config{
			APIKey:       cfg.Anthropic.APIKey,
			BaseURL:      cfg.Anthropic.BaseURL,
			DefaultModel: cfg.Anthropic.DefaultModel,
		})
	}
}

// turnRunner is the seam wiring the Agent Loop into the Scheduler and
// Multiagent Spawner, both of which only depend on narrow function types
// (scheduler.AgentTurnFunc/HeartbeatFunc, multiagent.AgentTurnRunner) so
// neither package needs a compile-time dependency on agentloop's
// provider/tool wiring.
type turnRunner struct {
	loop     *agentloop.Loop
	sessions *sessions.Router
	identity identity.Provider
}

func (r *turnRunner) sessionFor(sessionTarget string) *sessions.Session {
	key, err := fabric.ParseSessionKey(sessionTarget)
	if err != nil {
		key = sessions.Resolve("cron", sessionTarget)
	}
	sess := r.sessions.GetOrCreate(key)
	if len(sess.Messages) == 0 {
		sess.Messages = append(sess.Messages, fabric.NewSystemMessage(r.identity.SystemPrompt()))
	}
	return sess
}

// runScheduledTurn implements scheduler.AgentTurnFunc.
func (r *turnRunner) runScheduledTurn(ctx context.Context, sessionTarget, prompt string) (string, error) {
	sess := r.sessionFor(sessionTarget)
	sess.Messages = append(sess.Messages, fabric.NewUserMessage(prompt))
	return r.loop.Run(ctx, &sess.Messages)
}

// runHeartbeat implements scheduler.HeartbeatFunc.
func (r *turnRunner) runHeartbeat(ctx context.Context, sessionTarget string) (string, bool, error) {
	prompt := heartbeatPrompt(r.identity.HeartbeatChecklist())
	response, err := r.runScheduledTurn(ctx, sessionTarget, prompt)
	if err != nil {
		return "", false, err
	}
	return response, scheduler.HasHeartbeatOK(response), nil
}

// runSubagentTurn implements multiagent.AgentTurnRunner.
func (r *turnRunner) runSubagentTurn(ctx context.Context, sessionKey fabric.SessionKey, prompt string, params multiagent.ThinkingParams) (string, error) {
	sess := r.sessions.GetOrCreate(sessionKey)
	if len(sess.Messages) == 0 {
		sess.Messages = append(sess.Messages, fabric.NewSystemMessage(r.identity.SystemPrompt()))
	}
	sess.Messages = append(sess.Messages, fabric.NewUserMessage(prompt))
	return r.loop.Run(ctx, &sess.Messages)
}

func heartbeatPrompt(checklist []string) string {
	if len(checklist) == 0 {
		return "Run your standard heartbeat check. Reply with HEARTBEAT_OK if nothing needs attention."
	}
	prompt := "Run your heartbeat check against the following items, then reply with HEARTBEAT_OK if nothing needs attention:\n"
	for _, item := range checklist {
		prompt += "- " + item + "\n"
	}
	return prompt
}
