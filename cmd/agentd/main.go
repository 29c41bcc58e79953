// Command agentd is the agent kernel daemon: it binds the IPC socket,
// wires the kernel, tool registry, LLM provider, and optional debug
// surface together, and serves client connections until signaled to stop.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/agent"
	"github.com/sodove/aios-agent/internal/audit"
	"github.com/sodove/aios-agent/internal/config"
	"github.com/sodove/aios-agent/internal/debug"
	"github.com/sodove/aios-agent/internal/ipc"
	"github.com/sodove/aios-agent/internal/kernel"
	"github.com/sodove/aios-agent/internal/llm"
	_ "github.com/sodove/aios-agent/internal/llm/anthropic"
	_ "github.com/sodove/aios-agent/internal/llm/ollama"
	_ "github.com/sodove/aios-agent/internal/llm/openai"
	"github.com/sodove/aios-agent/internal/logger"
	"github.com/sodove/aios-agent/internal/server"
	"github.com/sodove/aios-agent/internal/tool"
	"github.com/sodove/aios-agent/internal/tool/builtin"
)

const appName = "agentd"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   appName,
		Short: "agentd — the aios agent kernel daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", config.DefaultPath(), "path to the TOML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfigWithFallback(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      nonEmptyLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		OutputPath: "stderr",
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting agentd", zap.String("socket", cfg.Agent.SocketPath))

	provider, err := buildProvider(cfg, log)
	if err != nil {
		return err
	}

	sink := audit.Open(cfg.Agent.AuditLog, log)
	rateLimiter := kernel.NewRateLimiter(cfg.Agent.MaxDestructivePerMinute)
	k := kernel.New(provider, rateLimiter, sink)

	registry := tool.NewRegistry()
	workspace := builtin.Workspace{Root: cfg.Agent.Workspace}
	registry.Register(&builtin.ReadFile{Workspace: workspace})
	registry.Register(&builtin.WriteFile{Workspace: workspace})
	registry.Register(&builtin.ShellExec{Workspace: workspace})

	executor := tool.NewExecutor(registry, rateLimiter, k, sink, log)
	loop := agent.New(k, provider, executor, registry, log)
	router := server.NewRouter(k, loop, log)

	listener, err := ipc.Bind(cfg.Agent.SocketPath)
	if err != nil {
		return fmt.Errorf("binding socket: %w", err)
	}

	watcher := config.NewWatcher(configPath, cfg, log)
	watcher.OnReload(func(mc config.MutableConfig) {
		rateLimiter.SetMax(mc.MaxDestructivePerMinute)
	})
	go watcher.Run()
	defer watcher.Close()

	var debugServer *debug.Server
	var auditTail *debug.AuditTail
	auditTailStop := make(chan struct{})
	if cfg.Debug.Enabled {
		if err := startDebugSurface(cfg, k, log, &debugServer, &auditTail, auditTailStop); err != nil {
			log.Warn("debug surface disabled", zap.Error(err))
		}
	}

	srv := server.New(listener, k, router, log)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		log.Error("listener stopped unexpectedly", zap.Error(err))
	}

	close(auditTailStop)
	if debugServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = debugServer.Stop(ctx)
	}
	_ = listener.Close()

	log.Info("agentd stopped")
	return nil
}

// loadConfigWithFallback loads cfg, warning (not failing) when the file is
// absent, per the config schema's documented default-then-warn behavior.
func loadConfigWithFallback(path string) (*config.Config, error) {
	_, statErr := os.Stat(path)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if os.IsNotExist(statErr) {
		fmt.Fprintf(os.Stderr, "warning: config file %s not found, using defaults\n", path)
	}
	return cfg, nil
}

// buildProvider constructs the configured LLM provider, falling back to
// echo mode (a nil Provider, per kernel.New) when the provider type
// requires an API key that wasn't supplied.
func buildProvider(cfg *config.Config, log *zap.Logger) (llm.Provider, error) {
	if cfg.Provider.Type != "ollama" && cfg.Provider.APIKey == "" {
		log.Warn("no api_key configured for provider, starting in echo mode", zap.String("provider_type", cfg.Provider.Type))
		return nil, nil
	}

	raw, err := json.Marshal(map[string]string{
		"api_key":  cfg.Provider.APIKey,
		"model":    cfg.Provider.Model,
		"base_url": cfg.Provider.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling provider config: %w", err)
	}

	provider, err := llm.CreateProvider(cfg.Provider.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	log.Info("llm provider configured", zap.String("provider", provider.Name()), zap.String("model", cfg.Provider.Model))
	return provider, nil
}

// nonEmptyLevel prefers AIOS_LOG_LEVEL over the config file's log.level.
func nonEmptyLevel(configured string) string {
	if v := os.Getenv("AIOS_LOG_LEVEL"); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return logger.DefaultLevel
}

func startDebugSurface(cfg *config.Config, k *kernel.Kernel, log *zap.Logger, outServer **debug.Server, outTail **debug.AuditTail, stop chan struct{}) error {
	if err := debug.ValidateLoopback(hostOf(cfg.Debug.Addr)); err != nil {
		return err
	}

	tail := debug.NewAuditTail(cfg.Agent.AuditLog, log)
	go tail.Run(stop, time.Second)

	srv := debug.NewServer(cfg.Debug.Addr, k, tail, log)
	srv.Start()

	*outServer = srv
	*outTail = tail
	return nil
}

func hostOf(addr string) string {
	for i := 0; i < len(addr); i++ {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
