// LexDraft - Report authoring UI bridge server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lexdraft/lexdraft/internal/agentbind"
	"github.com/lexdraft/lexdraft/internal/agenthost"
	"github.com/lexdraft/lexdraft/internal/api"
	"github.com/lexdraft/lexdraft/internal/bridge"
	"github.com/lexdraft/lexdraft/internal/channel"
	"github.com/lexdraft/lexdraft/internal/config"
	"github.com/lexdraft/lexdraft/internal/middleware"
	"github.com/lexdraft/lexdraft/internal/store"
	"github.com/lexdraft/lexdraft/internal/toolcall"
	"github.com/lexdraft/lexdraft/internal/toolhost"
	"github.com/lexdraft/lexdraft/internal/translate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultAgentID is the agent bound at startup when an agent host is
// configured.
const defaultAgentID = "report_assistant"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if !cfg.EnableLogging {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "ui_bridge", cfg.EnableUIBridge)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize the bridge stack.
	mgr := channel.NewManager()
	translator := translate.NewTranslator()
	bridgeMetrics := bridge.NewMetrics(prometheus.DefaultRegisterer, cfg.EnableMetrics)
	br := bridge.New(mgr, translator, bridgeMetrics, bridge.Options{
		Enabled:        cfg.EnableUIBridge,
		MaxPayloadSize: cfg.MaxPayloadSize,
	})

	// Tool host connection (optional; tool calls fail fast without it).
	var host toolcall.Host
	if cfg.ToolHostAddr != "" {
		client, err := toolhost.New(toolhost.DefaultConfig(cfg.ToolHostAddr), logger)
		if err != nil {
			slog.Error("Failed to connect to tool host", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		host = client
	} else {
		slog.Info("Tool host disabled (TOOL_HOST_ADDR not set)")
		host = toolhost.Offline()
	}

	toolMetrics := toolcall.NewMetrics(prometheus.DefaultRegisterer, cfg.EnableMetrics)
	wrapper := toolcall.New(host, br, toolMetrics, toolcall.Options{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	})

	// Agent binding registry (agent optional, like the tool host).
	reg := agentbind.NewRegistry(agentbind.Options{
		SessionTimeout: cfg.SessionTimeout,
		Repo:           repo,
	})
	if cfg.AgentHostAddr != "" {
		agentClient, err := agenthost.New(agenthost.DefaultConfig(cfg.AgentHostAddr), logger)
		if err != nil {
			slog.Error("Failed to create agent host client", "error", err)
			os.Exit(1)
		}
		defer agentClient.Close()
		reg.Bind(defaultAgentID, agentClient, wrapper, br)
	} else {
		slog.Info("Agent features disabled (AGENT_HOST_ADDR not set)")
	}

	// Initialize handlers.
	wsHandler := channel.NewWebSocketHandler(mgr, cfg.FrontendURL, cfg.IsDevelopment())
	baseHandler := api.NewHandler(mgr, br, wrapper, toolMetrics, repo)
	agentHandler := api.NewAgentHandler(baseHandler, reg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	baseHandler.RegisterBridgeRoutes(r)
	agentHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/ui", wsHandler.ServeHTTP)

	// Prometheus metrics.
	r.Handle("/metrics", promhttp.Handler())

	// Create server. WebSocket connections need long write timeouts.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start idle-session sweep worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agentbind.StartSweepWorker(ctx, reg, cfg.SweepInterval)
	slog.Info("Sweep worker started", "interval", cfg.SweepInterval, "session_timeout", cfg.SessionTimeout)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
