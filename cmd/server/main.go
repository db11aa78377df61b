package main

import (
	// Standard library
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// External dependencies
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	// Internal packages
	"github.com/scoutlabs/orchestrator/cmd/server/internal/api"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/audit"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/config"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/agent"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/plan"
	"github.com/scoutlabs/orchestrator/pkg/logger"
)

func main() {
	// Optional .env for local development; env vars win on conflict.
	_ = godotenv.Load()

	logInstance, err := logger.Init(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: os.Getenv("ENV"),
		WithSource:  !strings.EqualFold(os.Getenv("ENV"), "prod"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	appLogger := logInstance.With("component", "orchestrator-server")

	cfg, err := config.Load()
	if err != nil {
		appLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	appLogger.Info("configuration loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	catalog, err := config.LoadAgentCatalog(cfg)
	if err != nil {
		appLogger.Error("failed to load agent catalog", "error", err)
		os.Exit(1)
	}
	appLogger.Info("agent catalog ready", "agents", len(catalog))

	generator := plan.NewGenerator(catalog)
	executor := agent.NewExecutor(
		agent.NewClient(),
		agent.NewRegistry(),
		agent.NewLimiter(cfg.Agents.MaxConcurrentCalls),
		appLogger,
	)
	auditLogger := audit.NewLogger(cfg.Audit.LogPath)
	orch := orchestrator.New(generator, executor, auditLogger, appLogger)

	handler := api.NewHandler(orch, cfg.Security.JWTSecret)
	r := api.NewRouter(handler)

	serverAddr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("server starting", "addr", serverAddr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	appLogger.Info("shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	appLogger.Info("server shutdown complete")
}
