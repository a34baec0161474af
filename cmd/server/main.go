package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-relay/internal/app"
	"chat-relay/internal/config"
	"chat-relay/internal/logging"
	"chat-relay/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// ---- Request handler + upstream client ----
	chat, cfg, err := app.NewChatService(ctx, cfg, app.SSMTokenGetter, logger)
	if err != nil {
		logger.Fatal("failed to create chat service", zap.Error(err))
	}

	// ---- HTTP server ----
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := server.New(cfg, chat, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	logger.Info("starting chat relay",
		zap.Int("port", cfg.Port),
		zap.String("model", chat.Model()),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
		zap.Bool("api_key_configured", cfg.OpenAIAPIKey != ""),
	)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}
