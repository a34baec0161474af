package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"chat-relay/handler"
	"chat-relay/internal/app"
	"chat-relay/internal/config"
	"chat-relay/internal/logging"
)

func main() {
	ctx := context.Background()

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

	chat, cfg, err := app.NewChatService(ctx, cfg, app.SSMTokenGetter, logger)
	if err != nil {
		logger.Fatal("failed to create chat service", zap.Error(err))
	}

	h, err := handler.NewHandler(chat, cfg, logger)
	if err != nil {
		logger.Fatal("failed to create handler", zap.Error(err))
	}

	lambda.Start(h.Handle)
}
