package app

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"chat-relay/internal/config"
	"chat-relay/internal/domain"
	"chat-relay/internal/integrations/openai"
	"chat-relay/internal/integrations/paramstore"
	"chat-relay/internal/usecase"
)

// TokenGetterFactory builds the secret store used when the API key has to be
// read from AWS Systems Manager.
type TokenGetterFactory func(ctx context.Context) (config.TokenGetter, error)

// SSMTokenGetter resolves credentials through the default AWS credential chain.
func SSMTokenGetter(ctx context.Context) (config.TokenGetter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	client, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewChatService wires the request handler to the upstream client. A missing
// or unreadable credential does not stop startup: the service is built on an
// unconfigured completer so /health keeps answering and /chat reports 500.
func NewChatService(ctx context.Context, cfg config.Config, tokens TokenGetterFactory, logger *zap.Logger) (*usecase.ChatService, config.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var configErr error
	if cfg.OpenAIAPIKey == "" && cfg.APIKeyParam != "" {
		resolved, err := resolveAPIKey(ctx, cfg, tokens)
		if err != nil {
			logger.Error("failed to resolve OpenAI API key from parameter store",
				zap.String("parameter", cfg.APIKeyParam), zap.Error(err))
			configErr = &domain.ConfigurationError{
				Setting: "OPENAI_API_KEY",
				Message: "OPENAI_API_KEY is not set and could not be loaded from the parameter store.",
			}
		} else {
			cfg = resolved
		}
	}

	var llm usecase.Completer
	if configErr != nil {
		llm = usecase.Unconfigured(configErr)
	} else {
		client, err := openai.NewClient(cfg.OpenAIAPIKey,
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithTimeout(cfg.UpstreamTimeout),
		)
		if err != nil {
			var cfgErr *domain.ConfigurationError
			if !errors.As(err, &cfgErr) {
				return nil, cfg, fmt.Errorf("app: create OpenAI client: %w", err)
			}
			logger.Error("upstream client is not configured; /chat will fail until it is", zap.Error(err))
			llm = usecase.Unconfigured(err)
		} else {
			llm = client
		}
	}

	svc, err := usecase.NewChatService(llm, usecase.WithModel(cfg.OpenAIModel))
	if err != nil {
		return nil, cfg, fmt.Errorf("app: create chat service: %w", err)
	}
	return svc, cfg, nil
}

func resolveAPIKey(ctx context.Context, cfg config.Config, tokens TokenGetterFactory) (config.Config, error) {
	if tokens == nil {
		return cfg, errors.New("app: no token getter configured")
	}
	g, err := tokens(ctx)
	if err != nil {
		return cfg, err
	}
	return cfg.ResolveAPIKey(ctx, g)
}
