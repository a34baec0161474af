package usecase

import (
	"context"
	"errors"
	"strings"

	"chat-relay/internal/domain"
)

const (
	SystemPrompt       = "You are a helpful assistant."
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7

	detailEmptyMessage  = "Message must not be empty."
	detailEmptyResponse = "Empty response from model."
	upstreamErrorPrefix = "Upstream error: "
)

// Completer performs one upstream completion.
type Completer interface {
	Complete(ctx context.Context, in domain.Completion) (string, error)
}

type ChatService struct {
	llm         Completer
	model       string
	temperature float64
}

type ChatInput struct {
	Message string
}

type ChatOutput struct {
	Response string
}

type Option func(*ChatService)

// WithModel overrides the model identifier. It is fixed for the life of the
// service.
func WithModel(model string) Option {
	return func(s *ChatService) {
		if m := strings.TrimSpace(model); m != "" {
			s.model = m
		}
	}
}

func NewChatService(llm Completer, opts ...Option) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	s := &ChatService{
		llm:         llm,
		model:       DefaultModel,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *ChatService) Model() string {
	return s.model
}

// Chat relays one message upstream. Every failure is an *Error.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, detailEmptyMessage, nil)
	}

	answer, err := s.llm.Complete(ctx, domain.Completion{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: SystemPrompt},
			{Role: domain.RoleUser, Content: message},
		},
	})
	if err != nil {
		return ChatOutput{}, classify(err)
	}
	if answer == "" {
		return ChatOutput{}, newError(ErrorEmptyUpstreamResponse, detailEmptyResponse, domain.ErrEmptyResponse)
	}
	return ChatOutput{Response: answer}, nil
}

func classify(err error) *Error {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return newError(ErrorServiceUnavailable, cfgErr.Error(), err)
	}
	if errors.Is(err, domain.ErrEmptyResponse) {
		return newError(ErrorEmptyUpstreamResponse, detailEmptyResponse, err)
	}
	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) {
		return newError(ErrorUpstream, upstreamErrorPrefix+upErr.Description, err)
	}
	return newError(ErrorUpstream, upstreamErrorPrefix+err.Error(), err)
}

// Unconfigured returns a Completer that fails every call with err without
// any network activity. It stands in for an upstream client that could not be
// constructed at startup.
func Unconfigured(err error) Completer {
	if err == nil {
		err = &domain.ConfigurationError{Setting: "OPENAI_API_KEY"}
	}
	return unconfigured{err: err}
}

type unconfigured struct {
	err error
}

func (u unconfigured) Complete(context.Context, domain.Completion) (string, error) {
	return "", u.err
}
