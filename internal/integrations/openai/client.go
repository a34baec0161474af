package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
)

const (
	providerName   = "openai"
	defaultTimeout = 30 * time.Second

	// maxDescriptionLen bounds the failure text handed back to callers.
	maxDescriptionLen = 300
)

// Client issues single, non-streaming chat completions against an
// OpenAI-compatible endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	api sdk.Client
}

type Option func(*Client)

// WithBaseURL points the client at a different OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

// WithHTTPClient replaces the transport. Its Timeout takes precedence over
// WithTimeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the deadline for one upstream call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient builds a Client for apiKey. A blank key is a configuration error,
// not a transport error: the returned *domain.ConfigurationError is meant to
// be surfaced to the operator.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &domain.ConfigurationError{Setting: "OPENAI_API_KEY"}
	}
	c := &Client{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(c.httpClient),
		// One inbound request maps to exactly one upstream request.
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	c.api = sdk.NewClient(reqOpts...)
	return c, nil
}

// Complete sends one chat completion and returns the first choice's text.
// Failures are either domain.ErrEmptyResponse or *domain.UpstreamError.
func (c *Client) Complete(ctx context.Context, in domain.Completion) (string, error) {
	if strings.TrimSpace(in.Model) == "" {
		return "", &domain.UpstreamError{Description: "openai: model must not be empty"}
	}
	messages, err := toMessageParams(in.Messages)
	if err != nil {
		return "", &domain.UpstreamError{Description: err.Error(), Err: err}
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(in.Model),
		Messages:    messages,
		Temperature: sdk.Float(in.Temperature),
	})
	observability.ProviderLatency.WithLabelValues(providerName, in.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(providerName, in.Model, "error").Inc()
		return "", toUpstreamError(err)
	}

	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		observability.ProviderRequestsTotal.WithLabelValues(providerName, in.Model, "empty").Inc()
		return "", domain.ErrEmptyResponse
	}
	observability.ProviderRequestsTotal.WithLabelValues(providerName, in.Model, "ok").Inc()
	observability.ProviderTokensTotal.WithLabelValues(providerName, in.Model, "input").Add(float64(resp.Usage.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues(providerName, in.Model, "output").Add(float64(resp.Usage.CompletionTokens))

	return resp.Choices[0].Message.Content, nil
}

func toMessageParams(messages []domain.ChatMessage) ([]sdk.ChatCompletionMessageParamUnion, error) {
	if len(messages) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case domain.RoleUser:
			out = append(out, sdk.UserMessage(m.Content))
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func toUpstreamError(err error) *domain.UpstreamError {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &domain.UpstreamError{
			StatusCode:  apiErr.StatusCode,
			Description: truncate(fmt.Sprintf("openai: status %d: %s", apiErr.StatusCode, msg)),
			Err:         err,
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.UpstreamError{Description: "openai: request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &domain.UpstreamError{Description: "openai: request canceled", Err: err}
	}
	return &domain.UpstreamError{Description: truncate("openai: " + err.Error()), Err: err}
}

func truncate(s string) string {
	if len(s) <= maxDescriptionLen {
		return s
	}
	cut := maxDescriptionLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
