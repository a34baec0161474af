package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-relay/internal/config"
	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
	"chat-relay/internal/usecase"
)

const (
	requestIDHeader = "X-Request-Id"
	corsMaxAge      = "600"
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Handler serves the relay behind API Gateway (REST proxy integration).
type Handler struct {
	chat   ChatUseCase
	cfg    config.Config
	logger *zap.Logger
}

func NewHandler(chat ChatUseCase, cfg config.Config, logger *zap.Logger) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chat: chat, cfg: cfg, logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reqID := header(req.Headers, requestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	headers := map[string]string{
		"Content-Type":  "application/json",
		requestIDHeader: reqID,
	}

	// Requests from unlisted origins are served without CORS headers; only
	// their preflights are refused.
	origin := header(req.Headers, "Origin")
	if origin != "" && !h.cfg.AllowsOrigin(origin) {
		if req.HTTPMethod == http.MethodOptions {
			return respond(http.StatusBadRequest, headers, errorResponse{Detail: "Disallowed CORS origin.", Error: "DISALLOWED_ORIGIN"})
		}
		origin = ""
	}
	if origin != "" {
		headers["Access-Control-Allow-Origin"] = origin
		headers["Access-Control-Allow-Credentials"] = "true"
		headers["Vary"] = "Origin"
	}

	path := strings.TrimRight(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodOptions && origin != "":
		headers["Access-Control-Allow-Methods"] = "GET,POST"
		headers["Access-Control-Allow-Headers"] = allowHeaders(req.Headers)
		headers["Access-Control-Max-Age"] = corsMaxAge
		delete(headers, "Content-Type")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: headers}, nil
	case req.HTTPMethod == http.MethodGet && path == "/health":
		return respond(http.StatusOK, headers, map[string]string{"status": "ok"})
	case req.HTTPMethod == http.MethodGet && path == "":
		return respond(http.StatusOK, headers, map[string]string{"message": "Chat API is running", "docs": "/docs"})
	case req.HTTPMethod == http.MethodPost && path == "/chat":
		return h.handleChat(ctx, req, headers, reqID)
	case path == "/health" || path == "" || path == "/chat":
		return respond(http.StatusMethodNotAllowed, headers, errorResponse{Detail: "Method Not Allowed", Error: "METHOD_NOT_ALLOWED"})
	default:
		return respond(http.StatusNotFound, headers, errorResponse{Detail: "Not Found", Error: "NOT_FOUND"})
	}
}

func (h *Handler) handleChat(ctx context.Context, req events.APIGatewayProxyRequest, headers map[string]string, reqID string) (events.APIGatewayProxyResponse, error) {
	var body domain.ChatRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || body.Message == nil {
		observability.ChatOutcomesTotal.WithLabelValues("INVALID_BODY").Inc()
		return respond(http.StatusUnprocessableEntity, headers, errorResponse{
			Detail: `Request body must be a JSON object with a string "message" field.`,
			Error:  "INVALID_BODY",
		})
	}

	out, err := h.chat.Chat(ctx, usecase.ChatInput{Message: *body.Message})
	if err != nil {
		var ucErr *usecase.Error
		if !errors.As(err, &ucErr) {
			ucErr = &usecase.Error{Code: usecase.ErrorInternal, Detail: "Internal server error.", Err: err}
		}
		observability.ChatOutcomesTotal.WithLabelValues(string(ucErr.Code)).Inc()
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("code", string(ucErr.Code)),
			zap.Error(err),
		}
		switch ucErr.Code {
		case usecase.ErrorInvalidInput:
			h.logger.Info("chat request rejected", fields...)
		case usecase.ErrorServiceUnavailable, usecase.ErrorInternal:
			h.logger.Error("chat request failed", fields...)
		default:
			h.logger.Warn("upstream completion failed", fields...)
		}
		return respond(ucErr.Code.HTTPStatus(), headers, errorResponse{Detail: ucErr.Detail, Error: string(ucErr.Code)})
	}

	observability.ChatOutcomesTotal.WithLabelValues("ok").Inc()
	return respond(http.StatusOK, headers, domain.ChatResponse{Response: out.Response})
}

func respond(status int, headers map[string]string, payload any) (events.APIGatewayProxyResponse, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Headers: headers}, nil
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(b)}, nil
}

// header looks a key up case-insensitively; API Gateway forwards headers with
// whatever casing the client used.
func header(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func allowHeaders(headers map[string]string) string {
	if requested := header(headers, "Access-Control-Request-Headers"); requested != "" {
		return requested
	}
	return "*"
}
