package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chat-relay/internal/config"
	"chat-relay/internal/domain"
	"chat-relay/internal/observability"
	"chat-relay/internal/usecase"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second

	codeInvalidBody   = "INVALID_BODY"
	detailInvalidBody = `Request body must be a JSON object with a string "message" field.`
	detailInternal    = "Internal server error."
)

// Chatter is the request handler behind POST /chat.
type Chatter interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Server is the long-lived HTTP front of the relay.
type Server struct {
	cfg     config.Config
	chat    Chatter
	logger  *zap.Logger
	engine  *gin.Engine
	openAPI map[string]any
}

func New(cfg config.Config, chat Chatter, logger *zap.Logger) (*Server, error) {
	if chat == nil {
		return nil, errors.New("server: chatter must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	doc, err := loadOpenAPI()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		chat:    chat,
		logger:  logger,
		openAPI: doc,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(
		requestID(),
		accessLog(s.logger),
		metrics(),
		recovery(s.logger),
		corsOrigin(s.cfg),
		corsPolicy(s.cfg),
	)

	r.GET("/health", s.health)
	r.GET("/", s.root)
	r.POST("/chat", s.handleChat)
	r.GET("/docs", s.docs)
	r.GET("/openapi.json", s.openAPIDoc)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Chat API is running", "docs": "/docs"})
}

func (s *Server) docs(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsHTML))
}

func (s *Server) openAPIDoc(c *gin.Context) {
	c.JSON(http.StatusOK, s.openAPI)
}

func (s *Server) handleChat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil {
		observability.ChatOutcomesTotal.WithLabelValues(codeInvalidBody).Inc()
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: detailInvalidBody, Error: codeInvalidBody})
		return
	}

	out, err := s.chat.Chat(c.Request.Context(), usecase.ChatInput{Message: *req.Message})
	if err != nil {
		s.writeError(c, err)
		return
	}
	observability.ChatOutcomesTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, domain.ChatResponse{Response: out.Response})
}

func (s *Server) writeError(c *gin.Context, err error) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		ucErr = &usecase.Error{Code: usecase.ErrorInternal, Detail: detailInternal, Err: err}
	}
	observability.ChatOutcomesTotal.WithLabelValues(string(ucErr.Code)).Inc()

	fields := []zap.Field{
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("code", string(ucErr.Code)),
		zap.Error(err),
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		s.logger.Info("chat request rejected", fields...)
	case usecase.ErrorServiceUnavailable, usecase.ErrorInternal:
		s.logger.Error("chat request failed", fields...)
	default:
		s.logger.Warn("upstream completion failed", fields...)
	}

	c.JSON(ucErr.Code.HTTPStatus(), errorResponse{Detail: ucErr.Detail, Error: string(ucErr.Code)})
}
