package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chat-relay/internal/config"
	"chat-relay/internal/observability"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
	maxRequestIDLen = 128
	corsMaxAge      = 10 * time.Minute

	codeDisallowedOrigin   = "DISALLOWED_ORIGIN"
	detailDisallowedOrigin = "Disallowed CORS origin."
)

// requestID reuses the caller's X-Request-Id when it looks sane and mints a
// UUID otherwise. The id is echoed on the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic while serving request",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: detailInternal, Error: "INTERNAL_ERROR"})
	})
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := zapcore.InfoLevel
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			level = zapcore.DebugLevel
		}
		if ce := logger.Check(level, "http request"); ce != nil {
			ce.Write(
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", c.ClientIP()),
			)
		}
	}
}

func metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status()/100) + "xx"
		observability.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		observability.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// corsOrigin runs in front of corsPolicy. Requests from unlisted origins are
// served without CORS headers and only their preflights are refused. For
// listed origins a preflight gets the requested headers echoed back; a
// literal "*" does not cover credentialed requests.
func corsOrigin(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		preflight := c.Request.Method == http.MethodOptions
		if !cfg.AllowsOrigin(origin) {
			if preflight {
				c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: detailDisallowedOrigin, Error: codeDisallowedOrigin})
				return
			}
			c.Request.Header.Del("Origin")
			c.Next()
			return
		}
		if requested := c.GetHeader("Access-Control-Request-Headers"); preflight && requested != "" {
			c.Header("Access-Control-Allow-Headers", requested)
		}
		c.Next()
	}
}

// corsPolicy allows GET and POST from the configured origins with
// credentials. The matching origin is echoed back, never "*", so credentialed
// requests also work with a wildcard allow-list.
func corsPolicy(cfg config.Config) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  cfg.AllowsOrigin,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}
