package api

import (
	"strings"
	"time"

	"lookbook/server/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ctxTraceID = "trace_id"
	ctxUserID  = "user_id"
	ctxEmail   = "email"
)

func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader("X-Trace-Id"))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(ctxTraceID, traceID)
		c.Writer.Header().Set("X-Trace-Id", traceID)
		c.Next()
	}
}

func RequestLogMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		log.Infow("http_request",
			"trace_id", traceIDFromContext(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
		)
	}
}

// AuthMiddleware verifies the bearer token. allowQueryToken additionally
// accepts an `authorization` query parameter, used by the file routes where
// image tags cannot set request headers.
func AuthMiddleware(authSvc *auth.Service, allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		switch {
		case strings.HasPrefix(header, prefix):
			token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
		case allowQueryToken:
			token = strings.TrimSpace(c.Query("authorization"))
		}
		if token == "" {
			writeUnauthorized(c, "No token provided")
			c.Abort()
			return
		}
		claims, err := authSvc.VerifyToken(token)
		if err != nil {
			writeUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ctxUserID, claims.ID)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

func traceIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(ctxTraceID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func userIDFromContext(c *gin.Context) uint {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
