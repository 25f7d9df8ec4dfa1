package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/kindred/internal/auth"
)

// observe records request metrics for every route and writes a mutation log
// line for every non-GET request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		took := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.Metrics.HTTPRequest(c.Request.Method, route, status, took)

		if c.Request.Method == http.MethodGet {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("userId", auth.CurrentUserID(c)),
			zap.Int64("tookMs", took.Milliseconds()),
			zap.String("relationType", c.GetString(relationTypeKey)),
		}
		if status >= http.StatusBadRequest {
			if err := c.Errors.Last(); err != nil {
				fields = append(fields, zap.Error(err.Err))
			}
			s.Logger.Warn("mutation", append(fields, zap.String("evt", "mutation_error"))...)
			return
		}
		s.Logger.Info("mutation", append(fields, zap.String("evt", "mutation"))...)
	}
}
