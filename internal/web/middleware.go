package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appLog "schedcal/internal/log"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID keeps a caller-supplied UUID request id or assigns a new one,
// and echoes it in the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		d := time.Since(start)

		s.metrics.RequestCompleted(route, status, d)
		appLog.Debug("http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", d.Milliseconds(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}
