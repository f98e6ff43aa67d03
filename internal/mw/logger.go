package mw

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"yard-occupancy-backend/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestLogger logs one structured line per request and attaches the request
// fields to the request context for downstream log calls. A caller supplied
// X-Request-ID is kept, otherwise a new one is generated.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		fields := logrus.Fields{
			"request_id":  requestID,
			"http.method": c.Request.Method,
			"http.path":   c.Request.URL.Path,
			"client_ip":   c.ClientIP(),
		}
		c.Request = c.Request.WithContext(logging.NewContext(c.Request.Context(), fields))

		c.Next()

		entry := logging.WithContext(c.Request.Context()).WithFields(logrus.Fields{
			"http.status": c.Writer.Status(),
			"latency_ms":  time.Since(start).Milliseconds(),
		})
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}
