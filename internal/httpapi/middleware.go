package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
)

// CorrelationHeader carries the correlation id in and out of the API.
const CorrelationHeader = "X-Correlation-ID"

// requestLogger tags each request with a correlation id, taken from the
// request header when present, and logs one line per request.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		id := c.GetHeader(CorrelationHeader)
		if id == "" {
			id = logger.NewCorrelationID()
		}
		c.Request = c.Request.WithContext(logger.WithCorrelationID(c.Request.Context(), id))
		c.Header(CorrelationHeader, id)

		c.Next()

		entry := log.With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
			"correlation_id", id,
		)
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

func limitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}
