package requestid

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header carries the correlation id in both directions.
	Header     = "X-Request-ID"
	contextKey = "request_id"
	maxLength  = 128
)

// Middleware tags every request with a correlation id, reusing a sane inbound one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(Header))
		if id == "" || len(id) > maxLength {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}
