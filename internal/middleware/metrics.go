package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests no route matched, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

type requestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics records method, route pattern, status and latency for every request
// except those whose route is listed in skip (typically the scrape endpoint).
func Metrics(observer requestObserver, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}
	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.FullPath()]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		observer.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
