package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dataportal-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route. Raw paths would
// carry uuids and unbounded query shapes into the label set.
const unmatchedRoute = "unmatched"

// Metrics observes every request against the route template it matched, so
// /api/files/:uuid and /api/download/:uuid stay one series each.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
