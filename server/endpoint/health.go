package endpoint

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/queuekit/component"
	"github.com/kbukum/queuekit/observability"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// Health reports service health aggregated over every component.
// It answers 503 when any component is down.
func Health(serviceName, version string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.NewServiceHealth(serviceName, version)
		if checker != nil {
			for _, h := range checker(c.Request.Context()) {
				sh.AddComponent(observability.FromComponent(h))
			}
		}

		status := http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, sh)
	}
}
