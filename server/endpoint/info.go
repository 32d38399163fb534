package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/queuekit/version"
)

var startTime = time.Now()

// Info reports the service name, its version and process uptime.
func Info(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":    serviceName,
			"version":    version.GetShortVersion(),
			"uptime":     time.Since(startTime).Round(time.Second).String(),
			"goroutines": runtime.NumGoroutine(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}
