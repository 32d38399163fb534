package endpoint

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/queuekit/errors"
	"github.com/kbukum/queuekit/logger"
	"github.com/kbukum/queuekit/resilience"
)

// Limit holds a bulkhead slot for the rest of the handler chain. Requests
// that cannot get one are answered with 503. A nil bulkhead admits all.
func Limit(bh *resilience.Bulkhead) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bh == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		release, err := bh.Acquire(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("Request rejected", logger.Fields(
				"bulkhead", bh.Name(),
				"in_use", bh.InUse(),
				logger.FieldError, err.Error(),
			))
			RespondWithError(c, apperrors.ServiceUnavailable(bh.Name()).
				WithCause(err).
				WithDetail("max_concurrent", bh.MaxConcurrent()))
			return
		}
		defer release()
		c.Next()
	}
}
