package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/queuekit/errors"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError writes err as a structured AppError body. Errors that are
// not AppErrors become a generic 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}
