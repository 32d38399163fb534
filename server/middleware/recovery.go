package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "github.com/kbukum/queuekit/errors"
	"github.com/kbukum/queuekit/logger"
)

// Recovery converts a handler panic into a 500 with an AppError body.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithContext(r.Context()).Error("Panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				))
				appErr := apperrors.Internal(fmt.Errorf("panic: %v", rec))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(appErr.HTTPStatus)
				_ = json.NewEncoder(w).Encode(appErr.ToResponse())
			}()
			next.ServeHTTP(w, r)
		})
	}
}
