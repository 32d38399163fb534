package middleware

import (
	"net/http"

	"github.com/kbukum/queuekit/util"
)

const defaultMaxBodySize = 1 << 20

// BodySizeLimit caps the request body at maxSize ("64KB", "1MB").
func BodySizeLimit(maxSize string) Middleware {
	size := util.ParseSize(maxSize, defaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}
