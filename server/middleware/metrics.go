package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/queuekit/observability"
)

// Metrics records request count, latency and in-flight requests. A nil m
// disables it.
func Metrics(m *observability.Metrics, service string) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			m.RecordRequestStart(ctx, r.Method)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			m.RecordRequestEnd(ctx, service, r.Method, sw.status, time.Since(start))
			if sw.status >= 500 {
				m.RecordError(ctx, "http_"+strconv.Itoa(sw.status), "server")
			}
		})
	}
}
