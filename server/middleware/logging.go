package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/queuekit/logger"
)

// quietPaths are probed often and not worth a log line.
var quietPaths = map[string]bool{
	"/health":  true,
	"/alive":   true,
	"/ready":   true,
	"/version": true,
}

// RequestLogger logs every request with method, path, status and duration.
// Probe paths are skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			fields := logger.DurationFields("http", time.Since(start))
			fields["method"] = r.Method
			fields["path"] = r.URL.Path
			fields[logger.FieldStatus] = sw.status
			logByStatus(log.WithContext(r.Context()), fields, sw.status)
		})
	}
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Debug("Request completed", fields)
	}
}
