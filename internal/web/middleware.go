package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs each request once it completes, at a level chosen by
// the response status.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		entry := logrus.WithFields(logrus.Fields{
			"request_id":     middleware.GetReqID(r.Context()),
			"method":         r.Method,
			"path":           path,
			"status":         ww.Status(),
			"ip":             r.RemoteAddr,
			"latency":        time.Since(start),
			"response_bytes": ww.BytesWritten(),
		})

		msg := "Request completed"
		switch {
		case ww.Status() >= 500:
			entry.Error(msg)
		case ww.Status() >= 400:
			entry.Warn(msg)
		case path == "/healthz" || path == "/metrics":
			entry.Debug(msg)
		default:
			entry.Info(msg)
		}
	})
}
