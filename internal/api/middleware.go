package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"filekv/internal/logs"
	"filekv/internal/metrics"
)

// LoggingMiddleware logs one line per request through logger.
func LoggingMiddleware(logger *logs.Logger, reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			reg.Inc(metrics.HTTPRequestsTotal)
			logger.Infof("%s %s %d %dB %s req=%s",
				r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start), middleware.GetReqID(r.Context()))
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 and an ERROR log line.
func RecoveryMiddleware(logger *logs.Logger, reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					reg.Inc(metrics.HTTPPanicsTotal)
					logger.Errorf("panic recovered: %v (%s %s)", err, r.Method, r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
