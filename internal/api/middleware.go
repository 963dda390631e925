package api

import (
	"net/http"
	"strconv"
	"time"

	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/common/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs one line per request and counts it by route pattern.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

			log.Info("http request", map[string]interface{}{
				"requestId": middleware.GetReqID(r.Context()),
				"method":    r.Method,
				"route":     route,
				"status":    status,
				"bytes":     ww.BytesWritten(),
				"duration":  time.Since(start).String(),
			})
		})
	}
}
