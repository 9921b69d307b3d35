// Package middleware provides the chi middleware stack: slog request
// logging with trace ids and a token-bucket limiter for the activation
// endpoint.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	apierrors "vmscli/internal/errors"
	"vmscli/internal/infrastructure"
)

// RequestLogger logs one structured line per request, stamped with a trace
// id that is also returned to the client.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := infrastructure.NewTraceID()
			ctx := infrastructure.WithTraceID(r.Context(), traceID)
			w.Header().Set("X-Trace-ID", traceID)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("trace_id", traceID),
			)
		})
	}
}

// RateLimit bounds request throughput with a shared token bucket. Applied
// to the activation and login endpoints to slow down key guessing.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				render.Render(w, r, apierrors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
