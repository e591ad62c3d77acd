package rest

import (
	"net/http"
	"time"

	"gremio-backoffice/internal/logger"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger puts a request scoped logger in the context and writes one line per request.
func RequestLogger(log *zap.Logger, tenantHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if tenant := r.Header.Get(tenantHeader); tenant != "" {
				fields = append(fields, zap.String("tenant", tenant))
			}
			switch {
			case ww.Status() >= 500:
				reqLog.Error("http request", fields...)
			case ww.Status() >= 400:
				reqLog.Warn("http request", fields...)
			default:
				reqLog.Info("http request", fields...)
			}
		})
	}
}
