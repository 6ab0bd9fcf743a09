package middleware

import (
	"net/http"
	"time"

	chiMid "github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

type Log interface {
	Info(string, ...zap.Field)
}

// RequestLogger logs one structured entry per request.
func RequestLogger(log Log) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMid.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chiMid.GetReqID(r.Context())),
				zap.String("remote_ip", r.RemoteAddr),
			)
		})
	}
}
