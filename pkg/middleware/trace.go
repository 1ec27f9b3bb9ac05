package middleware

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/tracing"
)

// Trace opens a root span per request, keyed by the request id, and logs
// the span tree once the handler returns. It must run inside RequestID.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+normalizePath(r.URL.Path), GetRequestID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
		span.End()
		span.Log(ctx, logger.FromContext(ctx))
	})
}
