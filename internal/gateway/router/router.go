// Package router assembles the HTTP surface of "sanesearch serve" and
// applies the middleware chain.
package router

import (
	"net/http"
	"time"

	gwmw "github.com/Adithya-Monish-Kumar-K/sanesearch/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/gateway/ratelimit"
	pkgmw "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
)

// Routes are the handlers the router mounts. Nil handlers are not mounted.
type Routes struct {
	Search          http.HandlerFunc
	Ingest          http.HandlerFunc
	Analytics       http.Handler
	CacheStats      http.HandlerFunc
	CacheInvalidate http.HandlerFunc
	Live            http.HandlerFunc
	Ready           http.HandlerFunc
	Metrics         http.Handler
}

// Options configure the middleware chain.
type Options struct {
	Metrics        *metrics.Metrics
	Limiter        *ratelimit.Limiter
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// New builds the HTTP handler.
//
// Route table:
//
//	GET    /api/v1/search?q=          simple search
//	POST   /api/v1/documents          ingest one document or an array
//	GET    /api/v1/analytics          aggregated search statistics
//	GET    /api/v1/cache/stats        result cache counters
//	POST   /api/v1/cache/invalidate   drop cached results
//	GET    /health/live, /health/ready
//	GET    /metrics
//
// Middleware chain (outermost first):
//
//	RequestID → Trace → Metrics → CORS → RateLimit → Timeout → handler
func New(routes Routes, opts Options) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		if h != nil {
			mux.Handle(pattern, h)
		}
	}

	handle("GET /health/live", nilSafe(routes.Live))
	handle("GET /health/ready", nilSafe(routes.Ready))
	handle("GET /metrics", routes.Metrics)

	api := http.NewServeMux()
	mount := func(pattern string, h http.Handler) {
		if h != nil {
			api.Handle(pattern, h)
		}
	}
	mount("GET /api/v1/search", nilSafe(routes.Search))
	mount("POST /api/v1/documents", nilSafe(routes.Ingest))
	mount("GET /api/v1/analytics", routes.Analytics)
	mount("GET /api/v1/cache/stats", nilSafe(routes.CacheStats))
	mount("POST /api/v1/cache/invalidate", nilSafe(routes.CacheInvalidate))

	var apiChain http.Handler = api
	if opts.RequestTimeout > 0 {
		apiChain = pkgmw.Timeout(opts.RequestTimeout)(apiChain)
	}
	mux.Handle("/api/", apiChain)

	var chain http.Handler = mux
	if opts.Limiter != nil {
		chain = gwmw.RateLimit(opts.Limiter)(chain)
	}
	if len(opts.CORSOrigins) > 0 {
		chain = gwmw.CORS(gwmw.NewCORSConfig(opts.CORSOrigins))(chain)
	}
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	chain = pkgmw.Trace(chain)
	chain = pkgmw.RequestID(chain)
	return chain
}

// nilSafe keeps a nil HandlerFunc from becoming a non-nil http.Handler.
func nilSafe(f http.HandlerFunc) http.Handler {
	if f == nil {
		return nil
	}
	return f
}
