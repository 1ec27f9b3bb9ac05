package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/logger"
)

// Route is an extra handler mounted next to /metrics, such as the health
// endpoints of a process that serves nothing else over HTTP.
type Route struct {
	Pattern string
	Handler http.Handler
}

// StartServer serves /metrics from gatherer, plus routes, on port in the
// background and returns the server's shutdown func. A nil gatherer serves
// the default registry.
func StartServer(port int, gatherer prometheus.Gatherer, routes ...Route) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	for _, r := range routes {
		if r.Handler != nil {
			mux.Handle(r.Pattern, r.Handler)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	log := logger.WithComponent("metrics-server")
	go func() {
		log.Info("metrics server listening", "addr", server.Addr, "extra_routes", len(routes))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	return server.Shutdown
}
