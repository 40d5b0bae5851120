package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes /metrics and /health on a dedicated port, separate
// from the admin surface so metrics scraping never contends with
// operator requests.
type Server struct {
	server *http.Server
	log    *zap.Logger
}

// NewServer builds a metrics server bound to port (no leading colon).
func NewServer(port string, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		},
		log: log,
	}
}

// StartAsync starts the server in a background goroutine. Errors other
// than a clean shutdown are logged, not returned, since the caller has
// already moved on by the time a listen failure would surface.
func (s *Server) StartAsync() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("metrics server stopped unexpectedly", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
