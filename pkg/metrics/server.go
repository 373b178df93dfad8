package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes /healthz and /metrics on a dedicated port.
type Server struct {
	server *http.Server
	log    *logrus.Logger
}

// NewServer builds a Server bound to ":port".
func NewServer(port string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		server: &http.Server{Addr: fmt.Sprintf(":%s", port), Handler: r},
		log:    logger,
	}
}

// StartAsync runs the server's Serve loop in a background goroutine,
// logging (rather than panicking on) any error other than the expected
// ErrServerClosed from a graceful Stop.
func (s *Server) StartAsync() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("metrics server exited unexpectedly")
		}
	}()
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
