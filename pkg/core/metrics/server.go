package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/pkg/core/health"
)

// HealthTimeout bounds one /healthz request
const HealthTimeout = 2 * time.Second

// Server exposes /metrics and /healthz over HTTP
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *mdwlog.Logger
	done   chan struct{}
}

// Router builds the chi router serving the metrics registry and the
// health report. A check still running after timeout is cancelled.
func Router(m *Metrics, checks *health.Registry, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := checks.CheckWithTimeout(r.Context(), timeout)
		w.Header().Set("Content-Type", "application/json")
		if report.Status == health.StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	return r
}

// Start listens on address and serves in the background
func Start(address string, m *Metrics, checks *health.Registry, logger *mdwlog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, mdwerror.Wrapf(err, "metrics listener on %s", address).WithCode(mdwerror.CodeIOError)
	}

	s := &Server{
		srv: &http.Server{
			Handler:           Router(m, checks, HealthTimeout),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger.WithField("component", "metrics"),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorWithErr("metrics server stopped", err)
		}
	}()
	s.logger.Info("metrics endpoint listening", mdwlog.Fields{"address": ln.Addr().String()})
	return s, nil
}

// Addr returns the bound address
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server, waiting at most timeout for open requests
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
