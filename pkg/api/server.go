package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modhost/pkg/host"
	"github.com/platinummonkey/modhost/pkg/httputil"
	"github.com/platinummonkey/modhost/pkg/observability"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// errLoading is reported while the pipeline is still running.
var errLoading = errors.New("mods are still loading")

// Options configures the status server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer

	// Updates adds update suggestions to the report. Optional.
	Updates host.UpdateLookup
}

// Server serves the load report, health and metrics.
type Server struct {
	core    *host.Core
	opts    Options
	logger  *logrus.Logger
	router  *mux.Router
	health  *observability.HealthChecker
	httpSrv *http.Server
}

// NewServer creates a status server for core.
func NewServer(core *host.Core, opts Options, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		core:   core,
		opts:   opts,
		logger: logger,
		router: mux.NewRouter(),
		health: observability.NewHealthChecker(opts.Version),
	}
	s.health.AddCheck("mods", s.checkInitialized)
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.health.Readiness).Methods(http.MethodGet)
	s.router.HandleFunc("/livez", s.health.Liveness).Methods(http.MethodGet)
	s.router.Handle("/metrics", observability.Handler(s.opts.Gatherer)).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/plugins", s.listPlugins).Methods(http.MethodGet)
	v1.HandleFunc("/plugins/{id}", s.getPlugin).Methods(http.MethodGet)
	v1.HandleFunc("/order", s.getOrder).Methods(http.MethodGet)
	v1.HandleFunc("/graph", s.getGraph).Methods(http.MethodGet)
}

// Handler returns the router wrapped in the standard middleware.
func (s *Server) Handler() http.Handler {
	return httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
	)(s.router)
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not
// an error.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Status server listening on %s", s.opts.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) checkInitialized(context.Context) error {
	if !s.core.Registry().AreAllInitialized() {
		return errLoading
	}
	return nil
}
