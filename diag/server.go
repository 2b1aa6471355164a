// Package diag serves the runtime diagnostics surface of the asset subsystem
// over HTTP: cache occupancy and counters, quality control, frame figures
// and health.
package diag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/KOMKZ/go-yogan-assets/health"
	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/KOMKZ/go-yogan-assets/manager"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Server diagnostics HTTP server
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *logger.CtxZapLogger
	tp     trace.TracerProvider

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracerProvider traces every request through otelgin
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tp = tp }
}

// NewServer builds the engine and routes. samples and agg may be nil.
func NewServer(cfg Config, mgr *manager.Manager, samples SampleSource, agg *health.Aggregator, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid diag config: %w", err)
	}
	if mgr == nil {
		return nil, errors.New("diag: asset manager is required")
	}

	s := &Server{cfg: cfg, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if s.tp != nil {
		engine.Use(otelgin.Middleware("scene-assets-diag", otelgin.WithTracerProvider(s.tp)))
	}
	engine.Use(requestLog(s.logger, "/healthz"), recovery(s.logger))
	engine.NoRoute(noRoute)
	engine.NoMethod(noMethod)

	h := &handlers{mgr: mgr, samples: samples, health: agg, srv: s}
	h.register(engine)

	s.engine = engine
	return s, nil
}

// Handler the routed engine, for tests and embedding
func (s *Server) Handler() http.Handler { return s.engine }

// Addr bound address once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Start binds the address and serves in the background. A bind failure is
// returned directly.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.httpSrv = &http.Server{Handler: s.engine}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("diagnostics server stopped", zap.Error(err))
		}
	}(s.httpSrv)

	s.logger.Info("diagnostics server started", zap.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown stops accepting and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}
	s.logger.Info("diagnostics server stopped")
	return nil
}
