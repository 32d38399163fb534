package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apperrors "github.com/kbukum/queuekit/errors"
	"github.com/kbukum/queuekit/logger"
	"github.com/kbukum/queuekit/observability"
	"github.com/kbukum/queuekit/pipeline"
	"github.com/kbukum/queuekit/resilience"
	"github.com/kbukum/queuekit/server/endpoint"
	"github.com/kbukum/queuekit/server/middleware"
)

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics through m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is a Gin engine mounted on a ServeMux and served over HTTP/1.1 and
// h2c on one port.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	stack      []middleware.Middleware
	config     Config
	service    string
	metrics    *observability.Metrics
	log        *logger.Logger

	mu         sync.Mutex
	listener   net.Listener
	cancelBase context.CancelFunc

	runs       sync.WaitGroup
	activeRuns atomic.Int64
}

// New creates a Server. No middleware or routes are registered yet.
func New(cfg Config, service string, log *logger.Logger, opts ...Option) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.NoRoute(func(c *gin.Context) {
		endpoint.RespondWithError(c, apperrors.NotFound("route", c.Request.URL.Path))
	})

	mux := http.NewServeMux()
	mux.Handle("/", engine)

	s := &Server{
		engine:  engine,
		mux:     mux,
		config:  cfg,
		service: service,
		log:     log.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handle mounts an http.Handler beside Gin on the root mux.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("Handler mounted", logger.Fields("pattern", pattern))
}

// Use appends middleware to the server-level stack.
func (s *Server) Use(mw ...middleware.Middleware) {
	s.stack = append(s.stack, mw...)
}

// Handler returns the full handler: middleware stack around the mux, wrapped
// for h2c.
func (s *Server) Handler() http.Handler {
	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          s.config.IdleTimeout,
	}
	return h2c.NewHandler(middleware.Chain(s.stack...)(s.mux), h2s)
}

// Start binds the port and serves in the background. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.httpServer.Handler = s.Handler()

	// request contexts derive from base so Stop can unwind open streams
	base, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	s.httpServer.BaseContext = func(net.Listener) context.Context { return base }

	s.mu.Lock()
	s.listener = listener
	s.cancelBase = cancelBase
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Stop shuts the server down. Open streams get Config.ShutdownTimeout to
// finish; after that their request contexts are cancelled and Stop waits for
// the runs to join their producers.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)

	s.mu.Lock()
	cancelBase := s.cancelBase
	s.listener, s.cancelBase = nil, nil
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Grace period over, aborting open streams", logger.Fields(
			"runs", s.activeRuns.Load(),
			logger.FieldError, err.Error(),
		))
	}
	if cancelBase != nil {
		cancelBase()
	}
	s.runs.Wait()

	if err != nil {
		if cerr := s.httpServer.Close(); cerr != nil {
			s.log.Error("Server shutdown error", logger.Fields(logger.FieldError, cerr.Error()))
			return fmt.Errorf("server shutdown error: %w", cerr)
		}
	}
	s.log.Info("HTTP server shut down successfully")
	return nil
}

// ActiveRuns returns the number of /v1/runs streams in flight.
func (s *Server) ActiveRuns() int64 {
	return s.activeRuns.Load()
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

func (s *Server) listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// ApplyMiddleware installs the standard stack: recovery, request ID,
// tracing, metrics, CORS, body-size limit, request logging.
func (s *Server) ApplyMiddleware() {
	s.Use(
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.Metrics(s.metrics, s.service),
		middleware.CORS(&s.config.CORS),
		middleware.BodySizeLimit(s.config.MaxBodySize),
		middleware.RequestLogger(s.log),
	)
}

// RegisterDefaultEndpoints registers /health, /alive, /ready, /info and /version.
func (s *Server) RegisterDefaultEndpoints(version string, checker endpoint.HealthChecker) {
	s.engine.GET("/health", endpoint.Health(s.service, version, checker))
	s.engine.GET("/alive", endpoint.Liveness(s.service))
	s.engine.GET("/ready", endpoint.Readiness(s.service, checker))
	s.engine.GET("/info", endpoint.Info(s.service))
	s.engine.GET("/version", endpoint.Version())
}

// RegisterRuns exposes POST /v1/runs over the given default run config,
// admitting at most Config.MaxConcurrentRuns streams at once.
func (s *Server) RegisterRuns(base pipeline.Config, opts ...pipeline.Option) {
	var bh *resilience.Bulkhead
	if s.config.MaxConcurrentRuns > 0 {
		bh = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "pipeline runner",
			MaxConcurrent: s.config.MaxConcurrentRuns,
			MaxWait:       s.config.RunWait,
			OnReject: func(name string, _ error) {
				if s.metrics != nil {
					s.metrics.RecordRejected(context.Background(), name)
				}
			},
		})
	}
	s.engine.POST("/v1/runs", endpoint.Limit(bh), s.trackRun, endpoint.Runs(base, opts...))
}

func (s *Server) trackRun(c *gin.Context) {
	s.runs.Add(1)
	s.activeRuns.Add(1)
	defer func() {
		s.activeRuns.Add(-1)
		s.runs.Done()
	}()
	c.Next()
}
