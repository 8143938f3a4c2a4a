package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/scriptbridge/internal/api/http"
	"github.com/GriffinCanCode/scriptbridge/internal/api/middleware"
	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/domain/contexts"
	"github.com/GriffinCanCode/scriptbridge/internal/engine"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	manager    *contexts.Manager
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a server that registers its metrics globally.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		logger = l
	}
	return New(cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// New creates a server with explicit logging and metrics registries.
func New(cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	defaults, err := cfg.Bridge.Options()
	if err != nil {
		return nil, fmt.Errorf("bridge options: %w", err)
	}
	// Fail on a bad option bag now rather than on the first request.
	if _, err := bridge.ParseConfig(defaults); err != nil {
		return nil, err
	}

	logger.Info("Initializing scriptbridge server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Int("max_contexts", cfg.Bridge.MaxContexts),
	)

	metrics := monitoring.NewMetrics(reg)
	logger.Info("Performance monitoring initialized")

	eng := engine.New(logger.Component("engine").Logger, engine.Builtins...)
	manager := contexts.NewManager(defaults, cfg.Bridge.MaxContexts, logger.Component("bridge"),
		bridge.WithEngine(eng),
		bridge.WithRecorder(metrics),
	)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Component("http").Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
		}))
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
	}

	handlers := api.NewHandlers(manager, metrics, logger.Component("http").Logger)
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		manager: manager,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the context manager.
func (s *Server) Manager() *contexts.Manager {
	return s.manager
}

// Run starts the HTTP server and blocks until it stops. A clean Shutdown
// returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// destroys every live context.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	closed := s.manager.CloseAll()
	s.logger.Info("Server stopped", zap.Int("contexts_closed", closed))
	_ = s.logger.Sync()
	return err
}
