package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/livepen/internal/api/http"
	"github.com/GriffinCanCode/livepen/internal/api/middleware"
	"github.com/GriffinCanCode/livepen/internal/api/ws"
	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/domain/workspace"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/storage"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livepen/internal/providers/browser"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	store    *workspace.Store
	agg      *preview.Aggregator
	renderer *preview.Renderer
	boundary browser.Provider
	hub      *ws.Hub
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewLogger builds the process logger from configuration
func NewLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if cfg.Logging.Development {
		lc = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		lc.Level = cfg.Logging.Level
	}
	return logging.New(lc)
}

// NewKV opens the configured persistence collaborator
func NewKV(cfg *config.Config, logger *logging.Logger) (storage.KV, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryKV(), nil
	default:
		kv, err := storage.NewFileKV(cfg.Storage.Dir, logger.Named("storage").Logger)
		if err != nil {
			return nil, err
		}
		return kv, nil
	}
}

// NewBoundary creates the configured preview engine
func NewBoundary(cfg *config.Config, logger *logging.Logger) (browser.Provider, error) {
	return browser.NewBoundary(browser.Config{
		Engine:           browser.Engine(cfg.Preview.Engine),
		ScriptTimeout:    cfg.Preview.ScriptTimeout.Std(),
		MaxCallStack:     cfg.Preview.MaxCallStack,
		ChromePath:       cfg.Preview.ChromePath,
		BreakerThreshold: cfg.Preview.BreakerThreshold,
		BreakerCooldown:  cfg.Preview.BreakerCooldown.Std(),
	}, logger.Named("browser").Logger)
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing LivePen server",
		zap.String("addr", cfg.Addr()),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("engine", cfg.Preview.Engine),
		zap.Duration("debounce", cfg.Preview.Debounce.Std()),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("livepen", logger.Logger)

	kv, err := NewKV(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	store := workspace.NewStore(id.Default(), kv, logger).WithMetrics(metrics)
	if err := store.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	boundary, err := NewBoundary(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start preview engine: %w", err)
	}

	s := &Server{
		store:    store,
		renderer: preview.NewRenderer(boundary, logger).WithMetrics(metrics),
		boundary: boundary,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}
	s.agg = preview.NewAggregator(store, cfg.Preview.Debounce.Std(), s.render, logger).WithMetrics(metrics)
	s.hub = ws.NewHub(store, s.renderer, logger).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.routes()

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) routes() {
	cfg := s.config
	router := s.router

	router.Use(middleware.Recovery(s.logger.Logger))
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Server.AllowOrigins
	}
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(middleware.RequestLogger(s.logger.Named("access").Logger))

	apihttp.NewHandlers(s.store, s.agg, s.renderer, s.logger).
		WithMetrics(s.metrics).
		Register(router)

	router.GET("/stream", ws.NewHandler(s.hub).HandleConnection)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins following the workspace. Run calls it.
func (s *Server) Start() {
	s.hub.Start()
	s.agg.Start()
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.Start()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hub first so open sockets do not hold Shutdown up
	s.hub.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// Close releases the preview engine and flushes telemetry
func (s *Server) Close() error {
	s.agg.Stop()
	s.hub.Stop()

	var errs []error
	if err := s.renderer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close renderer: %w", err))
	}
	if err := s.boundary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close preview engine: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.tracer.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Shutdown incomplete", zap.Error(err))
		_ = s.logger.Sync()
		return err
	}
	s.logger.Info("Server stopped")
	_ = s.logger.Sync()
	return nil
}

// render is the aggregator sink: one traced rebuild per settled composite
func (s *Server) render(c types.Composite) {
	ctx, span := s.tracer.Start(context.Background(), "preview.render",
		attribute.Int("composite.html_bytes", len(c.Markup)),
		attribute.Int("composite.css_bytes", len(c.Style)),
		attribute.Int("composite.js_bytes", len(c.Script)),
	)
	ctx, cancel := context.WithTimeout(ctx, s.config.Preview.ScriptTimeout.Std()+shutdownTimeout)
	defer cancel()

	frame, err := s.renderer.Render(ctx, c)
	if err == nil {
		span.SetAttributes(
			attribute.Int64("frame.seq", int64(frame.Seq)),
			attribute.String("frame.handle_id", frame.HandleID),
			attribute.Bool("frame.reused", frame.Reused),
		)
	} else {
		s.logger.Warn("preview rebuild failed",
			logging.Trace(tracing.TraceID(ctx)),
			zap.Error(err))
	}
	tracing.Finish(span, err)
}
