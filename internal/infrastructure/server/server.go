package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	api "github.com/pagesentry/pagesentry/internal/api/http"
	"github.com/pagesentry/pagesentry/internal/api/middleware"
	"github.com/pagesentry/pagesentry/internal/artifacts"
	"github.com/pagesentry/pagesentry/internal/evaluate"
	"github.com/pagesentry/pagesentry/internal/extract"
	"github.com/pagesentry/pagesentry/internal/infrastructure/config"
	"github.com/pagesentry/pagesentry/internal/infrastructure/logging"
	"github.com/pagesentry/pagesentry/internal/infrastructure/monitoring"
	"github.com/pagesentry/pagesentry/internal/infrastructure/tracing"
	"github.com/pagesentry/pagesentry/internal/run"
	"github.com/pagesentry/pagesentry/internal/store"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	browser *evaluate.Browser
	store   *store.Store
	logger  *zap.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	var logger *zap.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("initializing PageSentry server",
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Path),
		zap.Bool("browser", cfg.Browser.Enabled),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Initialize request tracing
	tracer := tracing.New("pagesentry", logger)

	// Selector cache and run history
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Static page fetcher
	fetcher := evaluate.NewFetcher(&evaluate.FetchConfig{
		Timeout:       cfg.Fetch.Timeout,
		MaxRetries:    cfg.Fetch.MaxRetries,
		UserAgent:     cfg.Fetch.UserAgent,
		RatePerSecond: cfg.Fetch.RatePerSecond,
	}, logger)

	// Headless browser (optional)
	var browser *evaluate.Browser
	if cfg.Browser.Enabled {
		browser = evaluate.NewBrowser(evaluate.BrowserConfig{
			UserAgent:    cfg.Browser.UserAgent,
			PageLoadWait: cfg.Browser.PageLoadWait,
		}, logger)
		logger.Info("headless browser sessions enabled")
	}

	// Failure artifact capture
	capturer := artifacts.NewCapturer(artifacts.Config{
		BaseDir: cfg.Artifacts.Dir,
		Timeout: cfg.Artifacts.Timeout,
	}, logger)

	// Extraction engine and runner
	engine := extract.NewEngine(
		extract.WithLogger(logger),
		extract.WithObserver(metrics),
	)
	runner := run.NewRunner(engine,
		run.WithStore(st),
		run.WithCapturer(capturer),
		run.WithRunnerLogger(logger),
		run.WithRecorder(metrics),
		run.WithPolicy(run.Policy{DegradedIsSuccess: cfg.Run.DegradedIsSuccess}),
		run.WithDefaultRetry(&extract.RetryPolicy{MaxAttempts: cfg.Run.MaxAttempts}),
	)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := api.NewHandlers(engine, runner, fetcher, browser, st, metrics, tracer, logger)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Extraction
	router.POST("/extract", handlers.Extract)

	// Runs
	router.POST("/run", handlers.StartRun)
	router.GET("/runs", handlers.ListRuns)
	router.GET("/runs/:id", handlers.GetRun)

	// Selector cache
	router.GET("/selectors", handlers.DomainSelectors)
	router.GET("/selectors/stats", handlers.SelectorStats)
	router.GET("/selectors/domains", handlers.SelectorDomains)
	router.DELETE("/selectors", handlers.ClearSelectors)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("server initialized")

	return &Server{
		router:  router,
		browser: browser,
		store:   st,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("shutting down server")

	if s.browser != nil {
		s.browser.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close store", zap.Error(err))
			return fmt.Errorf("close store: %w", err)
		}
	}

	s.logger.Sync()
	return nil
}
