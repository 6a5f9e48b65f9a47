package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pagesentry/pagesentry/internal/evaluate"
	"github.com/pagesentry/pagesentry/internal/extract"
	"github.com/pagesentry/pagesentry/internal/infrastructure/monitoring"
	"github.com/pagesentry/pagesentry/internal/infrastructure/tracing"
	"github.com/pagesentry/pagesentry/internal/run"
	"github.com/pagesentry/pagesentry/internal/store"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	engine  *extract.Engine
	runner  *run.Runner
	fetcher *evaluate.Fetcher
	browser *evaluate.Browser
	store   *store.Store
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	logger  *zap.Logger
}

// NewHandlers creates a new handler set. browser and store may be nil when
// the corresponding feature is disabled.
func NewHandlers(
	engine *extract.Engine,
	runner *run.Runner,
	fetcher *evaluate.Fetcher,
	browser *evaluate.Browser,
	st *store.Store,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		engine:  engine,
		runner:  runner,
		fetcher: fetcher,
		browser: browser,
		store:   st,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "PageSentry",
		"version": "1.0.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"browser": gin.H{"enabled": h.browser != nil},
		"fetcher": gin.H{"breakerState": h.fetcher.BreakerState().String()},
		"metrics": h.metrics.Summarize(),
	}
	if h.store != nil {
		if stats, err := h.store.Stats(c.Request.Context()); err == nil {
			resp["selectorCache"] = stats
		}
	}
	c.JSON(http.StatusOK, resp)
}

// pageRequest names the page a handler should work against. Exactly one
// acquisition mode applies: inline html, a live browser session, or a plain
// fetch.
type pageRequest struct {
	URL     string `json:"url"`
	HTML    string `json:"html,omitempty"`
	Browser bool   `json:"browser,omitempty"`
}

// validate reports whether the page request names a page at all. Acquisition
// failures beyond this are upstream errors, not client errors.
func (pr pageRequest) validate() error {
	if pr.URL == "" && pr.HTML == "" {
		return fmt.Errorf("url or html is required")
	}
	if pr.Browser && pr.URL == "" {
		return fmt.Errorf("url is required for browser sessions")
	}
	return nil
}

// acquirePage turns a pageRequest into an evaluator. The returned closer is
// non-nil only for evaluators that hold external resources.
func (h *Handlers) acquirePage(c *gin.Context, pr pageRequest) (extract.Evaluator, func(), error) {
	ctx := c.Request.Context()

	switch {
	case pr.HTML != "":
		doc, err := evaluate.ParseDocument(pr.HTML, pr.URL)
		if err != nil {
			return nil, nil, err
		}
		return doc, nil, nil

	case pr.Browser:
		if h.browser == nil {
			return nil, nil, fmt.Errorf("browser sessions are disabled")
		}
		if pr.URL == "" {
			return nil, nil, fmt.Errorf("url is required for browser sessions")
		}
		session, err := h.browser.NewSession(ctx, pr.URL)
		if err != nil {
			return nil, nil, err
		}
		return session, session.Close, nil

	default:
		if pr.URL == "" {
			return nil, nil, fmt.Errorf("url or html is required")
		}
		doc, err := h.fetcher.Fetch(ctx, pr.URL)
		if err != nil {
			return nil, nil, err
		}
		return doc, nil, nil
	}
}
