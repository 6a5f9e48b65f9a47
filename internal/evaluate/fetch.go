package evaluate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pagesentry/pagesentry/internal/infrastructure/resilience"
)

const defaultUserAgent = "PageSentry/1.0"

// FetchConfig tunes the static fetcher.
type FetchConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	// RatePerSecond caps outbound requests; zero means unlimited.
	RatePerSecond float64
}

// Fetcher retrieves page markup over plain HTTP and parses it into a static
// Document. Transport-level retries, rate limiting, and a circuit breaker
// keep a misbehaving host from stalling runs; extraction-level retries are
// a separate concern and live with the engine.
type Fetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// NewFetcher creates a fetcher. A nil config uses defaults.
func NewFetcher(cfg *FetchConfig, logger *zap.Logger) *Fetcher {
	if cfg == nil {
		cfg = &FetchConfig{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), int(cfg.RatePerSecond)+1)
	}

	breaker := resilience.New("fetch", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// target sites vary in reliability; trip only on sustained failure
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("fetch breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Fetcher{client: client, limiter: limiter, breaker: breaker, logger: logger}
}

// Fetch retrieves the page at url and parses it. The returned Document
// carries the final URL after redirects so urlContains checks see what the
// browser would.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var resp *resty.Response
	err := f.breaker.Do(func() error {
		var reqErr error
		resp, reqErr = f.client.R().SetContext(ctx).Get(url)
		if reqErr != nil {
			return reqErr
		}
		if resp.StatusCode() >= 500 {
			return fmt.Errorf("server error: %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetch %s: %s", url, resp.Status())
	}

	finalURL := url
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}

	f.logger.Debug("fetched page",
		zap.String("url", finalURL),
		zap.Int("status", resp.StatusCode()),
		zap.Int("bytes", len(resp.Body())),
		zap.Duration("elapsed", resp.Time()))

	return ParseDocument(string(resp.Body()), finalURL)
}

// BreakerState exposes the breaker state for health reporting.
func (f *Fetcher) BreakerState() resilience.State {
	return f.breaker.State()
}
