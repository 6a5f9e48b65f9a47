package evaluate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pagesentry/pagesentry/internal/extract"
	"github.com/pagesentry/pagesentry/internal/shared/value"
)

// BrowserConfig tunes the headless browser.
type BrowserConfig struct {
	UserAgent string
	// PageLoadWait is how long to settle after navigation and reloads.
	PageLoadWait time.Duration
	// MutationSettle is how long to settle after scroll and viewport changes.
	MutationSettle time.Duration
}

// Browser owns a chromedp exec allocator shared by all sessions.
type Browser struct {
	cfg         BrowserConfig
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
}

// NewBrowser starts an allocator with a desktop-sized window. Pages often
// serve different markup to mobile viewports, so starting desktop keeps
// learned selectors stable.
func NewBrowser(cfg BrowserConfig, logger *zap.Logger) *Browser {
	if cfg.PageLoadWait <= 0 {
		cfg.PageLoadWait = 2 * time.Second
	}
	if cfg.MutationSettle <= 0 {
		cfg.MutationSettle = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Browser{cfg: cfg, allocCtx: allocCtx, cancelAlloc: cancelAlloc, logger: logger}
}

// Close shuts down the allocator and every session spawned from it.
func (b *Browser) Close() { b.cancelAlloc() }

// Session is one live browser tab. It implements extract.Evaluator,
// extract.Mutator, and extract.ScriptRunner, so the full retry strategy set
// is available against it. Sessions are not safe for concurrent use.
type Session struct {
	browser *Browser
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// NewSession opens a tab and navigates to url.
func (b *Browser) NewSession(ctx context.Context, url string) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(b.allocCtx)

	s := &Session{
		browser: b,
		ctx:     tabCtx,
		cancel:  cancel,
		logger:  b.logger.With(zap.String("url", url)),
	}
	if err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(b.cfg.PageLoadWait),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	return s, nil
}

// Close releases the tab.
func (s *Session) Close() { s.cancel() }

// run executes chromedp actions honoring the caller's deadline. The tab
// context outlives individual calls; cancellation of one extraction must
// not tear the tab down.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(s.ctx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

// Query resolves a selector against the live DOM. "xpath:"-prefixed
// selectors run as xpath; everything else as css.
func (s *Session) Query(ctx context.Context, selector, field string) (string, bool, error) {
	expr, by := bySelector(selector)

	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(expr, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return "", false, fmt.Errorf("query %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return "", false, nil
	}

	switch {
	case field == extract.FieldText || field == "":
		var text string
		if err := s.run(ctx, chromedp.Text(expr, &text, by)); err != nil {
			return "", false, err
		}
		return normalizeWhitespace(text), true, nil

	case field == extract.FieldHTML:
		var html string
		err := s.run(ctx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
			var innerErr error
			html, innerErr = dom.GetOuterHTML().WithNodeID(nodes[0].NodeID).Do(cdpCtx)
			return innerErr
		}))
		return html, err == nil, err

	case strings.HasPrefix(field, extract.FieldAttrPrefix):
		name := strings.TrimPrefix(field, extract.FieldAttrPrefix)
		attrVal, found := attrLookup(nodes[0], name)
		return attrVal, found, nil

	default:
		return "", false, fmt.Errorf("unknown field %q", field)
	}
}

func attrLookup(n *cdp.Node, name string) (string, bool) {
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		if n.Attributes[i] == name {
			return n.Attributes[i+1], true
		}
	}
	return "", false
}

func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	expr, by := bySelector(selector)
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(expr, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return 0, fmt.Errorf("count %q: %w", selector, err)
	}
	return len(nodes), nil
}

func (s *Session) Text(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery))
	return normalizeWhitespace(text), err
}

// Scroll jumps to the vertical middle of the page, where lazy-loaded
// sections typically start rendering, then settles.
func (s *Session) Scroll(ctx context.Context) error {
	return s.run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(s.browser.cfg.MutationSettle),
	)
}

func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	return s.run(ctx, chromedp.Sleep(d))
}

func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx,
		chromedp.Reload(),
		chromedp.Sleep(s.browser.cfg.PageLoadWait),
	)
}

func (s *Session) Viewport(ctx context.Context, width, height int) error {
	return s.run(ctx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Sleep(s.browser.cfg.MutationSettle),
	)
}

// RunScript evaluates a script in the page and converts the result.
func (s *Session) RunScript(ctx context.Context, script string) (value.Value, error) {
	var result interface{}
	if err := s.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return value.Null(), fmt.Errorf("script: %w", err)
	}
	return value.FromAny(result), nil
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// PDF renders the page as PDF.
func (s *Session) PDF(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
		var innerErr error
		buf, _, innerErr = page.PrintToPDF().WithPrintBackground(true).Do(cdpCtx)
		return innerErr
	}))
	if err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return buf, nil
}

// DOM returns the current serialized document, after any dynamic rendering.
func (s *Session) DOM(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.ActionFunc(func(cdpCtx context.Context) error {
		node, innerErr := dom.GetDocument().Do(cdpCtx)
		if innerErr != nil {
			return innerErr
		}
		html, innerErr = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(cdpCtx)
		return innerErr
	}))
	if err != nil {
		return "", fmt.Errorf("dom snapshot: %w", err)
	}
	return html, nil
}

func bySelector(selector string) (string, chromedp.QueryOption) {
	if strings.HasPrefix(selector, XPathPrefix) {
		return strings.TrimPrefix(selector, XPathPrefix), chromedp.BySearch
	}
	return selector, chromedp.ByQuery
}
