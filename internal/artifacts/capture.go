// Package artifacts saves debugging evidence when extraction fails on a
// live page: a screenshot, a PDF render, and a DOM snapshot, plus a JSON
// manifest describing what failed. Artifacts are for the human (or agent)
// reviewing the failure, so capture errors are logged and skipped rather
// than escalated.
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Mode names one capture kind.
type Mode string

const (
	ModeScreenshot Mode = "screenshot"
	ModePDF        Mode = "pdf"
	ModeDOM        Mode = "dom"
)

// Source is the page being captured. evaluate.Session implements it; static
// documents support only the DOM snapshot.
type Source interface {
	Screenshot(ctx context.Context) ([]byte, error)
	PDF(ctx context.Context) ([]byte, error)
	DOM(ctx context.Context) (string, error)
}

// Failure describes what went wrong, for the manifest.
type Failure struct {
	RunID          string    `json:"runId"`
	StepKey        string    `json:"stepKey"`
	URL            string    `json:"url"`
	FailedSelector string    `json:"failedSelector,omitempty"`
	TriedSelectors []string  `json:"triedSelectors,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Saved is one written artifact.
type Saved struct {
	Mode Mode   `json:"mode"`
	Path string `json:"path"`
	Size int    `json:"size"`
}

// Bundle is the result of one capture pass.
type Bundle struct {
	Dir      string  `json:"dir"`
	Failure  Failure `json:"failure"`
	Captures []Saved `json:"captures"`
}

// Config tunes the capturer.
type Config struct {
	// BaseDir is the root artifact directory; each run gets a subdirectory.
	BaseDir string
	// Modes selects what to capture. Empty means all modes.
	Modes []Mode
	// Timeout bounds each individual capture.
	Timeout time.Duration
}

// Capturer writes failure artifacts under a per-run directory.
type Capturer struct {
	cfg    Config
	logger *zap.Logger
}

// NewCapturer creates a capturer.
func NewCapturer(cfg Config, logger *zap.Logger) *Capturer {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "artifacts"
	}
	if len(cfg.Modes) == 0 {
		cfg.Modes = []Mode{ModeScreenshot, ModePDF, ModeDOM}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{cfg: cfg, logger: logger}
}

// Capture grabs all configured modes concurrently, writes them under the
// run's directory, and drops a manifest.json alongside. Individual capture
// failures are logged and omitted from the bundle; only a filesystem-level
// failure aborts.
func (c *Capturer) Capture(ctx context.Context, src Source, failure Failure) (*Bundle, error) {
	if failure.Timestamp.IsZero() {
		failure.Timestamp = time.Now().UTC()
	}

	dir := filepath.Join(c.cfg.BaseDir, failure.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	stamp := failure.Timestamp.Format("20060102T150405")
	prefix := failure.StepKey
	if prefix == "" {
		prefix = "step"
	}

	var (
		mu    sync.Mutex
		saved []Saved
		wg    sync.WaitGroup
	)

	capture := func(mode Mode, fn func(context.Context) ([]byte, error), ext string) {
		defer wg.Done()

		capCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		data, err := fn(capCtx)
		if err != nil {
			c.logger.Warn("artifact capture failed",
				zap.String("mode", string(mode)),
				zap.String("run_id", failure.RunID),
				zap.Error(err))
			return
		}

		path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, stamp, ext))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			c.logger.Warn("artifact write failed",
				zap.String("path", path), zap.Error(err))
			return
		}

		mu.Lock()
		saved = append(saved, Saved{Mode: mode, Path: path, Size: len(data)})
		mu.Unlock()
	}

	for _, mode := range c.cfg.Modes {
		wg.Add(1)
		switch mode {
		case ModeScreenshot:
			go capture(ModeScreenshot, src.Screenshot, "png")
		case ModePDF:
			go capture(ModePDF, src.PDF, "pdf")
		case ModeDOM:
			go capture(ModeDOM, func(ctx context.Context) ([]byte, error) {
				html, err := src.DOM(ctx)
				return []byte(html), err
			}, "html")
		default:
			wg.Done()
			c.logger.Warn("unknown artifact mode", zap.String("mode", string(mode)))
		}
	}
	wg.Wait()

	bundle := &Bundle{Dir: dir, Failure: failure, Captures: saved}

	manifest, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	manifestPath := filepath.Join(dir, fmt.Sprintf("%s-%s.manifest.json", prefix, stamp))
	if err := os.WriteFile(manifestPath, manifest, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	c.logger.Info("failure artifacts captured",
		zap.String("run_id", failure.RunID),
		zap.String("step", failure.StepKey),
		zap.Int("captures", len(saved)),
		zap.String("dir", dir))

	return bundle, nil
}
