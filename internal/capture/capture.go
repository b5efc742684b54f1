// Package capture produces viewport screenshots of web pages with headless
// Chrome, fronted by an optional TTL file cache.
package capture

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/designscore/designscore/internal/analysis"
)

// Config controls the chromedp capturer.
type Config struct {
	MaxParallel int
	UserAgent   string
	NavTimeout  time.Duration
	OutputDir   string
	DomainQPS   float64
}

// Chromedp captures screenshots using a shared headless Chrome allocator.
type Chromedp struct {
	cfg             Config
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	domainLimiters  sync.Map
	logger          *zap.Logger
	clock           analysis.Clock
}

// NewChromedp starts the allocator and warms up a browser context.
func NewChromedp(cfg Config, clock analysis.Clock, logger *zap.Logger) (*Chromedp, error) {
	if cfg.MaxParallel <= 0 {
		return nil, fmt.Errorf("capture max parallel must be > 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Chromedp{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.MaxParallel),
		logger:          logger.Named("capture"),
		clock:           clock,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (c *Chromedp) Close() {
	if c == nil {
		return
	}
	c.browserCancel()
	c.allocatorCancel()
}

// Capture navigates to rawURL at the given viewport and writes a PNG
// screenshot under the configured output directory.
func (c *Chromedp) Capture(ctx context.Context, rawURL string, viewport analysis.Viewport) (analysis.ScreenshotArtifact, error) {
	release, err := c.acquireSlot(ctx)
	if err != nil {
		return analysis.ScreenshotArtifact{}, err
	}
	defer release()

	if err := c.waitDomainBudget(ctx, rawURL); err != nil {
		return analysis.ScreenshotArtifact{}, analysis.NewStageError(
			analysis.StageScreenshotCapture, analysis.KindDependency, "capture rate limit", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, c.cfg.NavTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var (
		buf   []byte
		title string
	)
	mobile := viewport.Name == analysis.ViewportMobile.Name
	tasks := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(int64(viewport.Width), int64(viewport.Height), 1, mobile),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Title(&title),
		chromedp.CaptureScreenshot(&buf),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return analysis.ScreenshotArtifact{}, analysis.NewStageError(
			analysis.StageScreenshotCapture, analysis.KindDependency, "chromedp run", err)
	}

	path := filepath.Join(c.cfg.OutputDir, CacheKey(rawURL, viewport)+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return analysis.ScreenshotArtifact{}, analysis.NewStageError(
			analysis.StageScreenshotCapture, analysis.KindDependency, "write screenshot", err)
	}

	c.logger.Info("captured screenshot",
		zap.String("url", rawURL),
		zap.String("viewport", viewport.Name),
		zap.Int("bytes", len(buf)))

	return analysis.ScreenshotArtifact{
		Viewport:   viewport,
		LocalPath:  path,
		PageTitle:  title,
		CapturedAt: c.clock.Now().UTC(),
	}, nil
}

func (c *Chromedp) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case c.sem <- struct{}{}:
		return func() { <-c.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire capture slot: %w", ctx.Err())
	}
}

func (c *Chromedp) waitDomainBudget(ctx context.Context, rawURL string) error {
	if c.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse capture url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := c.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(c.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	return limiter.Wait(ctx)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
