// File: internal/browser/engine.go

// Package browser owns the capability provider: one shared headless browser
// process, lazily launched, with one isolated context and page per session.
package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agent-browser/internal/config"
)

// Engine wraps the playwright driver and the single shared browser process.
// Initialization is deferred until the first session needs a page, so the
// server starts instantly and a failed launch surfaces as a command error
// rather than a crash at boot. A failed launch is not sticky; the next
// command attempts the launch again.
type Engine struct {
	cfg config.BrowserConfig
	log *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	closed  bool
}

// NewEngine creates an Engine. No browser resources are allocated yet.
func NewEngine(cfg config.BrowserConfig, log *zap.Logger) *Engine {
	return &Engine{cfg: cfg, log: log.Named("engine")}
}

// ensure launches the driver and browser on first use and returns the live
// browser handle.
func (e *Engine) ensure() (playwright.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("browser engine is shut down")
	}
	if e.browser != nil {
		return e.browser, nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if e.cfg.InstallDriver {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("installing playwright driver: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("starting playwright driver: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(e.cfg.Headless),
	}
	if len(e.cfg.Args) > 0 {
		launchOpts.Args = e.cfg.Args
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	e.pw = pw
	e.browser = browser
	e.log.Info("Browser engine initialized.",
		zap.Bool("headless", e.cfg.Headless),
		zap.String("browser", browser.Version()))
	return browser, nil
}

// NewPage creates an isolated context and a page inside it. When recordDir
// is non-empty the context records video into that directory.
func (e *Engine) NewPage(recordDir string) (playwright.BrowserContext, playwright.Page, error) {
	browser, err := e.ensure()
	if err != nil {
		return nil, nil, err
	}

	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  e.cfg.ViewportWidth,
			Height: e.cfg.ViewportHeight,
		},
		IgnoreHttpsErrors: playwright.Bool(e.cfg.IgnoreTLSErrors),
	}
	if e.cfg.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(e.cfg.UserAgent)
	}
	if recordDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{
			Dir: recordDir,
			Size: &playwright.Size{
				Width:  e.cfg.ViewportWidth,
				Height: e.cfg.ViewportHeight,
			},
		}
	}

	browserCtx, err := browser.NewContext(ctxOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		return nil, nil, fmt.Errorf("creating page: %w", err)
	}

	return browserCtx, page, nil
}

// Running reports whether the engine has successfully launched.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.browser != nil
}

// Shutdown closes the browser process and stops the driver. Safe to call
// multiple times and before the engine ever initialized.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.browser != nil {
		if cerr := e.browser.Close(); cerr != nil {
			err = fmt.Errorf("closing browser: %w", cerr)
		}
		e.browser = nil
	}
	if e.pw != nil {
		if serr := e.pw.Stop(); serr != nil && err == nil {
			err = fmt.Errorf("stopping playwright driver: %w", serr)
		}
		e.pw = nil
	}
	e.log.Info("Browser engine shut down.")
	return err
}
