// File: internal/browser/manager.go

// Package browser owns the Chromium process and the per-attempt pages that
// publish pipelines drive. Each publish attempt exclusively owns one Page for
// its lifetime; the Manager only handles process lifecycle and teardown.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/wardrobelabs/relist/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager launches the shared Chromium allocator and hands out isolated
// pages (tabs). Pages are independent; the manager places no lock between
// them.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	pages map[string]*Page
	mu    sync.RWMutex
	wg    sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

// NewManager creates a browser manager. The Chromium process launch is
// deferred until the first page is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
		pages:  make(map[string]*Page),
	}
}

// initialize builds the exec allocator once.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts,
			chromedp.Flag("headless", m.cfg.Browser.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(m.cfg.Browser.ViewportWidth, m.cfg.Browser.ViewportHeight),
		)
		if m.cfg.Browser.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(m.cfg.Browser.UserAgent))
		}
		if m.cfg.Network.IgnoreTLSErrors {
			opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
		}
		for _, arg := range m.cfg.Browser.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		// The allocator outlives individual attempts; it is torn down in
		// Shutdown, not by the caller's context.
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.logger.Info("Browser allocator initialized.", zap.Bool("headless", m.cfg.Browser.Headless))
	})
	return m.initErr
}

// NewPage acquires a fresh, isolated page for one publish attempt. The caller
// must Close it on every exit path.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	acquireTimeout := m.cfg.Browser.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = 60 * time.Second
	}

	pageCtx, pageCancel := chromedp.NewContext(m.allocCtx)

	// Materialize the tab and connect CDP within the acquisition timeout.
	initCtx, initCancel := context.WithTimeout(pageCtx, acquireTimeout)
	defer initCancel()
	if err := chromedp.Run(initCtx); err != nil {
		pageCancel()
		return nil, fmt.Errorf("failed to acquire browser page: %w", err)
	}

	page, err := newPage(pageCtx, pageCancel, m.cfg, m.logger)
	if err != nil {
		pageCancel()
		return nil, err
	}

	m.wg.Add(1)
	page.onClose = func() {
		m.mu.Lock()
		delete(m.pages, page.ID())
		m.mu.Unlock()
		m.wg.Done()
	}

	m.mu.Lock()
	m.pages[page.ID()] = page
	m.mu.Unlock()

	m.logger.Info("Page acquired.", zap.String("page_id", page.ID()))
	return page, nil
}

// Shutdown closes all outstanding pages and tears down the allocator. It
// waits for page teardown up to the context deadline, then proceeds anyway.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	open := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		open = append(open, p)
	}
	m.mu.RUnlock()

	for _, p := range open {
		go func(p *Page) {
			if err := p.Close(); err != nil {
				m.logger.Warn("Error closing page during shutdown.", zap.String("page_id", p.ID()), zap.Error(err))
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for pages to close; forcing shutdown.")
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Shutdown grace period elapsed; forcing shutdown.")
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shut down.")
	return nil
}
