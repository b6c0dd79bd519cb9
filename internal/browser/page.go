// File: internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wardrobelabs/relist/api/schemas"
	"github.com/wardrobelabs/relist/internal/browser/netwatch"
	"github.com/wardrobelabs/relist/internal/config"
	"github.com/wardrobelabs/relist/internal/locator"
)

// Page is one exclusively-owned browser tab driving one publish attempt.
// It implements locator.Surface.
type Page struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	watcher *netwatch.Watcher

	onClose   func()
	closeOnce sync.Once
}

var _ locator.Surface = (*Page)(nil)

func newPage(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *zap.Logger) (*Page, error) {
	pageID := uuid.New().String()
	p := &Page{
		id:     pageID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("page").With(zap.String("page_id", pageID)),
		cfg:    cfg,
	}

	p.watcher = netwatch.New(ctx, p.logger)
	if err := p.watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start network watcher: %w", err)
	}
	return p, nil
}

// ID returns the page's unique identifier.
func (p *Page) ID() string {
	return p.id
}

// Close tears down the tab. Safe to call multiple times.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Debug("Closing page.")
		if p.watcher != nil {
			p.watcher.Stop()
		}
		p.cancel()
		if p.onClose != nil {
			p.onClose()
		}
	})
	return nil
}

// run executes chromedp actions under both the page lifetime and the caller's
// context.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a URL and waits for the page to stabilize.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))

	opCtx, opCancel := CombineContext(p.ctx, ctx)
	defer opCancel()

	navTimeout := p.cfg.Network.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 45 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	return p.stabilize(opCtx)
}

// Reload refreshes the current page. Required after applying cookies for them
// to take effect.
func (p *Page) Reload(ctx context.Context) error {
	opCtx, opCancel := CombineContext(p.ctx, ctx)
	defer opCancel()

	if err := chromedp.Run(opCtx, chromedp.Reload()); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return p.stabilize(opCtx)
}

// stabilize waits for the DOM to be ready and the network to go quiet.
// A noisy page that never settles is logged, not fatal.
func (p *Page) stabilize(ctx context.Context) error {
	stabCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	quietPeriod := p.cfg.Network.PostLoadWait
	if quietPeriod <= 0 {
		quietPeriod = 1500 * time.Millisecond
	}
	if err := p.watcher.WaitNetworkIdle(stabCtx, quietPeriod); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug("Network idle wait failed during stabilization.", zap.Error(err))
	}
	return nil
}

// ApplyCookies installs the authenticated session cookies into the browser.
// Callers must Reload afterwards.
func (p *Page) ApplyCookies(ctx context.Context, cookies []schemas.Cookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		for _, ck := range cookies {
			param := network.SetCookie(ck.Name, ck.Value).
				WithDomain(ck.Domain).
				WithPath(ck.Path).
				WithHTTPOnly(ck.HTTPOnly).
				WithSecure(ck.Secure)
			if ck.Expires > 0 {
				expiry := cdp.TimeSinceEpoch(time.Unix(ck.Expires, 0))
				param = param.WithExpires(&expiry)
			}
			if ss := sameSite(ck.SameSite); ss != "" {
				param = param.WithSameSite(ss)
			}
			if err := param.Do(c); err != nil {
				return fmt.Errorf("failed to set cookie %q: %w", ck.Name, err)
			}
		}
		return nil
	}))
}

func sameSite(s string) network.CookieSameSite {
	switch strings.ToLower(s) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	}
	return ""
}

// -- locator.Surface implementation --

// Eval runs a JavaScript expression and unmarshals its result into out.
func (p *Page) Eval(ctx context.Context, js string, out any) error {
	return p.run(ctx, chromedp.Evaluate(js, out))
}

// Click scrolls the element into view, waits for visibility and clicks it.
func (p *Page) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := p.run(clickCtx, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	})
	if err != nil {
		return fmt.Errorf("click failed for selector %q: %w", selector, err)
	}
	return nil
}

// Type sends keystrokes into the element.
func (p *Page) Type(ctx context.Context, selector, text string) error {
	typeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := p.run(typeCtx, chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	})
	if err != nil {
		return fmt.Errorf("type failed for selector %q: %w", selector, err)
	}
	return nil
}

// SetFiles attaches local files to a file input element.
func (p *Page) SetFiles(ctx context.Context, selector string, paths []string) error {
	err := p.run(ctx, chromedp.SetUploadFiles(selector, paths, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("file injection failed for selector %q: %w", selector, err)
	}
	return nil
}

// Location returns the page's current URL.
func (p *Page) Location(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// -- Waits and diagnostics --

// WaitForResponse blocks until a network response whose URL contains fragment
// arrives, within the timeout.
func (p *Page) WaitForResponse(ctx context.Context, fragment string, timeout time.Duration) error {
	waitCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return p.watcher.WaitForResponse(waitCtx, fragment, timeout)
}

// WaitNetworkIdle blocks until the page's network has been quiet for the
// given period.
func (p *Page) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	waitCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return p.watcher.WaitNetworkIdle(waitCtx, quietPeriod)
}

// Screenshot captures the viewport as PNG. Best-effort: callers treat an
// error as a missing snapshot, never as a failure of the attempt.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := p.run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}
