// File: internal/browser/netwatch/watcher.go

// Package netwatch listens to the page's CDP network events. It provides the
// two waits the pipeline synchronizes on: network idle after navigation, and
// the arrival of a specific downstream response (the signal that a UI action
// took effect server-side).
package netwatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// seenBufferSize bounds the remembered response URLs. The buffer exists to
// close the race between an action triggering a response and the caller
// starting to wait for it.
const seenBufferSize = 256

type waiter struct {
	fragment string
	ch       chan struct{}
}

// Watcher tracks in-flight requests and completed response URLs for one page.
type Watcher struct {
	logger *zap.Logger

	// pageCtx is the chromedp tab context events arrive on.
	pageCtx        context.Context
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	mu       sync.RWMutex
	inflight map[network.RequestID]bool
	seen     []string
	waiters  []*waiter

	started bool
}

// New creates a watcher bound to a chromedp page context.
func New(pageCtx context.Context, logger *zap.Logger) *Watcher {
	return &Watcher{
		logger:   logger.Named("netwatch"),
		pageCtx:  pageCtx,
		inflight: make(map[network.RequestID]bool),
	}
}

// Start enables CDP network events and begins listening.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	w.listenerCtx, w.cancelListener = context.WithCancel(w.pageCtx)
	chromedp.ListenTarget(w.listenerCtx, w.handleEvent)

	if err := chromedp.Run(w.pageCtx, network.Enable()); err != nil {
		w.cancelListener()
		return err
	}
	w.started = true
	return nil
}

// Stop detaches the listener.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelListener != nil {
		w.cancelListener()
		w.cancelListener = nil
	}
	w.started = false
}

func (w *Watcher) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		w.mu.Lock()
		w.inflight[e.RequestID] = true
		w.mu.Unlock()
	case *network.EventResponseReceived:
		if e.Response != nil {
			w.recordResponse(e.Response.URL)
		}
	case *network.EventLoadingFinished:
		w.mu.Lock()
		delete(w.inflight, e.RequestID)
		w.mu.Unlock()
	case *network.EventLoadingFailed:
		w.mu.Lock()
		delete(w.inflight, e.RequestID)
		w.mu.Unlock()
	}
}

// recordResponse remembers the URL and releases any waiter it satisfies.
func (w *Watcher) recordResponse(url string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seen = append(w.seen, url)
	if len(w.seen) > seenBufferSize {
		w.seen = w.seen[len(w.seen)-seenBufferSize:]
	}

	remaining := w.waiters[:0]
	for _, wt := range w.waiters {
		if strings.Contains(url, wt.fragment) {
			close(wt.ch)
		} else {
			remaining = append(remaining, wt)
		}
	}
	w.waiters = remaining
}

// WaitForResponse blocks until a response whose URL contains fragment has
// been observed, or the timeout expires. Responses already in the seen buffer
// satisfy the wait immediately, so callers may arm the wait just after the
// triggering action without losing the race.
func (w *Watcher) WaitForResponse(ctx context.Context, fragment string, timeout time.Duration) error {
	w.mu.Lock()
	for _, url := range w.seen {
		if strings.Contains(url, fragment) {
			w.mu.Unlock()
			return nil
		}
	}
	wt := &waiter{fragment: fragment, ch: make(chan struct{})}
	w.waiters = append(w.waiters, wt)
	w.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-wt.ch:
		return nil
	case <-timer.C:
		w.removeWaiter(wt)
		return context.DeadlineExceeded
	case <-ctx.Done():
		w.removeWaiter(wt)
		return ctx.Err()
	}
}

func (w *Watcher) removeWaiter(target *waiter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, wt := range w.waiters {
		if wt == target {
			w.waiters = append(w.waiters[:i], w.waiters[i+1:]...)
			return
		}
	}
}

// WaitNetworkIdle polls until no request has been in flight for the quiet
// period, or the context expires.
func (w *Watcher) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	ticker := time.NewTicker(quietPeriod / 2)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.mu.RLock()
			inflightCount := len(w.inflight)
			w.mu.RUnlock()

			if inflightCount > 0 {
				lastActivity = time.Now()
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}
