// File: internal/browser/netwatch/watcher_test.go
package netwatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestWatcher() *Watcher {
	return New(context.Background(), zap.NewNop())
}

// -- Response Wait Tests --

func TestWaitForResponse(t *testing.T) {
	t.Run("AlreadySeenSatisfiesImmediately", func(t *testing.T) {
		w := newTestWatcher()
		w.recordResponse("https://www.vinted.com/api/v2/brands?catalog_id=5")

		// The response landed before the wait was armed; the seen buffer must
		// close the race.
		err := w.WaitForResponse(context.Background(), "/api/v2/brands", 10*time.Millisecond)
		assert.NoError(t, err)
	})

	t.Run("ReleasedByLaterResponse", func(t *testing.T) {
		w := newTestWatcher()

		done := make(chan error, 1)
		go func() {
			done <- w.WaitForResponse(context.Background(), "/api/v2/brands", 2*time.Second)
		}()

		// Give the waiter a moment to register, then deliver.
		time.Sleep(20 * time.Millisecond)
		w.recordResponse("https://www.vinted.com/api/v2/brands?catalog_id=5")

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("waiter was not released")
		}
	})

	t.Run("TimeoutOnNoMatch", func(t *testing.T) {
		w := newTestWatcher()
		w.recordResponse("https://www.vinted.com/api/v2/colors")

		err := w.WaitForResponse(context.Background(), "/api/v2/brands", 30*time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		w := newTestWatcher()
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- w.WaitForResponse(ctx, "/api/v2/brands", 5*time.Second)
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("waiter did not observe cancellation")
		}
	})

	t.Run("TimedOutWaiterIsRemoved", func(t *testing.T) {
		w := newTestWatcher()
		_ = w.WaitForResponse(context.Background(), "/never", 10*time.Millisecond)

		w.mu.RLock()
		defer w.mu.RUnlock()
		assert.Empty(t, w.waiters)
	})
}

func TestSeenBufferIsBounded(t *testing.T) {
	w := newTestWatcher()
	for i := 0; i < seenBufferSize*2; i++ {
		w.recordResponse(fmt.Sprintf("https://example.com/resource/%d", i))
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	assert.LessOrEqual(t, len(w.seen), seenBufferSize)
}

// -- Event Accounting Tests --

func TestHandleEventTracksInflight(t *testing.T) {
	w := newTestWatcher()

	w.handleEvent(&network.EventRequestWillBeSent{RequestID: "r1"})
	w.handleEvent(&network.EventRequestWillBeSent{RequestID: "r2"})

	w.mu.RLock()
	assert.Len(t, w.inflight, 2)
	w.mu.RUnlock()

	w.handleEvent(&network.EventLoadingFinished{RequestID: "r1"})
	w.handleEvent(&network.EventLoadingFailed{RequestID: "r2"})

	w.mu.RLock()
	assert.Empty(t, w.inflight)
	w.mu.RUnlock()
}

func TestHandleEventRecordsResponses(t *testing.T) {
	w := newTestWatcher()
	w.handleEvent(&network.EventResponseReceived{
		RequestID: "r1",
		Response:  &network.Response{URL: "https://www.vinted.com/api/v2/brands"},
	})

	err := w.WaitForResponse(context.Background(), "/api/v2/brands", 10*time.Millisecond)
	assert.NoError(t, err)
}

// -- Network Idle Tests --

func TestWaitNetworkIdle(t *testing.T) {
	t.Run("IdleAfterQuietPeriod", func(t *testing.T) {
		w := newTestWatcher()

		start := time.Now()
		err := w.WaitNetworkIdle(context.Background(), 40*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("InflightRequestDefersIdle", func(t *testing.T) {
		w := newTestWatcher()
		w.handleEvent(&network.EventRequestWillBeSent{RequestID: "slow"})

		go func() {
			time.Sleep(80 * time.Millisecond)
			w.handleEvent(&network.EventLoadingFinished{RequestID: "slow"})
		}()

		start := time.Now()
		err := w.WaitNetworkIdle(context.Background(), 40*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond,
			"idle must not be declared while a request is in flight")
	})

	t.Run("ContextExpiry", func(t *testing.T) {
		w := newTestWatcher()
		w.handleEvent(&network.EventRequestWillBeSent{RequestID: "stuck"})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := w.WaitNetworkIdle(ctx, 500*time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
