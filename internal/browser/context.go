// File: internal/browser/context.go
package browser

import "context"

// CombineContext creates a context canceled when either parent is canceled.
// Every page operation runs under a combined context so it respects both the
// page lifetime and the caller's deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
