// File: internal/navigator/navigator.go

// Package navigator drills down through taxonomy levels inside the live
// listing-creation page, one level at a time, verifying page identity between
// interactions and confirming the final selection via a downstream network
// signal.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wardrobelabs/relist/internal/locator"
)

// AbortReason classifies why taxonomy placement stopped.
type AbortReason string

const (
	// ReasonWrongPage: the page identity token did not match before any
	// interaction was attempted.
	ReasonWrongPage AbortReason = "wrong_page"
	// ReasonIntegrityViolation: a click triggered real navigation where only
	// an in-place update was expected.
	ReasonIntegrityViolation AbortReason = "integrity_violation"
	// ReasonOptionNotFound: the locator exhausted all strategies for a level's
	// segment label.
	ReasonOptionNotFound AbortReason = "option_not_found"
	// ReasonConfirmationMissing: neither the downstream signal nor the
	// secondary DOM check confirmed the final selection in time.
	ReasonConfirmationMissing AbortReason = "confirmation_missing"
)

// AbortError carries the failing level and segment so a failed chain can be
// diagnosed without re-running it.
type AbortError struct {
	Reason  AbortReason
	Level   int
	Segment string
	Err     error
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("taxonomy placement aborted (%s) at level %d", e.Reason, e.Level)
	if e.Segment != "" {
		msg += fmt.Sprintf(" (%q)", e.Segment)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// state labels the machine's position, for logging.
type state string

const (
	stateAwaitingPageReady state = "awaiting_page_ready"
	stateSelectingLevel    state = "selecting_level"
	stateVerifying         state = "verifying_integrity"
	stateAwaitingSignal    state = "awaiting_downstream_signal"
	stateDone              state = "done"
)

// OptionSelector is the locator capability the navigator drives.
type OptionSelector interface {
	Click(ctx context.Context, scope locator.Scope, target locator.Target) (*locator.Element, error)
	ClickTopLevelOption(ctx context.Context, scope locator.Scope, label string) (*locator.Element, error)
	Locate(ctx context.Context, scope locator.Scope, target locator.Target) (*locator.Element, error)
}

// PageProbe is the page capability the navigator reads: identity and network
// signals. It never writes through this interface.
type PageProbe interface {
	Location(ctx context.Context) (string, error)
	WaitForResponse(ctx context.Context, fragment string, timeout time.Duration) error
}

// Config fixes the page-identity token and the downstream signal parameters.
type Config struct {
	// PageToken is the canonical URL segment of the listing-creation page.
	PageToken string
	// SignalFragment is the URL fragment of the brand-list fetch that
	// confirms the final level was accepted.
	SignalFragment string
	SignalTimeout  time.Duration
}

// Navigator selects one full taxonomy path inside a live page.
type Navigator struct {
	cfg      Config
	selector OptionSelector
	page     PageProbe
	logger   *zap.Logger
}

// New builds a navigator over a locator and a page probe.
func New(cfg Config, selector OptionSelector, page PageProbe, logger *zap.Logger) *Navigator {
	return &Navigator{
		cfg:      cfg,
		selector: selector,
		page:     page,
		logger:   logger.Named("navigator"),
	}
}

// Select walks the given path segments level by level. It verifies the page
// identity before the first interaction and after every click, and treats the
// downstream brand fetch as the completion marker for the final level, with a
// DOM presence check as the secondary confirmation.
func (n *Navigator) Select(ctx context.Context, segments []string) error {
	if len(segments) == 0 {
		return errors.New("empty taxonomy path")
	}

	// Entry precondition: never resolve elements on an unexpected page.
	n.transition(stateAwaitingPageReady, 0, "")
	if err := n.verifyIdentity(ctx); err != nil {
		return &AbortError{Reason: ReasonWrongPage, Level: 0, Err: err}
	}

	for level, segment := range segments {
		n.transition(stateSelectingLevel, level, segment)

		var err error
		if level == 0 {
			// Top-level options are structurally distinct from deeper levels.
			_, err = n.selector.ClickTopLevelOption(ctx, locator.ScopeCatalog, segment)
		} else {
			_, err = n.selector.Click(ctx, locator.ScopeCatalog, locator.Option(segment))
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &AbortError{Reason: ReasonOptionNotFound, Level: level, Segment: segment, Err: err}
		}

		// Any identity drift after a click means the UI navigated instead of
		// updating in place; continuing blindly is never safe.
		n.transition(stateVerifying, level, segment)
		if err := n.verifyIdentity(ctx); err != nil {
			return &AbortError{Reason: ReasonIntegrityViolation, Level: level, Segment: segment, Err: err}
		}
	}

	finalLevel := len(segments) - 1
	finalSegment := segments[finalLevel]
	n.transition(stateAwaitingSignal, finalLevel, finalSegment)

	if err := n.awaitConfirmation(ctx); err != nil {
		return &AbortError{Reason: ReasonConfirmationMissing, Level: finalLevel, Segment: finalSegment, Err: err}
	}

	n.transition(stateDone, finalLevel, finalSegment)
	return nil
}

// verifyIdentity checks that the current URL still carries the
// listing-creation page token.
func (n *Navigator) verifyIdentity(ctx context.Context) error {
	url, err := n.page.Location(ctx)
	if err != nil {
		return fmt.Errorf("could not read page location: %w", err)
	}
	if !strings.Contains(url, n.cfg.PageToken) {
		return fmt.Errorf("page identity drifted: %q does not contain %q", url, n.cfg.PageToken)
	}
	return nil
}

// awaitConfirmation waits for the brand-list fetch keyed by the selected
// category. Signal timing is not fully reliable, so a missing signal falls
// through to a DOM check for the brand field before failing.
func (n *Navigator) awaitConfirmation(ctx context.Context) error {
	signalErr := n.page.WaitForResponse(ctx, n.cfg.SignalFragment, n.cfg.SignalTimeout)
	if signalErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	n.logger.Warn("Downstream signal missing; falling back to DOM verification.",
		zap.String("fragment", n.cfg.SignalFragment),
		zap.Error(signalErr))

	if _, err := n.selector.Locate(ctx, locator.ScopeUploadForm, locator.Field(locator.KindBrand)); err != nil {
		return fmt.Errorf("no downstream signal and brand field absent: %w", err)
	}
	return nil
}

func (n *Navigator) transition(s state, level int, segment string) {
	n.logger.Debug("State transition.",
		zap.String("state", string(s)),
		zap.Int("level", level),
		zap.String("segment", segment))
}
