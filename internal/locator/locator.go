// File: internal/locator/locator.go
package locator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// strategyAttempts is the retry ceiling per strategy, tolerating
	// asynchronous UI rendering.
	strategyAttempts = 3
	attemptDelay     = 250 * time.Millisecond
)

// Candidate is the filter-relevant metadata the probe reports for one raw
// match. Filtering happens in Go so the safety rules are unit-testable.
type Candidate struct {
	Index        int    `json:"index"`
	Visible      bool   `json:"visible"`
	Link         bool   `json:"link"`
	LinkAncestor bool   `json:"link_ancestor"`
	InScope      bool   `json:"in_scope"`
	Disabled     bool   `json:"disabled"`
	Text         string `json:"text"`
}

// Locator runs strategy chains against a live page surface.
type Locator struct {
	surface Surface
	logger  *zap.Logger
	// sleep is swappable in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Locator over the given page surface.
func New(surface Surface, logger *zap.Logger) *Locator {
	return &Locator{
		surface: surface,
		logger:  logger.Named("locator"),
		sleep:   sleepCtx,
	}
}

// Locate resolves a target within a scope without interacting with it.
// The strategy chain is fixed per target kind; the first strategy producing a
// match that passes the visibility, link-safety and scope filters wins.
func (l *Locator) Locate(ctx context.Context, scope Scope, target Target) (*Element, error) {
	return l.locate(ctx, scope, target, chainFor(target))
}

// LocateTopLevelOption resolves a first-level taxonomy option, whose markup
// differs from deeper levels.
func (l *Locator) LocateTopLevelOption(ctx context.Context, scope Scope, label string) (*Element, error) {
	return l.locate(ctx, scope, Option(label), topLevelOptionChain())
}

// ClickTopLevelOption resolves a first-level taxonomy option and commits
// with a click.
func (l *Locator) ClickTopLevelOption(ctx context.Context, scope Scope, label string) (*Element, error) {
	el, err := l.LocateTopLevelOption(ctx, scope, label)
	if err != nil {
		return nil, err
	}
	if err := l.surface.Click(ctx, el.Selector); err != nil {
		return nil, err
	}
	return el, nil
}

// Click resolves the target and commits with a click.
func (l *Locator) Click(ctx context.Context, scope Scope, target Target) (*Element, error) {
	el, err := l.Locate(ctx, scope, target)
	if err != nil {
		return nil, err
	}
	if err := l.surface.Click(ctx, el.Selector); err != nil {
		return nil, err
	}
	return el, nil
}

// Type resolves the target and commits by typing text into it.
func (l *Locator) Type(ctx context.Context, scope Scope, target Target, text string) (*Element, error) {
	el, err := l.Locate(ctx, scope, target)
	if err != nil {
		return nil, err
	}
	if err := l.surface.Type(ctx, el.Selector, text); err != nil {
		return nil, err
	}
	return el, nil
}

func (l *Locator) locate(ctx context.Context, scope Scope, target Target, chain []Strategy) (*Element, error) {
	attempted := make([]string, 0, len(chain))

	for _, strat := range chain {
		attempted = append(attempted, strat.Name)

		for attempt := 1; attempt <= strategyAttempts; attempt++ {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			el, err := l.tryStrategy(ctx, scope, target, strat)
			if err != nil {
				return nil, err
			}
			if el != nil {
				l.logger.Debug("Element resolved",
					zap.String("target", target.String()),
					zap.String("strategy", strat.Name),
					zap.Int("attempt", attempt))
				return el, nil
			}

			if attempt < strategyAttempts {
				if err := l.sleep(ctx, attemptDelay); err != nil {
					return nil, err
				}
			}
		}
	}

	l.logger.Warn("All strategies exhausted",
		zap.String("target", target.String()),
		zap.Strings("attempted", attempted))
	return nil, &NotFoundError{Target: target, Attempted: attempted}
}

// tryStrategy runs one probe and, when a candidate passes all filters, tags
// it and returns its stable selector. A nil, nil return means no passing
// match this attempt.
func (l *Locator) tryStrategy(ctx context.Context, scope Scope, target Target, strat Strategy) (*Element, error) {
	var candidates []Candidate
	if err := l.surface.Eval(ctx, collectScript(strat.Method, strat.query(target), scope), &candidates); err != nil {
		// A probe error on one strategy is not fatal to the chain.
		l.logger.Debug("Probe failed", zap.String("strategy", strat.Name), zap.Error(err))
		return nil, nil
	}

	idx := PickCandidate(candidates)
	if idx < 0 {
		return nil, nil
	}

	token := uuid.New().String()
	var tagged bool
	if err := l.surface.Eval(ctx, tagScript(idx, token), &tagged); err != nil || !tagged {
		// The page mutated between probe and tag; retry the strategy.
		return nil, nil
	}

	return &Element{Selector: tokenSelector(token), Strategy: strat.Name}, nil
}

// PickCandidate applies the shared anti-false-positive filters and returns
// the index of the winning candidate, or -1.
//
// Rules: the element must be visible, and must be neither a hyperlink nor a
// descendant of one — hyperlinks are page navigation, never a selectable form
// option, and clicking one would abort the workflow. Among survivors,
// candidates inside the active scope are preferred; ties go to document
// order.
func PickCandidate(candidates []Candidate) int {
	best := -1
	for _, c := range candidates {
		if !c.Visible || c.Link || c.LinkAncestor {
			continue
		}
		if c.InScope {
			return c.Index
		}
		if best < 0 {
			best = c.Index
		}
	}
	return best
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
