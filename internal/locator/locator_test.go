// File: internal/locator/locator_test.go
package locator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSurface scripts probe results per call and records committed actions.
type fakeSurface struct {
	// probeResults are returned in order; when exhausted, probes yield no
	// candidates.
	probeResults [][]Candidate
	probeCalls   int
	tagOK        bool

	clicked  []string
	typed    map[string]string
	evalErr  error
	clickErr error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{tagOK: true, typed: make(map[string]string)}
}

func (f *fakeSurface) Eval(ctx context.Context, js string, out any) error {
	if f.evalErr != nil {
		return f.evalErr
	}
	switch v := out.(type) {
	case *[]Candidate:
		f.probeCalls++
		if len(f.probeResults) > 0 {
			*v = f.probeResults[0]
			f.probeResults = f.probeResults[1:]
		} else {
			*v = nil
		}
	case *bool:
		*v = f.tagOK
	}
	return nil
}

func (f *fakeSurface) Click(ctx context.Context, selector string) error {
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakeSurface) Type(ctx context.Context, selector, text string) error {
	f.typed[selector] = text
	return nil
}

func (f *fakeSurface) SetFiles(ctx context.Context, selector string, paths []string) error {
	return nil
}

func (f *fakeSurface) Location(ctx context.Context) (string, error) {
	return "https://www.vinted.com/items/new", nil
}

// newQuietLocator builds a locator with retry delays disabled.
func newQuietLocator(surface Surface) *Locator {
	l := New(surface, zap.NewNop())
	l.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return l
}

// -- Candidate Filter Tests --

func TestPickCandidate(t *testing.T) {
	t.Run("SkipsInvisible", func(t *testing.T) {
		idx := PickCandidate([]Candidate{
			{Index: 0, Visible: false, InScope: true},
			{Index: 1, Visible: true, InScope: true},
		})
		assert.Equal(t, 1, idx)
	})

	t.Run("NeverSelectsHyperlink", func(t *testing.T) {
		idx := PickCandidate([]Candidate{
			{Index: 0, Visible: true, Link: true, InScope: true},
			{Index: 1, Visible: true, LinkAncestor: true, InScope: true},
		})
		assert.Equal(t, -1, idx, "hyperlinks and their descendants must never win")
	})

	t.Run("PrefersInScope", func(t *testing.T) {
		idx := PickCandidate([]Candidate{
			{Index: 0, Visible: true, InScope: false},
			{Index: 1, Visible: true, InScope: true},
		})
		assert.Equal(t, 1, idx)
	})

	t.Run("FallsBackToFirstSafeOutOfScope", func(t *testing.T) {
		idx := PickCandidate([]Candidate{
			{Index: 0, Visible: true, Link: true},
			{Index: 1, Visible: true, InScope: false},
			{Index: 2, Visible: true, InScope: false},
		})
		assert.Equal(t, 1, idx, "document order breaks ties among out-of-scope survivors")
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, -1, PickCandidate(nil))
	})
}

// -- Resolution Tests --

func TestLocate(t *testing.T) {
	t.Run("FirstStrategyWins", func(t *testing.T) {
		surface := newFakeSurface()
		surface.probeResults = [][]Candidate{
			{{Index: 0, Visible: true, InScope: true, Text: "Title"}},
		}
		l := newQuietLocator(surface)

		el, err := l.Locate(context.Background(), ScopeUploadForm, Field(KindTitle))
		require.NoError(t, err)
		assert.Equal(t, "title-attribute", el.Strategy)
		assert.True(t, strings.HasPrefix(el.Selector, `[data-relist-target=`),
			"winner must be addressed through its tag token")
		assert.Equal(t, 1, surface.probeCalls, "no further strategies after a hit")
	})

	t.Run("FallsThroughToLaterStrategy", func(t *testing.T) {
		surface := newFakeSurface()
		// Strategy 1 returns only a link (filtered), three attempts each
		// yield nothing usable; strategy 2 succeeds on its first attempt.
		surface.probeResults = [][]Candidate{
			{{Index: 0, Visible: true, Link: true}},
			{},
			{},
			{{Index: 0, Visible: true, InScope: true}},
		}
		l := newQuietLocator(surface)

		el, err := l.Locate(context.Background(), ScopeUploadForm, Field(KindTitle))
		require.NoError(t, err)
		assert.Equal(t, "title-role", el.Strategy)
	})

	t.Run("AllStrategiesExhausted", func(t *testing.T) {
		surface := newFakeSurface()
		l := newQuietLocator(surface)

		_, err := l.Locate(context.Background(), ScopeUploadForm, Field(KindPrice))
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, KindPrice, notFound.Target.Kind)
		assert.NotEmpty(t, notFound.Attempted)
		assert.Contains(t, err.Error(), "price")
	})

	t.Run("TagRaceRetries", func(t *testing.T) {
		surface := newFakeSurface()
		surface.tagOK = false
		surface.probeResults = [][]Candidate{
			{{Index: 0, Visible: true, InScope: true}},
		}
		l := newQuietLocator(surface)

		// The single candidate vanishes between probe and tag; the chain must
		// end in NotFound rather than returning a stale selector.
		_, err := l.Locate(context.Background(), ScopeUploadForm, Field(KindTitle))
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("ProbeErrorIsNotFatal", func(t *testing.T) {
		surface := newFakeSurface()
		surface.evalErr = errors.New("execution context destroyed")
		l := newQuietLocator(surface)

		_, err := l.Locate(context.Background(), ScopeUploadForm, Field(KindTitle))
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound, "probe errors degrade to not-found, not a hard failure")
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		l := newQuietLocator(newFakeSurface())

		_, err := l.Locate(ctx, ScopeUploadForm, Field(KindTitle))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// -- Commit Tests --

func TestCommitActions(t *testing.T) {
	t.Run("ClickCommits", func(t *testing.T) {
		surface := newFakeSurface()
		surface.probeResults = [][]Candidate{
			{{Index: 0, Visible: true, InScope: true, Text: "Hoodies"}},
		}
		l := newQuietLocator(surface)

		el, err := l.Click(context.Background(), ScopeCatalog, Option("Hoodies"))
		require.NoError(t, err)
		require.Len(t, surface.clicked, 1)
		assert.Equal(t, el.Selector, surface.clicked[0])
	})

	t.Run("TypeCommits", func(t *testing.T) {
		surface := newFakeSurface()
		surface.probeResults = [][]Candidate{
			{{Index: 0, Visible: true, InScope: true}},
		}
		l := newQuietLocator(surface)

		el, err := l.Type(context.Background(), ScopeUploadForm, Field(KindTitle), "Vintage jacket")
		require.NoError(t, err)
		assert.Equal(t, "Vintage jacket", surface.typed[el.Selector])
	})

	t.Run("TopLevelOptionUsesDistinctChain", func(t *testing.T) {
		surface := newFakeSurface()
		surface.probeResults = [][]Candidate{
			{{Index: 0, Visible: true, InScope: true, Text: "Women"}},
		}
		l := newQuietLocator(surface)

		el, err := l.ClickTopLevelOption(context.Background(), ScopeCatalog, "Women")
		require.NoError(t, err)
		assert.Equal(t, "root-option-attribute", el.Strategy)
		assert.Len(t, surface.clicked, 1)
	})
}

// -- Strategy Chain Tests --

func TestChainOrder(t *testing.T) {
	t.Run("FieldChain", func(t *testing.T) {
		chain := chainFor(Field(KindTitle))
		require.Len(t, chain, 3)
		assert.Equal(t, "title-attribute", chain[0].Name)
		assert.Equal(t, "title-role", chain[1].Name)
		assert.Equal(t, "title-label-text", chain[2].Name)
	})

	t.Run("OptionChain", func(t *testing.T) {
		chain := chainFor(Option("Hoodies"))
		require.Len(t, chain, 4)
		assert.Equal(t, "option-exact-text", chain[0].Name)
		assert.Equal(t, "option-containment", chain[3].Name)
		// Option strategies take the query from the target label.
		assert.Equal(t, "Hoodies", chain[0].query(Option("Hoodies")))
	})

	t.Run("PhotoInputHasNoTextFallback", func(t *testing.T) {
		chain := chainFor(Field(KindPhotoInput))
		require.Len(t, chain, 1, "file inputs have no visible label to match on")
		assert.Equal(t, methodCSS, chain[0].Method)
	})
}
