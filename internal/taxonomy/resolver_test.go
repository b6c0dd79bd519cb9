// File: internal/taxonomy/resolver_test.go
package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := LoadCatalog("")
	require.NoError(t, err, "embedded catalog must load")
	require.NotEmpty(t, catalog.Nodes)
	return catalog
}

// -- Branch Resolution Tests --

func TestResolveBranch(t *testing.T) {
	testCases := []struct {
		hint     string
		expected string
	}{
		{"women", "Women"},
		{"WOMEN", "Women"},
		{" female ", "Women"},
		{"m", "Men"},
		{"man", "Men"},
		{"kids", "Kids"},
		{"girls", "Kids"},
		{"", DefaultBranch},
		{"unisex", DefaultBranch},
	}

	for _, tc := range testCases {
		t.Run(tc.hint, func(t *testing.T) {
			assert.Equal(t, tc.expected, ResolveBranch(tc.hint))
		})
	}
}

// -- Scoring Tests --

func TestResolveRankedCandidates(t *testing.T) {
	resolver := NewResolver(testCatalog(t), zap.NewNop())

	t.Run("TShirtWomen", func(t *testing.T) {
		candidates := resolver.Resolve("Cool vintage t-shirt", "women")
		require.NotEmpty(t, candidates)

		top := candidates[0]
		assert.Equal(t, "Women", top.Node.MainBranch())
		assert.Equal(t, "T-shirts", top.Node.Leaf(),
			"the primary keyword term should win the top slot")

		for i := 1; i < len(candidates); i++ {
			assert.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score,
				"candidates must be sorted by non-increasing score")
		}
	})

	t.Run("HoodieMen", func(t *testing.T) {
		candidates := resolver.Resolve("hoodie", "men")
		require.NotEmpty(t, candidates)

		top := candidates[0]
		assert.Equal(t, "Men", top.Node.MainBranch())
		assert.Equal(t, "Hoodies", top.Node.Leaf())
		// Exact leaf match plus primary term plus depth bonus.
		assert.GreaterOrEqual(t, top.Score, 100)
	})

	t.Run("BranchFilterExcludesOtherBranches", func(t *testing.T) {
		candidates := resolver.Resolve("dress", "women")
		require.NotEmpty(t, candidates)
		for _, c := range candidates {
			assert.Equal(t, "Women", c.Node.MainBranch())
		}
	})

	t.Run("SpecificKeywordBeatsSubstring", func(t *testing.T) {
		// "t-shirt" contains "shirt"; the more specific keyword must win as
		// the primary term.
		candidates := resolver.Resolve("t-shirt", "women")
		require.NotEmpty(t, candidates)
		assert.Equal(t, "T-shirts", candidates[0].Node.Leaf())
	})
}

// -- Fallback Tests --

func TestResolveFallback(t *testing.T) {
	resolver := NewResolver(testCatalog(t), zap.NewNop())

	t.Run("UnmatchableInput", func(t *testing.T) {
		candidates := resolver.Resolve("zzz quantum flux capacitor", "women")
		require.Len(t, candidates, 1, "fallback must yield exactly one candidate")
		assert.Equal(t, "Women", candidates[0].Node.MainBranch())
		assert.Equal(t, "Other", candidates[0].Node.Leaf())
		assert.Equal(t, 0, candidates[0].Score)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		candidates := resolver.Resolve("", "")
		require.Len(t, candidates, 1)
		assert.Equal(t, DefaultBranch, candidates[0].Node.MainBranch())
	})

	t.Run("FallbackNeverEmpty", func(t *testing.T) {
		inputs := []string{"", "  ", "!!!", "unknown gadget", "hoodie"}
		for _, input := range inputs {
			assert.NotEmpty(t, resolver.Resolve(input, "men"), "input %q", input)
		}
	})
}

// -- Determinism Tests --

func TestResolveIsDeterministic(t *testing.T) {
	resolver := NewResolver(testCatalog(t), zap.NewNop())

	first := resolver.Resolve("summer dress", "women")
	for i := 0; i < 5; i++ {
		again := resolver.Resolve("summer dress", "women")
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Node.Path(), again[j].Node.Path())
			assert.Equal(t, first[j].Score, again[j].Score)
		}
	}
}
