// File: internal/taxonomy/resolver.go
package taxonomy

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultBranch is the audience branch used when no gender hint is supplied.
// The women's branch is the marketplace's largest partition, so unresolved
// listings land there deterministically.
const DefaultBranch = "Women"

// fallbackLeaf is the generic leaf used when no catalog node survives
// filtering.
const fallbackLeaf = "Other"

// genderBranches maps upstream gender hints onto main-branch labels. Lookup
// is case-insensitive; unrecognized hints fall back to DefaultBranch.
var genderBranches = map[string]string{
	"women":  "Women",
	"woman":  "Women",
	"female": "Women",
	"f":      "Women",
	"ladies": "Women",
	"men":    "Men",
	"man":    "Men",
	"male":   "Men",
	"m":      "Men",
	"kids":   "Kids",
	"kid":    "Kids",
	"child":  "Kids",
	"boys":   "Kids",
	"girls":  "Kids",
}

// keywordTerm maps a free-text keyword to the taxonomy term it implies.
type keywordTerm struct {
	keyword string
	term    string
}

// keywordTable is scanned in order; the first keyword contained in the input
// wins as the primary term. More specific keywords come before their
// substrings ("t-shirt" before "shirt") so matching stays deterministic.
var keywordTable = []keywordTerm{
	{"t-shirt", "T-shirts"},
	{"tshirt", "T-shirts"},
	{"tee", "T-shirts"},
	{"polo", "Polo shirts"},
	{"sweatshirt", "Sweatshirts"},
	{"hoodie", "Hoodies"},
	{"hoody", "Hoodies"},
	{"cardigan", "Cardigans"},
	{"jumper", "Jumpers"},
	{"sweater", "Jumpers"},
	{"pullover", "Jumpers"},
	{"blouse", "Blouses"},
	{"bodysuit", "Bodysuits"},
	{"shirt", "Shirts"},
	{"dress", "Dresses"},
	{"skirt", "Skirts"},
	{"legging", "Leggings"},
	{"jeans", "Jeans"},
	{"denim jacket", "Denim jackets"},
	{"bomber", "Bomber jackets"},
	{"chino", "Chinos"},
	{"shorts", "Shorts"},
	{"trouser", "Trousers"},
	{"pants", "Trousers"},
	{"jacket", "Jackets"},
	{"coat", "Coats"},
	{"sneaker", "Sneakers"},
	{"trainer", "Sneakers"},
	{"boot", "Boots"},
	{"heel", "Heels"},
	{"sandal", "Sandals"},
	{"shoe", "Shoes"},
	{"handbag", "Handbags"},
	{"backpack", "Backpacks"},
	{"bag", "Bags"},
	{"belt", "Belts"},
	{"hat", "Hats"},
	{"cap", "Hats"},
	{"scarf", "Scarves"},
	{"watch", "Watches"},
	{"jewellery", "Jewellery"},
	{"jewelry", "Jewellery"},
	{"swim", "Swimwear"},
	{"bikini", "Swimwear"},
	{"top", "Tops"},
}

// ScoredCandidate pairs a catalog node with its match score. The node is
// shared with the catalog and must not be mutated.
type ScoredCandidate struct {
	Node  *Node
	Score int
}

// Resolver scores catalog nodes against free-text category input. It is pure:
// it never touches the live page.
type Resolver struct {
	catalog *Catalog
	logger  *zap.Logger
}

// NewResolver builds a resolver over a loaded catalog.
func NewResolver(catalog *Catalog, logger *zap.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		logger:  logger.Named("resolver"),
	}
}

// ResolveBranch maps a gender hint onto a main-branch label. An empty or
// unrecognized hint yields DefaultBranch.
func ResolveBranch(genderHint string) string {
	if branch, ok := genderBranches[strings.ToLower(strings.TrimSpace(genderHint))]; ok {
		return branch
	}
	return DefaultBranch
}

// resolveTerms scans the keyword table in order and returns every taxonomy
// term whose keyword is contained in the input. The first entry is the
// primary term.
func resolveTerms(normalized string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, kt := range keywordTable {
		if strings.Contains(normalized, kt.keyword) && !seen[kt.term] {
			terms = append(terms, kt.term)
			seen[kt.term] = true
		}
	}
	return terms
}

// Resolve scores the catalog against the raw category text and optional
// gender hint. The returned slice is never empty and is sorted by descending
// score, ties broken by catalog order; when no node survives filtering the
// fixed fallback node for the resolved branch is returned alone.
func (r *Resolver) Resolve(rawCategoryText, genderHint string) []ScoredCandidate {
	normalized := strings.ToLower(strings.TrimSpace(rawCategoryText))
	branch := ResolveBranch(genderHint)
	terms := resolveTerms(normalized)

	r.logger.Debug("Resolving category",
		zap.String("input", normalized),
		zap.String("branch", branch),
		zap.Strings("terms", terms))

	if len(terms) > 0 {
		candidates := r.scoreNodes(normalized, branch, terms)
		if len(candidates) > 0 {
			return candidates
		}
	}

	fallback := r.fallbackNode(branch)
	r.logger.Info("No catalog node matched; using fallback",
		zap.String("input", normalized),
		zap.String("fallback", fallback.Path()))
	return []ScoredCandidate{{Node: fallback, Score: 0}}
}

// scoreNodes filters the catalog to the resolved branch and term set, then
// applies the additive scoring signals.
func (r *Resolver) scoreNodes(normalized, branch string, terms []string) []ScoredCandidate {
	primaryTerm := strings.ToLower(terms[0])

	lowerTerms := make([]string, len(terms))
	for i, t := range terms {
		lowerTerms[i] = strings.ToLower(t)
	}

	var candidates []ScoredCandidate
	for i := range r.catalog.Nodes {
		node := &r.catalog.Nodes[i]
		if node.MainBranch() != branch {
			continue
		}

		pathLower := strings.ToLower(node.Path())
		containsTerm := false
		for _, t := range lowerTerms {
			if strings.Contains(pathLower, t) {
				containsTerm = true
				break
			}
		}
		if !containsTerm {
			continue
		}

		score := 0
		leafLower := strings.ToLower(node.Leaf())
		if leafLower == normalized {
			score += 100
		}
		for _, seg := range node.Segments {
			if strings.ToLower(seg) == normalized {
				score += 50
				break
			}
		}
		if leafLower == primaryTerm {
			score += 30
		}
		// Depth 3-4 is the sweet spot: specific enough to pre-fill dependent
		// fields, generic enough to survive catalog reshuffles.
		if d := node.Depth(); d == 3 || d == 4 {
			score += 10
		} else if d > 4 {
			score -= 5
		}

		candidates = append(candidates, ScoredCandidate{Node: node, Score: score})
	}

	// Stable sort keeps catalog order as the tie-breaker.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// fallbackNode returns the generic leaf under the given branch, synthesizing
// one if the catalog lacks it.
func (r *Resolver) fallbackNode(branch string) *Node {
	for i := range r.catalog.Nodes {
		node := &r.catalog.Nodes[i]
		if node.MainBranch() == branch && node.Depth() == 2 && node.Leaf() == fallbackLeaf {
			return node
		}
	}
	return &Node{Segments: []string{branch, fallbackLeaf}}
}
