// File: internal/taxonomy/catalog.go

// Package taxonomy holds the marketplace's hierarchical category catalog and
// the resolver that maps free-text category hints onto catalog nodes.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

//go:embed catalog.json
var embeddedCatalog []byte

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Node is one entry in the category catalog, identified by its full label
// path. Nodes are loaded once at startup and never mutated.
type Node struct {
	// Segments holds the human-readable path labels in order, one per
	// hierarchy level.
	Segments []string `json:"path"`
}

// MainBranch returns the top-level segment, the audience partition key.
func (n *Node) MainBranch() string {
	return n.Segments[0]
}

// Depth is the number of path segments.
func (n *Node) Depth() int {
	return len(n.Segments)
}

// Leaf returns the final path segment.
func (n *Node) Leaf() string {
	return n.Segments[len(n.Segments)-1]
}

// Path renders the full path for logging and diagnostics.
func (n *Node) Path() string {
	return strings.Join(n.Segments, " > ")
}

// Catalog is the static, read-only set of taxonomy nodes.
type Catalog struct {
	Version string `json:"version"`
	Nodes   []Node `json:"nodes"`
}

// LoadCatalog reads a catalog file from disk, or the embedded default when
// path is empty. Beyond structural shape (every node has a non-empty path)
// the file's internal consistency is trusted as-is.
func LoadCatalog(path string) (*Catalog, error) {
	data := embeddedCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %q: %w", path, err)
		}
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(cat.Nodes) == 0 {
		return nil, fmt.Errorf("catalog contains no nodes")
	}
	for i, n := range cat.Nodes {
		if len(n.Segments) == 0 {
			return nil, fmt.Errorf("catalog node %d has an empty path", i)
		}
		for _, seg := range n.Segments {
			if strings.TrimSpace(seg) == "" {
				return nil, fmt.Errorf("catalog node %d (%s) has a blank path segment", i, n.Path())
			}
		}
	}
	return &cat, nil
}
