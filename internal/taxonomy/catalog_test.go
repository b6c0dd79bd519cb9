// File: internal/taxonomy/catalog_test.go
package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalogEmbedded(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, catalog.Version)
	assert.NotEmpty(t, catalog.Nodes)

	branches := make(map[string]bool)
	for _, n := range catalog.Nodes {
		branches[n.MainBranch()] = true
	}
	assert.True(t, branches["Women"])
	assert.True(t, branches["Men"])
	assert.True(t, branches["Kids"])
}

func TestLoadCatalogFromFile(t *testing.T) {
	t.Run("ValidOverride", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.json")
		content := `{"version":"test-1","nodes":[{"path":["Women","Clothing","Dresses"]}]}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		catalog, err := LoadCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, "test-1", catalog.Version)
		require.Len(t, catalog.Nodes, 1)
		assert.Equal(t, "Women > Clothing > Dresses", catalog.Nodes[0].Path())
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := LoadCatalog(path)
		assert.Error(t, err)
	})

	t.Run("EmptyNodeList", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"version":"v","nodes":[]}`), 0o644))
		_, err := LoadCatalog(path)
		assert.ErrorContains(t, err, "no nodes")
	})

	t.Run("BlankSegment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blank.json")
		content := `{"version":"v","nodes":[{"path":["Women","  "]}]}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := LoadCatalog(path)
		assert.ErrorContains(t, err, "blank path segment")
	})
}

func TestNodeAccessors(t *testing.T) {
	n := Node{Segments: []string{"Men", "Clothing", "Jumpers & sweaters", "Hoodies"}}
	assert.Equal(t, "Men", n.MainBranch())
	assert.Equal(t, 4, n.Depth())
	assert.Equal(t, "Hoodies", n.Leaf())
	assert.Equal(t, "Men > Clothing > Jumpers & sweaters > Hoodies", n.Path())
}
