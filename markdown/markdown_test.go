package markdown

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstDiagram(t *testing.T) {
	testcases, err := filepath.Glob("testdata/*.md")
	require.NoError(t, err)
	require.NotEmpty(t, testcases)

	for _, filename := range testcases {
		t.Run(filepath.Base(filename), func(t *testing.T) {
			markdown, err := os.ReadFile(filename)
			require.NoError(t, err)

			stem := strings.TrimSuffix(filename, ".md")

			var expected []byte
			var language string
			for _, candidate := range []struct {
				extension string
				language  string
			}{
				{".mmd", "mermaid"},
				{".d2", "d2"},
			} {
				data, err := os.ReadFile(stem + candidate.extension)
				if err == nil {
					expected = data
					language = candidate.language
					break
				}
			}

			block, ok := FirstDiagram(markdown)
			if expected == nil {
				assert.False(t, ok, "no diagram expected in %s", filename)
				return
			}

			require.True(t, ok, "diagram expected in %s", filename)
			assert.Equal(t, language, block.Language)
			assert.Equal(t, string(expected), block.Source)
		})
	}
}

func TestExtractDiagrams(t *testing.T) {
	markdown := []byte("```mermaid\ngraph TD\nA-->B\n```\n\ntext\n\n```d2\na -> b\n```\n\n```MERMAID\nsequenceDiagram\n```\n")

	blocks := ExtractDiagrams(markdown)
	require.Len(t, blocks, 3)

	assert.Equal(t, Block{Language: "mermaid", Source: "graph TD\nA-->B\n", Line: 1}, blocks[0])
	assert.Equal(t, "d2", blocks[1].Language)
	assert.Equal(t, "a -> b\n", blocks[1].Source)
	assert.Equal(t, "mermaid", blocks[2].Language)

	only := ExtractDiagrams(markdown, "d2")
	require.Len(t, only, 1)
	assert.Equal(t, "a -> b\n", only[0].Source)
}
