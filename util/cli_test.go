package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kovetskiy/mermaidmono/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func validConfig() types.Config {
	return types.Config{
		Engine:        "mermaid",
		Measurer:      "auto",
		Rasterizer:    "auto",
		Padding:       80,
		Scale:         3,
		RenderTimeout: time.Minute,
		Formats:       []string{"svg", "png"},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := map[string]struct {
		modify      func(config *types.Config)
		expectedErr string
	}{
		"valid": {modify: func(config *types.Config) {}},
		"d2":    {modify: func(config *types.Config) { config.Engine = "d2" }},
		"unknown engine": {
			modify:      func(config *types.Config) { config.Engine = "plantuml" },
			expectedErr: "unknown engine: plantuml",
		},
		"unknown measurer": {
			modify:      func(config *types.Config) { config.Measurer = "ruler" },
			expectedErr: "unknown measurer: ruler",
		},
		"unknown rasterizer": {
			modify:      func(config *types.Config) { config.Rasterizer = "cairo" },
			expectedErr: "unknown rasterizer: cairo",
		},
		"negative padding": {
			modify:      func(config *types.Config) { config.Padding = -1 },
			expectedErr: "padding must not be negative: -1",
		},
		"zero scale": {
			modify:      func(config *types.Config) { config.Scale = 0 },
			expectedErr: "scale must be positive: 0",
		},
		"unknown format": {
			modify:      func(config *types.Config) { config.Formats = []string{"svg", "gif"} },
			expectedErr: `unknown export format: "gif"`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			config := validConfig()
			tt.modify(&config)

			err := ValidateConfig(config)
			if tt.expectedErr != "" {
				assert.EqualError(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRenderConfig(t *testing.T) {
	config := validConfig()
	config.Engine = "d2"
	config.Theme = "Grape Soda"
	config.FontSize = 16

	renderConfig := RenderConfig(config)
	assert.Equal(t, "d2", renderConfig.Engine)
	assert.Equal(t, "Grape Soda", renderConfig.Theme)
	assert.Equal(t, 16.0, renderConfig.FontSize)
	assert.Equal(t, "JetBrains Mono, Courier New, monospace", renderConfig.FontFamily)
	assert.Equal(t, "mermaid", renderConfig.IDPrefix)
}

func TestLoadDiagram(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		content    string
		engine     string
		wantName    string
		wantSource  string
		wantFormats []string
	}{
		{
			name:       "mermaid keeps its front matter",
			file:       "flow.mmd",
			content:    "---\r\ntitle: Checkout\r\n---\r\ngraph TD\r\nA-->B\r\n",
			engine:     "mermaid",
			wantName:   "Checkout",
			wantSource: "---\ntitle: Checkout\n---\ngraph TD\nA-->B\n",
		},
		{
			name:       "d2 drops front matter",
			file:       "network.d2",
			content:    "---\ntitle: Network\n---\na -> b\n",
			engine:     "d2",
			wantName:   "Network",
			wantSource: "a -> b\n",
		},
		{
			name:       "header comments",
			file:       "sequence.mmd",
			content:    "<!-- Title: Login -->\nsequenceDiagram\nA->>B: hi\n",
			engine:     "mermaid",
			wantName:   "Login",
			wantSource: "sequenceDiagram\nA->>B: hi\n",
		},
		{
			name:        "formats from headers",
			file:        "formats.d2",
			content:     "<!-- Title: Routing -->\n<!-- Format: png -->\na -> b\n",
			engine:      "d2",
			wantName:    "Routing",
			wantSource:  "a -> b\n",
			wantFormats: []string{"png"},
		},
		{
			name:       "file name",
			file:       "plain.mmd",
			content:    "graph TD\nA-->B",
			engine:     "mermaid",
			wantName:   "plain",
			wantSource: "graph TD\nA-->B",
		},
		{
			name:       "markdown block",
			file:       "doc.md",
			content:    "# Doc\n\n```d2\nx -> y\n```\n\n```mermaid\ngraph LR\nX-->Y\n```\n",
			engine:     "mermaid",
			wantName:   "doc",
			wantSource: "graph LR\nX-->Y\n",
		},
		{
			name:       "markdown without diagram",
			file:       "prose.md",
			content:    "# Nothing to draw\n",
			engine:     "d2",
			wantName:   "prose",
			wantSource: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			diagram, err := LoadDiagram(path, tt.engine)
			require.NoError(t, err)

			assert.Equal(t, tt.wantName, diagram.Name)
			assert.Equal(t, tt.wantSource, diagram.Source)
			assert.Equal(t, tt.wantFormats, diagram.Formats)
		})
	}
}

func TestLoadDiagram_Missing(t *testing.T) {
	_, err := LoadDiagram(filepath.Join(t.TempDir(), "missing.mmd"), "mermaid")
	assert.Error(t, err)
}

func TestLoader_NameOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.mmd")
	require.NoError(t, os.WriteFile(path, []byte("graph TD\nA-->B"), 0o644))

	config := validConfig()
	config.Name = "override"

	name, source, err := Loader(config)(path)
	require.NoError(t, err)
	assert.Equal(t, "override", name)
	assert.Equal(t, "graph TD\nA-->B", source)
}

func TestRunExport_ContinueOnError(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(input, "network.d2"), []byte("a -> b\nb -> c\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(input, "broken.d2"), []byte("a -> {\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(input, "empty.d2"), []byte("\n\n"), 0o644))

	cmd := &cli.Command{
		Name:   "export",
		Flags:  ExportFlags,
		Action: RunExport,
	}

	err := cmd.Run(context.TODO(), []string{
		"",
		"--log-level", "INFO",
		"--engine", "d2",
		"--measurer", "native",
		"--rasterizer", "native",
		"--format", "svg",
		"--continue-on-error",
		"--output-dir", output,
		"--files", filepath.Join(input, "*.d2"),
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(output, "network.svg"))
	assert.NoFileExists(t, filepath.Join(output, "broken.svg"))
	assert.NoFileExists(t, filepath.Join(output, "empty.svg"))
	assert.NoFileExists(t, filepath.Join(output, "network.png"))

	data, err := os.ReadFile(filepath.Join(output, "network.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "viewBox=")
}

func TestRunExport_FileFormats(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()

	require.NoError(t, os.WriteFile(
		filepath.Join(input, "routing.d2"),
		[]byte("---\ntitle: Routing\nformats: [svg]\n---\na -> b\n"),
		0o644,
	))

	cmd := &cli.Command{
		Name:   "export",
		Flags:  ExportFlags,
		Action: RunExport,
	}

	err := cmd.Run(context.TODO(), []string{
		"",
		"--log-level", "INFO",
		"--engine", "d2",
		"--measurer", "native",
		"--rasterizer", "native",
		"--output-dir", output,
		"--files", filepath.Join(input, "*.d2"),
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(output, "Routing.svg"))
	assert.NoFileExists(t, filepath.Join(output, "Routing.png"))
}
