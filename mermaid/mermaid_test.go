package mermaid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kovetskiy/mermaidmono/browser"
	"github.com/kovetskiy/mermaidmono/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeStatement(t *testing.T) {
	statement, err := InitializeStatement(render.DefaultConfig())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(statement, "mermaid.initialize("))
	require.True(t, strings.HasSuffix(statement, ");"))

	payload := strings.TrimSuffix(strings.TrimPrefix(statement, "mermaid.initialize("), ");")

	var options map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(payload), &options))

	assert.Equal(t, false, options["startOnLoad"])
	assert.Equal(t, "default", options["theme"])
	assert.Equal(t, "loose", options["securityLevel"])
	assert.Equal(t, "JetBrains Mono, Courier New, monospace", options["fontFamily"])
	assert.Equal(t, map[string]interface{}{
		"useMaxWidth":     true,
		"minEntityWidth":  180.0,
		"minEntityHeight": 60.0,
		"entityPadding":   20.0,
	}, options["er"])
	assert.Equal(t, map[string]interface{}{
		"useMaxWidth":   true,
		"wrappingWidth": 200.0,
	}, options["flowchart"])
	assert.Equal(t, map[string]interface{}{"fontSize": "14px"}, options["themeVariables"])
}

func TestFormatPixels(t *testing.T) {
	assert.Equal(t, "14px", formatPixels(14))
	assert.Equal(t, "12.5px", formatPixels(12.5))
}

func TestEscapeTemplate(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"graph TD\nA-->B", "graph TD\nA-->B"},
		{"A[\"`**bold**`\"]", "A[\"\\`**bold**\\`\"]"},
		{`A[C:\temp]`, `A[C:\\temp]`},
		{"A[${alert(1)}]", "A[\\${alert(1)}]"},
		{"A[$ {x} and $x]", "A[$ {x} and $x]"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeTemplate(tt.source))
		})
	}
}

func newAdapter(t *testing.T) *render.Adapter {
	t.Helper()

	if !browser.Available() {
		t.Skip("no headless browser available")
	}

	chrome := browser.New()
	t.Cleanup(func() {
		_ = chrome.Close()
	})

	adapter := render.NewAdapter(render.DefaultConfig(), Factory(chrome))
	adapter.Start(context.Background())
	t.Cleanup(func() {
		_ = adapter.Close()
	})

	return adapter
}

func TestEngine_LiteralLabels(t *testing.T) {
	adapter := newAdapter(t)

	tests := []struct {
		name   string
		source string
		text   string
	}{
		{"markdown string", "graph TD\nA[\"`**bold** label`\"]-->B", "bold"},
		{"interpolation", "graph TD\nA[\"cost ${total}\"]-->B", "${total}"},
		{"backslash", "graph TD\nA[\"C:\\temp\"]-->B", `C:\temp`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := adapter.Render(context.Background(), tt.source)
			require.NoError(t, err)

			data, err := result.Bytes()
			require.NoError(t, err)
			assert.Contains(t, string(data), tt.text)
		})
	}
}

func TestEngine_RendersAfterTimeout(t *testing.T) {
	adapter := newAdapter(t)

	var source strings.Builder
	source.WriteString("graph TD\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&source, "N%d-->N%d\n", i, i+1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := adapter.Render(ctx, source.String())
	if err != nil {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	result, err := adapter.Render(context.Background(), "graph TD\nA-->B")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.ID(), "mermaid-"))
}

func TestEngine(t *testing.T) {
	adapter := newAdapter(t)

	tests := []struct {
		name    string
		source  string
		wantErr func(t *testing.T, err error)
	}{
		{
			name:   "flowchart",
			source: "graph TD\nA-->B",
			wantErr: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:   "unknown diagram",
			source: "not a diagram",
			wantErr: func(t *testing.T, err error) {
				assert.True(t, render.IsSyntaxError(err), "got %v", err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := adapter.Render(context.Background(), tt.source)
			tt.wantErr(t, err)

			if err == nil {
				assert.True(t, strings.HasPrefix(result.ID(), "mermaid-"))
			}
		})
	}
}
