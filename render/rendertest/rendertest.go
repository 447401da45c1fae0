// Package rendertest provides a deterministic in-memory diagram engine for
// tests that must not depend on a browser.
package rendertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kovetskiy/mermaidmono/render"
)

// Engine lays out "graph" sources as a row of boxes joined by edges.
// Anything else is rejected with a syntax error.
type Engine struct {
	// Gate, when set, holds every render until a value is received or the
	// context is done.
	Gate chan struct{}

	mutex   sync.Mutex
	sources []string
	closed  bool
}

func New() *Engine {
	return &Engine{}
}

// Factory returns a render.Factory that always hands out engine.
func Factory(engine *Engine) render.Factory {
	return func(ctx context.Context, config render.Config) (render.Engine, error) {
		return engine, nil
	}
}

func (engine *Engine) Render(ctx context.Context, source string) ([]byte, error) {
	engine.mutex.Lock()
	engine.sources = append(engine.sources, source)
	engine.mutex.Unlock()

	if engine.Gate != nil {
		select {
		case <-engine.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	lines := strings.Split(strings.TrimSpace(source), "\n")
	if !strings.HasPrefix(strings.TrimSpace(lines[0]), "graph") {
		return nil, render.NewSyntaxError(fmt.Sprintf(
			"Error: No diagram type detected matching given configuration for text: %s",
			strings.TrimSpace(lines[0]),
		))
	}

	return []byte(Markup(Nodes(source))), nil
}

// Sources returns every source rendered so far, in order.
func (engine *Engine) Sources() []string {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	return append([]string{}, engine.sources...)
}

func (engine *Engine) Closed() bool {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	return engine.closed
}

func (engine *Engine) Close() error {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	engine.closed = true

	return nil
}

// Nodes returns the distinct node names of a "graph" source in order of
// appearance.
func Nodes(source string) []string {
	var (
		nodes []string
		seen  = map[string]bool{}
	)

	lines := strings.Split(strings.TrimSpace(source), "\n")
	for _, line := range lines[1:] {
		for _, name := range strings.Split(line, "-->") {
			name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), ";"))
			if name == "" || seen[name] {
				continue
			}

			seen[name] = true
			nodes = append(nodes, name)
		}
	}

	return nodes
}

// Markup draws nodes as 80x40 boxes spaced 120 apart. The declared viewBox
// deliberately covers only the first box, and the whole drawing is
// clipped to it, the way responsive engine output often is.
func Markup(nodes []string) string {
	var body strings.Builder

	for i, name := range nodes {
		x := i * 120
		fmt.Fprintf(
			&body,
			`<g class="node" transform="translate(%d, 0)">`+
				`<rect x="0" y="0" width="80" height="40"/>`+
				`<text x="40" y="20" text-anchor="middle" dominant-baseline="central">%s</text>`+
				`</g>`,
			x, name,
		)

		if i > 0 {
			fmt.Fprintf(&body, `<path class="edge" d="M%d 20 L%d 20"/>`, x-40, x)
		}
	}

	return `<svg xmlns="http://www.w3.org/2000/svg" id="fake-svg" ` +
		`width="100%" viewBox="0 0 100 50" style="max-width: 100px;">` +
		`<style>#fake-svg{font-family:monospace;font-size:14px;}#fake-svg .node rect{stroke-width:1px;}</style>` +
		`<defs><clipPath id="clip"><rect width="100" height="50"/></clipPath></defs>` +
		`<g clip-path="url(#clip)">` + body.String() + `</g>` +
		`</svg>`
}
