// Package d2 renders d2 diagrams in process.
package d2

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kovetskiy/mermaidmono/render"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"

	"oss.terrastruct.com/d2/d2graph"
	"oss.terrastruct.com/d2/d2layouts/d2dagrelayout"
	"oss.terrastruct.com/d2/d2lib"
	"oss.terrastruct.com/d2/d2renderers/d2svg"
	"oss.terrastruct.com/d2/d2themes"
	"oss.terrastruct.com/d2/d2themes/d2themescatalog"
	d2log "oss.terrastruct.com/d2/lib/log"
	"oss.terrastruct.com/d2/lib/textmeasure"
	"oss.terrastruct.com/util-go/go2"
)

var renderTimeout = 120 * time.Second

// Pad is the margin d2 leaves around the diagram. Export computes its own
// bounds, so it only matters for the live preview.
const Pad = 5

// Engine compiles, lays out and renders d2 source. The text ruler is not
// safe for concurrent use, so renders are serialized.
type Engine struct {
	ruler   *textmeasure.Ruler
	themeID int64
	mutex   sync.Mutex
}

func NewEngine(config render.Config) (*Engine, error) {
	themeID, err := ThemeID(config.Theme)
	if err != nil {
		return nil, err
	}

	ruler, err := textmeasure.NewRuler()
	if err != nil {
		return nil, karma.Format(err, "unable to load d2 fonts")
	}

	return &Engine{
		ruler:   ruler,
		themeID: themeID,
	}, nil
}

// Factory adapts NewEngine to render.Factory.
func Factory() render.Factory {
	return func(ctx context.Context, config render.Config) (render.Engine, error) {
		return NewEngine(config)
	}
}

// ThemeID resolves a theme by catalog name or numeric id. "default" and an
// empty name select the neutral default theme.
func ThemeID(name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "default") {
		return d2themescatalog.NeutralDefault.ID, nil
	}

	if id, err := strconv.ParseInt(name, 10, 64); err == nil {
		if d2themescatalog.Find(id).Name == "" {
			return 0, karma.Describe("theme", name).Format(nil, "unknown d2 theme")
		}

		return id, nil
	}

	for _, catalog := range [][]d2themes.Theme{
		d2themescatalog.LightCatalog,
		d2themescatalog.DarkCatalog,
	} {
		for _, theme := range catalog {
			if strings.EqualFold(theme.Name, name) {
				return theme.ID, nil
			}
		}
	}

	return 0, karma.Describe("theme", name).Format(nil, "unknown d2 theme")
}

func (engine *Engine) Render(ctx context.Context, source string) ([]byte, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	ctx = d2log.WithDefault(ctx)

	layoutResolver := func(engine string) (d2graph.LayoutGraph, error) {
		return d2dagrelayout.DefaultLayout, nil
	}
	renderOpts := &d2svg.RenderOpts{
		Pad:     go2.Pointer(int64(Pad)),
		ThemeID: go2.Pointer(engine.themeID),
	}
	compileOpts := &d2lib.CompileOptions{
		LayoutResolver: layoutResolver,
		Ruler:          engine.ruler,
	}

	diagram, _, err := d2lib.Compile(ctx, source, compileOpts, renderOpts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, render.NewSyntaxError(err.Error())
	}

	out, err := d2svg.Render(diagram, renderOpts)
	if err != nil {
		return nil, karma.Format(err, "unable to render d2 diagram")
	}

	log.Tracef(nil, "d2 rendered %d bytes", len(out))

	return out, nil
}

func (engine *Engine) Close() error {
	return nil
}
