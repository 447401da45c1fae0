package util

import (
	"context"

	"github.com/kovetskiy/mermaidmono/bounds"
	"github.com/kovetskiy/mermaidmono/browser"
	"github.com/kovetskiy/mermaidmono/clipboard"
	"github.com/kovetskiy/mermaidmono/d2"
	"github.com/kovetskiy/mermaidmono/editor"
	"github.com/kovetskiy/mermaidmono/export"
	"github.com/kovetskiy/mermaidmono/mermaid"
	"github.com/kovetskiy/mermaidmono/render"
	"github.com/kovetskiy/mermaidmono/types"
	"github.com/reconquest/pkg/log"
)

const (
	backendAuto    = "auto"
	backendBrowser = "browser"
	backendNative  = "native"
)

// Pipeline wires one renderer and one exporter for the whole run. Chrome
// is only launched when a component needs it.
type Pipeline struct {
	Adapter  *render.Adapter
	Exporter *export.Exporter

	chrome *browser.Browser
}

func NewPipeline(ctx context.Context, config types.Config) (*Pipeline, error) {
	pipeline := &Pipeline{}

	renderConfig := RenderConfig(config)

	var factory render.Factory
	switch config.Engine {
	case render.EngineD2:
		factory = d2.Factory()
	default:
		factory = mermaid.Factory(pipeline.browser())
	}

	measurer, err := pipeline.measurer(config)
	if err != nil {
		return nil, err
	}

	pipeline.Exporter = export.NewExporter(
		measurer,
		export.NewEncoder(config.Scale, pipeline.rasterizer(config)),
		config.Padding,
	)

	pipeline.Adapter = render.NewAdapter(renderConfig, factory)
	pipeline.Adapter.Start(ctx)

	return pipeline, nil
}

// RenderConfig overrides the engine defaults with the configured values.
func RenderConfig(config types.Config) render.Config {
	renderConfig := render.DefaultConfig()
	renderConfig.Engine = config.Engine

	if config.Theme != "" {
		renderConfig.Theme = config.Theme
	}

	if config.FontFamily != "" {
		renderConfig.FontFamily = config.FontFamily
	}

	if config.FontSize > 0 {
		renderConfig.FontSize = config.FontSize
	}

	return renderConfig
}

// Session starts an editing session over the pipeline.
func (pipeline *Pipeline) Session(reader clipboard.Reader) *editor.Session {
	return editor.NewSession(pipeline.Adapter, pipeline.Exporter, reader)
}

func (pipeline *Pipeline) Close() {
	if pipeline.Adapter != nil {
		err := pipeline.Adapter.Close()
		if err != nil {
			log.Errorf(err, "unable to stop renderer")
		}
	}

	if pipeline.chrome != nil {
		err := pipeline.chrome.Close()
		if err != nil {
			log.Errorf(err, "unable to stop browser")
		}
	}
}

func (pipeline *Pipeline) browser() *browser.Browser {
	if pipeline.chrome == nil {
		pipeline.chrome = browser.New()
	}

	return pipeline.chrome
}

func (pipeline *Pipeline) useBrowser(backend string, component string) bool {
	switch backend {
	case backendBrowser:
		return true
	case backendNative:
		return false
	}

	if browser.Available() {
		return true
	}

	log.Warningf(nil, "no Chrome found on PATH, using the native %s", component)

	return false
}

func (pipeline *Pipeline) measurer(config types.Config) (bounds.Measurer, error) {
	if pipeline.useBrowser(config.Measurer, "measurer") {
		return bounds.NewBrowser(pipeline.browser()), nil
	}

	return bounds.NewNative(config.FontFamily, config.FontSize)
}

func (pipeline *Pipeline) rasterizer(config types.Config) export.Rasterizer {
	if pipeline.useBrowser(config.Rasterizer, "rasterizer") {
		return export.NewBrowserRasterizer(pipeline.browser())
	}

	log.Warningf(nil, "the native rasterizer does not draw text")

	return export.NewNativeRasterizer(config.MaxPixels)
}
