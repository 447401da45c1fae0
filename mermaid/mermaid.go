// Package mermaid renders mermaid diagrams with mermaid.js running in a
// headless browser tab.
package mermaid

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	mermaid "github.com/dreampuf/mermaid.go"
	"github.com/kovetskiy/mermaidmono/browser"
	"github.com/kovetskiy/mermaidmono/render"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

var renderTimeout = 90 * time.Second

type initOptions struct {
	StartOnLoad    bool             `json:"startOnLoad"`
	Theme          string           `json:"theme"`
	SecurityLevel  string           `json:"securityLevel"`
	FontFamily     string           `json:"fontFamily"`
	ER             erOptions        `json:"er"`
	Flowchart      flowchartOptions `json:"flowchart"`
	ThemeVariables themeVariables   `json:"themeVariables"`
}

type erOptions struct {
	UseMaxWidth     bool `json:"useMaxWidth"`
	MinEntityWidth  int  `json:"minEntityWidth"`
	MinEntityHeight int  `json:"minEntityHeight"`
	EntityPadding   int  `json:"entityPadding"`
}

type flowchartOptions struct {
	UseMaxWidth   bool `json:"useMaxWidth"`
	WrappingWidth int  `json:"wrappingWidth"`
}

type themeVariables struct {
	FontSize string `json:"fontSize"`
}

// InitializeStatement returns the mermaid.initialize call that applies
// config to the page.
func InitializeStatement(config render.Config) (string, error) {
	options := initOptions{
		StartOnLoad:   false,
		Theme:         config.Theme,
		SecurityLevel: config.SecurityLevel,
		FontFamily:    config.FontFamily,
		ER: erOptions{
			UseMaxWidth:     config.ER.UseMaxWidth,
			MinEntityWidth:  config.ER.MinEntityWidth,
			MinEntityHeight: config.ER.MinEntityHeight,
			EntityPadding:   config.ER.EntityPadding,
		},
		Flowchart: flowchartOptions{
			UseMaxWidth:   config.Flowchart.UseMaxWidth,
			WrappingWidth: config.Flowchart.WrappingWidth,
		},
	}

	if config.FontSize > 0 {
		options.ThemeVariables.FontSize = formatPixels(config.FontSize)
	}

	data, err := json.Marshal(options)
	if err != nil {
		return "", karma.Format(err, "unable to encode mermaid configuration")
	}

	return "mermaid.initialize(" + string(data) + ");", nil
}

// Engine is a mermaid.js instance living in its own browser tab. Renders
// are serialized; the page holds a single mermaid instance.
type Engine struct {
	chrome    *browser.Browser
	statement string
	engine    *mermaid.RenderEngine
	mutex     sync.Mutex
}

// NewEngine opens a tab in chrome and loads mermaid.js into it.
func NewEngine(ctx context.Context, chrome *browser.Browser, config render.Config) (*Engine, error) {
	statement, err := InitializeStatement(config)
	if err != nil {
		return nil, err
	}

	log.Debugf(nil, "setting up mermaid renderer: %s", statement)

	engine := &Engine{
		chrome:    chrome,
		statement: statement,
	}

	err = engine.load(ctx)
	if err != nil {
		return nil, err
	}

	return engine, nil
}

// load opens a fresh tab with mermaid.js initialized.
func (engine *Engine) load(ctx context.Context) error {
	parent, err := engine.chrome.Context()
	if err != nil {
		return err
	}

	done := make(chan loaded, 1)
	go func() {
		tab, err := mermaid.NewRenderEngine(parent, engine.statement)
		done <- loaded{tab, err}
	}()

	timeout := time.NewTimer(renderTimeout)
	defer timeout.Stop()

	select {
	case result := <-done:
		if result.err != nil {
			if result.engine != nil {
				result.engine.Cancel()
			}

			return karma.Format(result.err, "unable to load mermaid.js")
		}

		engine.engine = result.engine

		return nil

	case <-ctx.Done():
		go cancelLate(done)
		return ctx.Err()

	case <-timeout.C:
		go cancelLate(done)
		return karma.Format(
			context.DeadlineExceeded,
			"mermaid.js did not load within %s", renderTimeout,
		)
	}
}

// Factory adapts NewEngine to render.Factory.
func Factory(chrome *browser.Browser) render.Factory {
	return func(ctx context.Context, config render.Config) (render.Engine, error) {
		return NewEngine(ctx, chrome, config)
	}
}

type rendered struct {
	svg string
	err error
}

// Render runs mermaid.render in the tab. A render that outlives ctx takes
// the tab down with it; the next render opens a new one.
func (engine *Engine) Render(ctx context.Context, source string) ([]byte, error) {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if engine.engine == nil {
		err := engine.load(ctx)
		if err != nil {
			return nil, err
		}
	}

	tab := engine.engine

	done := make(chan rendered, 1)
	go func() {
		svg, err := tab.Render(EscapeTemplate(source))
		done <- rendered{svg, err}
	}()

	var result rendered
	select {
	case result = <-done:
	case <-ctx.Done():
		log.Warningf(ctx.Err(), "mermaid render did not finish, reloading the renderer")

		tab.Cancel()
		engine.engine = nil

		return nil, ctx.Err()
	}

	if result.err != nil {
		var exception *runtime.ExceptionDetails
		if errors.As(result.err, &exception) {
			return nil, render.NewSyntaxError(exceptionMessage(exception))
		}

		return nil, result.err
	}

	return []byte(result.svg), nil
}

// EscapeTemplate makes source safe to splice into a JavaScript template
// literal: it stays literal text and never closes the literal or
// interpolates.
func EscapeTemplate(source string) string {
	return templateEscaper.Replace(source)
}

var templateEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"${", `\${`,
)

func (engine *Engine) Close() error {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()

	if engine.engine != nil {
		engine.engine.Cancel()
		engine.engine = nil
	}

	return nil
}

func exceptionMessage(exception *runtime.ExceptionDetails) string {
	if exception.Exception != nil && exception.Exception.Description != "" {
		return exception.Exception.Description
	}

	return exception.Text
}

type loaded struct {
	engine *mermaid.RenderEngine
	err    error
}

// cancelLate closes an engine whose load finished after nobody waited.
func cancelLate(done <-chan loaded) {
	result := <-done
	if result.engine != nil {
		result.engine.Cancel()
	}
}

func formatPixels(size float64) string {
	return strconv.FormatFloat(size, 'f', -1, 64) + "px"
}
