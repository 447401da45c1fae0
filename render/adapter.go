// Package render turns diagram source text into a rendered graphic through
// a pluggable diagram engine.
package render

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kovetskiy/mermaidmono/graphic"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

// Engine parses and lays out diagram source and returns SVG markup.
type Engine interface {
	Render(ctx context.Context, source string) ([]byte, error)
	Close() error
}

// Factory starts an engine configured with config.
type Factory func(ctx context.Context, config Config) (Engine, error)

// Adapter owns one engine. It is started once, asynchronously; renders
// issued before the engine is ready wait for it instead of failing.
type Adapter struct {
	config  Config
	factory Factory

	startOnce sync.Once
	ready     chan struct{}
	started   atomic.Bool

	engine Engine
	err    error

	sequence atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
}

func NewAdapter(config Config, factory Factory) *Adapter {
	if config.IDPrefix == "" {
		config.IDPrefix = DefaultConfig().IDPrefix
	}

	return &Adapter{
		config:  config,
		factory: factory,
		ready:   make(chan struct{}),
	}
}

func (adapter *Adapter) Config() Config {
	return adapter.config
}

// Start initializes the engine in the background. Only the first call has
// any effect.
func (adapter *Adapter) Start(ctx context.Context) {
	adapter.startOnce.Do(func() {
		adapter.started.Store(true)

		go func() {
			defer close(adapter.ready)

			log.Debugf(nil, "starting %s renderer", adapter.config.Engine)

			engine, err := adapter.factory(ctx, adapter.config)
			if err != nil {
				adapter.err = karma.Format(
					err,
					"unable to start %s renderer", adapter.config.Engine,
				)
				log.Errorf(adapter.err, "renderer is unavailable")
				return
			}

			adapter.engine = engine

			log.Debugf(nil, "%s renderer is ready", adapter.config.Engine)
		}()
	})
}

// Ready is closed once initialization finished, successfully or not.
func (adapter *Adapter) Ready() <-chan struct{} {
	return adapter.ready
}

// Err returns the initialization error. It is only meaningful after Ready
// is closed.
func (adapter *Adapter) Err() error {
	select {
	case <-adapter.ready:
		return adapter.err
	default:
		return nil
	}
}

// Render renders source into a graphic keyed by a fresh identifier.
// Blank source yields ErrEmptySource without touching the engine; source
// the engine rejects yields a *SyntaxError.
func (adapter *Adapter) Render(ctx context.Context, source string) (*graphic.Graphic, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}

	if !adapter.started.Load() {
		return nil, ErrNotReady
	}

	select {
	case <-adapter.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if adapter.err != nil {
		return nil, adapter.err
	}

	if adapter.closed.Load() {
		return nil, ErrClosed
	}

	id := fmt.Sprintf("%s-%d", adapter.config.IDPrefix, adapter.sequence.Add(1))

	log.Tracef(nil, "rendering %s: %q", id, source)

	markup, err := adapter.engine.Render(ctx, source)
	if err != nil {
		if IsSyntaxError(err) {
			return nil, err
		}

		return nil, karma.Format(err, "unable to render diagram %s", id)
	}

	result, err := graphic.Parse(markup)
	if err != nil {
		return nil, karma.Format(err, "engine produced unreadable markup for %s", id)
	}

	result.SetID(id)

	log.Debugf(nil, "rendered %s: %d bytes of markup", id, len(markup))

	return result, nil
}

// Close releases the engine, waiting for a pending initialization first.
func (adapter *Adapter) Close() error {
	var err error

	adapter.closeOnce.Do(func() {
		adapter.closed.Store(true)

		if !adapter.started.Load() {
			return
		}

		<-adapter.ready

		if adapter.engine != nil {
			err = adapter.engine.Close()
		}
	})

	return err
}
