// Package editor holds the state of one diagram being edited: its source,
// the latest render and whether it can be exported.
package editor

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kovetskiy/mermaidmono/artifact"
	"github.com/kovetskiy/mermaidmono/clipboard"
	"github.com/kovetskiy/mermaidmono/export"
	"github.com/kovetskiy/mermaidmono/graphic"
	"github.com/kovetskiy/mermaidmono/render"
	"github.com/reconquest/pkg/log"
)

// DefaultName names exported files when the diagram has no title.
const DefaultName = "mermaid-diagram"

var ErrExportDisabled = errors.New("export is disabled until the diagram renders")

type Status string

const (
	StatusEmpty     Status = "empty"
	StatusRendering Status = "rendering"
	StatusRendered  Status = "rendered"
	StatusFailed    Status = "failed"
)

// State is a snapshot of a session.
type State struct {
	Name       string
	Source     string
	Status     Status
	Graphic    *graphic.Graphic
	Error      string
	Generation uint64
}

func (state State) CanExport() bool {
	return state.Status == StatusRendered && state.Graphic != nil
}

type Renderer interface {
	Render(ctx context.Context, source string) (*graphic.Graphic, error)
}

type Exporter interface {
	Export(
		ctx context.Context,
		source *graphic.Graphic,
		format export.Format,
		name string,
	) (*artifact.Artifact, error)
}

// Session serializes edits. Every edit gets a generation number and a
// render result is only kept while its generation is still the newest.
type Session struct {
	renderer  Renderer
	exporter  Exporter
	clipboard clipboard.Reader

	mutex     sync.Mutex
	state     State
	listeners []func(State)
}

func NewSession(
	renderer Renderer,
	exporter Exporter,
	clipboard clipboard.Reader,
) *Session {
	return &Session{
		renderer:  renderer,
		exporter:  exporter,
		clipboard: clipboard,
		state: State{
			Name:   DefaultName,
			Status: StatusEmpty,
		},
	}
}

// SetName changes the base name of exported files.
func (session *Session) SetName(name string) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}

	session.state.Name = name
}

func (session *Session) Name() string {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	return session.state.Name
}

// Subscribe registers fn to be called with every new state.
func (session *Session) Subscribe(fn func(State)) {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.listeners = append(session.listeners, fn)
}

func (session *Session) State() State {
	session.mutex.Lock()
	defer session.mutex.Unlock()

	return session.state
}

func (session *Session) Source() string {
	return session.State().Source
}

func (session *Session) CanExport() bool {
	return session.State().CanExport()
}

// SetSource replaces the source and renders it. The returned state is the
// newest one, which may belong to a later edit.
func (session *Session) SetSource(ctx context.Context, source string) State {
	session.mutex.Lock()

	generation := session.state.Generation + 1

	if strings.TrimSpace(source) == "" {
		session.state = State{
			Name:       session.state.Name,
			Source:     source,
			Status:     StatusEmpty,
			Generation: generation,
		}
		state := session.publish()
		session.mutex.Unlock()

		return state
	}

	// the previous graphic stays on screen until the new one is ready
	session.state = State{
		Name:       session.state.Name,
		Source:     source,
		Status:     StatusRendering,
		Graphic:    session.state.Graphic,
		Generation: generation,
	}
	session.publish()
	session.mutex.Unlock()

	result, err := session.renderer.Render(ctx, source)

	session.mutex.Lock()
	defer session.mutex.Unlock()

	if session.state.Generation != generation {
		log.Tracef(
			nil,
			"discarding render of generation %d, generation %d is newer",
			generation, session.state.Generation,
		)

		return session.state
	}

	switch {
	case err == nil:
		session.state.Status = StatusRendered
		session.state.Graphic = result
		session.state.Error = ""

	case errors.Is(err, render.ErrEmptySource):
		session.state.Status = StatusEmpty
		session.state.Graphic = nil

	default:
		var syntax *render.SyntaxError
		if errors.As(err, &syntax) {
			session.state.Error = syntax.Message
		} else {
			log.Errorf(err, "unable to render diagram")
			session.state.Error = err.Error()
		}

		session.state.Status = StatusFailed
		session.state.Graphic = nil
	}

	return session.publish()
}

// Paste replaces the source with the clipboard text. A clipboard failure
// is logged and leaves the session untouched.
func (session *Session) Paste(ctx context.Context) (State, error) {
	text, err := session.clipboard.ReadText(ctx)
	if err != nil {
		log.Warningf(err, "unable to read clipboard")
		return session.State(), err
	}

	return session.SetSource(ctx, text), nil
}

// Export exports the current graphic. It is a no-op without source and
// refused while the source does not render.
func (session *Session) Export(ctx context.Context, format export.Format) (*artifact.Artifact, error) {
	state := session.State()

	if state.Status == StatusEmpty {
		log.Debugf(nil, "nothing to export")
		return nil, nil
	}

	if !state.CanExport() {
		return nil, ErrExportDisabled
	}

	return session.exporter.Export(ctx, state.Graphic, format, state.Name)
}

// publish must be called with the mutex held.
func (session *Session) publish() State {
	state := session.state
	for _, listener := range session.listeners {
		listener(state)
	}

	return state
}
