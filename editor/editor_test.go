package editor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kovetskiy/mermaidmono/bounds"
	"github.com/kovetskiy/mermaidmono/clipboard"
	"github.com/kovetskiy/mermaidmono/export"
	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/kovetskiy/mermaidmono/graphic"
	"github.com/kovetskiy/mermaidmono/render"
	"github.com/kovetskiy/mermaidmono/render/rendertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T) *render.Adapter {
	t.Helper()

	adapter := render.NewAdapter(render.DefaultConfig(), rendertest.Factory(rendertest.New()))
	adapter.Start(context.Background())
	t.Cleanup(func() {
		_ = adapter.Close()
	})

	return adapter
}

func newExporter(t *testing.T) *export.Exporter {
	t.Helper()

	native, err := bounds.NewNative("monospace", 14)
	require.NoError(t, err)

	return export.NewExporter(
		native,
		export.NewEncoder(export.DefaultScale, export.NewNativeRasterizer(0)),
		bounds.DefaultPadding,
	)
}

func newSession(t *testing.T, reader clipboard.Reader) *Session {
	t.Helper()

	return NewSession(newAdapter(t), newExporter(t), reader)
}

func TestSession_Empty(t *testing.T) {
	session := newSession(t, clipboard.Static{})

	for _, source := range []string{"", "  \n"} {
		state := session.SetSource(context.Background(), source)
		assert.Equal(t, StatusEmpty, state.Status)
		assert.Nil(t, state.Graphic)
		assert.Empty(t, state.Error)
		assert.False(t, session.CanExport())

		result, err := session.Export(context.Background(), export.FormatSVG)
		assert.NoError(t, err)
		assert.Nil(t, result)
	}
}

func TestSession_RenderAndExport(t *testing.T) {
	session := newSession(t, clipboard.Static{})

	state := session.SetSource(context.Background(), "graph TD\nA-->B")
	require.Equal(t, StatusRendered, state.Status)
	require.NotNil(t, state.Graphic)
	assert.True(t, session.CanExport())

	native, err := bounds.NewNative("monospace", 14)
	require.NoError(t, err)

	box, err := bounds.Compute(context.Background(), native, state.Graphic)
	require.NoError(t, err)

	vector, err := session.Export(context.Background(), export.FormatSVG)
	require.NoError(t, err)
	assert.Equal(t, "mermaid-diagram.svg", vector.Filename)
	assert.Equal(t, "image/svg+xml", vector.MIMEType)

	exported, err := graphic.Parse(vector.Data)
	require.NoError(t, err)

	padded := box.Pad(80)
	assert.Equal(t, padded.ViewBox(), exported.Root().SelectAttrValue("viewBox", ""))
	assert.Equal(t, geom.FormatNumber(padded.Width()), exported.Root().SelectAttrValue("width", ""))

	raster, err := session.Export(context.Background(), export.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, "mermaid-diagram.png", raster.Filename)
	assert.Equal(t, int(math.Ceil(padded.Width()*3-1e-6)), raster.Width)
	assert.Equal(t, int(math.Ceil(padded.Height()*3-1e-6)), raster.Height)
}

func TestSession_SyntaxError(t *testing.T) {
	session := newSession(t, clipboard.Static{})

	state := session.SetSource(context.Background(), "graph TD\nA-->B")
	require.Equal(t, StatusRendered, state.Status)

	state = session.SetSource(context.Background(), "not a diagram")
	assert.Equal(t, StatusFailed, state.Status)
	assert.Nil(t, state.Graphic, "a failed render clears the previous graphic")
	assert.Contains(t, state.Error, "No diagram type detected")
	assert.False(t, session.CanExport())

	result, err := session.Export(context.Background(), export.FormatPNG)
	assert.ErrorIs(t, err, ErrExportDisabled)
	assert.Nil(t, result)

	state = session.SetSource(context.Background(), "graph LR\nX-->Y")
	assert.Equal(t, StatusRendered, state.Status)
	assert.Empty(t, state.Error)
	assert.True(t, session.CanExport())
}

func TestSession_Name(t *testing.T) {
	session := newSession(t, clipboard.Static{})
	session.SetName("checkout")

	session.SetSource(context.Background(), "graph TD\nA-->B")

	result, err := session.Export(context.Background(), export.FormatSVG)
	require.NoError(t, err)
	assert.Equal(t, "checkout.svg", result.Filename)

	session.SetName(" ")
	assert.Equal(t, DefaultName, session.Name())
}

// gatedRenderer holds renders of the sources listed in gates until the
// gate is closed.
type gatedRenderer struct {
	inner   Renderer
	gates   map[string]chan struct{}
	started chan string
}

func (renderer *gatedRenderer) Render(ctx context.Context, source string) (*graphic.Graphic, error) {
	renderer.started <- source

	if gate, ok := renderer.gates[source]; ok {
		<-gate
	}

	return renderer.inner.Render(ctx, source)
}

func TestSession_LatestWins(t *testing.T) {
	slow := "graph TD\nA-->B"
	fast := "graph TD\nC-->D-->E"

	renderer := &gatedRenderer{
		inner:   newAdapter(t),
		gates:   map[string]chan struct{}{slow: make(chan struct{})},
		started: make(chan string, 2),
	}

	session := NewSession(renderer, newExporter(t), clipboard.Static{})

	var (
		wg        sync.WaitGroup
		slowState State
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		slowState = session.SetSource(context.Background(), slow)
	}()

	require.Equal(t, slow, <-renderer.started)

	fastState := session.SetSource(context.Background(), fast)
	require.Equal(t, fast, <-renderer.started)
	require.Equal(t, StatusRendered, fastState.Status)

	close(renderer.gates[slow])
	wg.Wait()

	final := session.State()
	assert.Equal(t, fast, final.Source)
	assert.Equal(t, StatusRendered, final.Status)
	assert.Same(t, fastState.Graphic, final.Graphic, "stale render must not replace the newer one")
	assert.Equal(t, final, slowState)
}

func TestSession_Paste(t *testing.T) {
	session := newSession(t, clipboard.Static{Text: "graph TD\nA-->B"})

	state, err := session.Paste(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "graph TD\nA-->B", state.Source)
	assert.Equal(t, StatusRendered, state.Status)
}

func TestSession_PasteFailure(t *testing.T) {
	session := newSession(t, clipboard.Static{Err: errors.New("permission denied")})

	before := session.SetSource(context.Background(), "graph TD\nA-->B")

	state, err := session.Paste(context.Background())
	assert.Error(t, err)
	assert.Equal(t, before, state)
	assert.Equal(t, before, session.State())
}

func TestSession_Subscribe(t *testing.T) {
	session := newSession(t, clipboard.Static{})

	var (
		mutex    sync.Mutex
		statuses []Status
	)

	session.Subscribe(func(state State) {
		mutex.Lock()
		defer mutex.Unlock()

		statuses = append(statuses, state.Status)
	})

	session.SetSource(context.Background(), "graph TD\nA-->B")
	session.SetSource(context.Background(), "")

	mutex.Lock()
	defer mutex.Unlock()

	assert.Equal(t, []Status{StatusRendering, StatusRendered, StatusEmpty}, statuses)
}

func TestSession_RenderCanceled(t *testing.T) {
	engine := rendertest.New()
	engine.Gate = make(chan struct{})

	adapter := render.NewAdapter(render.DefaultConfig(), rendertest.Factory(engine))
	adapter.Start(context.Background())
	<-adapter.Ready()

	session := NewSession(adapter, newExporter(t), clipboard.Static{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	state := session.SetSource(ctx, "graph TD\nA-->B")
	assert.Equal(t, StatusFailed, state.Status)
	assert.Contains(t, state.Error, context.DeadlineExceeded.Error())
	assert.False(t, session.CanExport())
}
