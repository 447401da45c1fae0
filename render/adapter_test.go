package render_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kovetskiy/mermaidmono/render"
	"github.com/kovetskiy/mermaidmono/render/rendertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startAdapter(t *testing.T, engine *rendertest.Engine) *render.Adapter {
	t.Helper()

	adapter := render.NewAdapter(render.DefaultConfig(), rendertest.Factory(engine))
	adapter.Start(context.Background())
	t.Cleanup(func() {
		assert.NoError(t, adapter.Close())
	})

	return adapter
}

func TestAdapter_EmptySource(t *testing.T) {
	engine := rendertest.New()
	adapter := startAdapter(t, engine)

	for _, source := range []string{"", "   ", "\n\t\n"} {
		_, err := adapter.Render(context.Background(), source)
		assert.ErrorIs(t, err, render.ErrEmptySource)
		assert.False(t, render.IsSyntaxError(err))
	}

	assert.Empty(t, engine.Sources())
}

func TestAdapter_SyntaxError(t *testing.T) {
	adapter := startAdapter(t, rendertest.New())

	_, err := adapter.Render(context.Background(), "not a diagram")
	require.Error(t, err)

	var syntax *render.SyntaxError
	require.True(t, errors.As(err, &syntax))
	assert.Equal(
		t,
		"No diagram type detected matching given configuration for text: not a diagram",
		syntax.Message,
	)
}

func TestAdapter_Render(t *testing.T) {
	adapter := startAdapter(t, rendertest.New())

	first, err := adapter.Render(context.Background(), "graph TD\nA-->B")
	require.NoError(t, err)

	second, err := adapter.Render(context.Background(), "graph TD\nA-->B")
	require.NoError(t, err)

	assert.Equal(t, "mermaid-1", first.ID())
	assert.Equal(t, "mermaid-2", second.ID())

	firstBox, ok := first.Declared()
	require.True(t, ok)

	secondBox, ok := second.Declared()
	require.True(t, ok)

	assert.Equal(t, firstBox, secondBox)
}

func TestAdapter_IDPrefix(t *testing.T) {
	config := render.DefaultConfig()
	config.IDPrefix = "preview"

	adapter := render.NewAdapter(config, rendertest.Factory(rendertest.New()))
	adapter.Start(context.Background())
	defer adapter.Close()

	result, err := adapter.Render(context.Background(), "graph LR\nX-->Y")
	require.NoError(t, err)

	assert.Equal(t, "preview-1", result.ID())

	markup, err := result.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(markup), "#preview-1 .node rect")
	assert.NotContains(t, string(markup), "#fake-svg")
}

func TestAdapter_NotStarted(t *testing.T) {
	adapter := render.NewAdapter(render.DefaultConfig(), rendertest.Factory(rendertest.New()))

	_, err := adapter.Render(context.Background(), "graph TD\nA-->B")
	assert.ErrorIs(t, err, render.ErrNotReady)
}

func TestAdapter_QueuesUntilReady(t *testing.T) {
	release := make(chan struct{})
	engine := rendertest.New()

	adapter := render.NewAdapter(
		render.DefaultConfig(),
		func(ctx context.Context, config render.Config) (render.Engine, error) {
			<-release
			return engine, nil
		},
	)
	adapter.Start(context.Background())
	defer adapter.Close()

	done := make(chan error, 1)
	go func() {
		_, err := adapter.Render(context.Background(), "graph TD\nA-->B")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("render finished before the engine was ready")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("render did not finish after the engine became ready")
	}

	assert.Equal(t, []string{"graph TD\nA-->B"}, engine.Sources())
}

func TestAdapter_QueueHonorsContext(t *testing.T) {
	adapter := render.NewAdapter(
		render.DefaultConfig(),
		func(ctx context.Context, config render.Config) (render.Engine, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	adapter.Start(ctx)

	renderCtx, renderCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer renderCancel()

	_, err := adapter.Render(renderCtx, "graph TD\nA-->B")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancel()
	<-adapter.Ready()
	assert.Error(t, adapter.Err())
}

func TestAdapter_StartFailure(t *testing.T) {
	adapter := render.NewAdapter(
		render.DefaultConfig(),
		func(ctx context.Context, config render.Config) (render.Engine, error) {
			return nil, errors.New("chrome not found")
		},
	)
	adapter.Start(context.Background())
	<-adapter.Ready()

	_, err := adapter.Render(context.Background(), "graph TD\nA-->B")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.False(t, render.IsSyntaxError(err))
	assert.NoError(t, adapter.Close())
}

func TestAdapter_Close(t *testing.T) {
	engine := rendertest.New()

	adapter := render.NewAdapter(render.DefaultConfig(), rendertest.Factory(engine))
	adapter.Start(context.Background())
	<-adapter.Ready()

	require.NoError(t, adapter.Close())
	assert.True(t, engine.Closed())

	_, err := adapter.Render(context.Background(), "graph TD\nA-->B")
	assert.ErrorIs(t, err, render.ErrClosed)
}

func TestNewSyntaxError(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Error: Parse error on line 1", "Parse error on line 1"},
		{"Uncaught Error: Lexical error", "Lexical error"},
		{"  ", "unable to parse diagram"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, render.NewSyntaxError(tt.input).Message, tt.input)
	}
}
