package clipboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic(t *testing.T) {
	text, err := Static{Text: "graph TD\nA-->B"}.ReadText(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "graph TD\nA-->B", text)

	_, err = Static{Err: errors.New("denied")}.ReadText(context.Background())
	assert.EqualError(t, err, "denied")
}

func TestSystem_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := System{}.ReadText(ctx)
	assert.Error(t, err)
}
