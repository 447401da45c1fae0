// Package clipboard reads diagram source from the system clipboard.
package clipboard

import (
	"context"
	"errors"

	"github.com/atotto/clipboard"
	"github.com/reconquest/karma-go"
)

var ErrUnsupported = errors.New("clipboard is not supported on this system")

// Reader is the clipboard boundary.
type Reader interface {
	ReadText(ctx context.Context) (string, error)
}

// System reads the clipboard of the desktop session.
type System struct{}

func (System) ReadText(ctx context.Context) (string, error) {
	if clipboard.Unsupported {
		return "", ErrUnsupported
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := clipboard.ReadAll()
	if err != nil {
		return "", karma.Format(err, "unable to read clipboard")
	}

	return text, nil
}

// Static always returns the same text. It stands in for the clipboard
// in headless environments.
type Static struct {
	Text string
	Err  error
}

func (static Static) ReadText(ctx context.Context) (string, error) {
	return static.Text, static.Err
}
