package render

import (
	"errors"
	"strings"
)

var (
	ErrEmptySource = errors.New("diagram source is empty")
	ErrNotReady    = errors.New("renderer has not been started")
	ErrClosed      = errors.New("renderer is closed")
)

// SyntaxError is returned when the engine rejects the diagram source. The
// message is meant to be shown to the user as is.
type SyntaxError struct {
	Message string
}

func (err *SyntaxError) Error() string {
	return "syntax error: " + err.Message
}

// NewSyntaxError trims the noise engines prepend to their messages.
func NewSyntaxError(message string) *SyntaxError {
	message = strings.TrimSpace(message)
	message = strings.TrimPrefix(message, "Uncaught ")
	message = strings.TrimPrefix(message, "Error: ")

	if message == "" {
		message = "unable to parse diagram"
	}

	return &SyntaxError{Message: message}
}

// IsSyntaxError reports whether err carries a *SyntaxError.
func IsSyntaxError(err error) bool {
	var syntax *SyntaxError
	return errors.As(err, &syntax)
}
