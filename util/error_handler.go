package util

import (
	"fmt"
	"sync/atomic"

	"github.com/reconquest/pkg/log"
)

// FatalErrorHandler exits on the first error unless ContinueOnError is
// set, in which case it logs and counts the error.
type FatalErrorHandler struct {
	ContinueOnError bool

	failures atomic.Int64
}

func NewErrorHandler(continueOnError bool) *FatalErrorHandler {
	return &FatalErrorHandler{
		ContinueOnError: continueOnError,
	}
}

func (h *FatalErrorHandler) Handle(err error, format string, args ...interface{}) {
	h.failures.Add(1)

	if err == nil {
		if h.ContinueOnError {
			log.Error(fmt.Sprintf(format, args...))
			return
		}
		log.Fatal(fmt.Sprintf(format, args...))
	}

	if h.ContinueOnError {
		log.Errorf(err, format, args...)
		return
	}
	log.Fatalf(err, format, args...)
}

// Failures is the number of errors handled so far.
func (h *FatalErrorHandler) Failures() int {
	return int(h.failures.Load())
}
