// Package browser owns the headless Chrome process shared by the renderer,
// the browser measurer and the browser rasterizer.
package browser

import (
	"context"
	"errors"
	"os/exec"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

var ErrClosed = errors.New("browser is closed")

// Executables looked up on PATH by Available.
var executables = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
}

// Browser is a lazily started headless Chrome. Every caller gets its own
// tab; the process lives until Close.
type Browser struct {
	options []chromedp.ExecAllocatorOption

	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New returns a browser that will be launched with the default headless
// flags plus options on first use.
func New(options ...chromedp.ExecAllocatorOption) *Browser {
	return &Browser{
		options: append(
			append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...),
			options...,
		),
	}
}

// Available reports whether a Chrome binary can be found on PATH.
func Available() bool {
	for _, name := range executables {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}

	return false
}

// Context returns the browser-level context, launching Chrome if needed.
// Contexts derived from it with chromedp.NewContext open new tabs.
func (browser *Browser) Context() (context.Context, error) {
	browser.mutex.Lock()
	defer browser.mutex.Unlock()

	if browser.closed {
		return nil, ErrClosed
	}

	if browser.ctx != nil {
		return browser.ctx, nil
	}

	log.Debugf(nil, "launching headless browser")

	allocatorCtx, cancelAllocator := chromedp.NewExecAllocator(
		context.Background(),
		browser.options...,
	)
	ctx, cancelBrowser := chromedp.NewContext(allocatorCtx)

	err := chromedp.Run(ctx)
	if err != nil {
		cancelBrowser()
		cancelAllocator()

		return nil, karma.Format(err, "unable to launch headless browser")
	}

	browser.ctx = ctx
	browser.cancel = func() {
		cancelBrowser()
		cancelAllocator()
	}

	return ctx, nil
}

// Tab opens a new tab that is closed when ctx is done or cancel is called.
func (browser *Browser) Tab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	parent, err := browser.Context()
	if err != nil {
		return nil, nil, err
	}

	tab, cancel := chromedp.NewContext(parent)

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-tab.Done():
		}
	}()

	return tab, cancel, nil
}

// Close terminates the browser process. It is safe to call more than once.
func (browser *Browser) Close() error {
	browser.mutex.Lock()
	defer browser.mutex.Unlock()

	if browser.closed {
		return nil
	}

	browser.closed = true

	if browser.cancel != nil {
		log.Debugf(nil, "closing headless browser")
		browser.cancel()
	}

	return nil
}
