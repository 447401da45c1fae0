package export

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/kovetskiy/mermaidmono/browser"
	"github.com/reconquest/karma-go"
)

const pngDataPrefix = "data:image/png;base64,"

// rasterizeScript draws the svg, embedded as a data URL, onto a canvas
// that was filled with white first.
const rasterizeScript = `(async (source, width, height) => {
	const image = new Image();
	image.src = source;
	await image.decode();

	const canvas = document.createElement('canvas');
	canvas.width = width;
	canvas.height = height;

	const context = canvas.getContext('2d');
	if (!context) {
		return { surface: false, data: '' };
	}

	context.fillStyle = '#ffffff';
	context.fillRect(0, 0, width, height);
	context.drawImage(image, 0, 0, width, height);

	return { surface: true, data: canvas.toDataURL('image/png') };
})(%s, %d, %d)`

type rasterized struct {
	Surface bool   `json:"surface"`
	Data    string `json:"data"`
}

// BrowserRasterizer paints with a canvas in headless Chrome, which renders
// text, CSS and foreignObject labels the way the preview shows them.
type BrowserRasterizer struct {
	browser *browser.Browser
}

func NewBrowserRasterizer(browser *browser.Browser) *BrowserRasterizer {
	return &BrowserRasterizer{browser: browser}
}

func (rasterizer *BrowserRasterizer) Rasterize(
	ctx context.Context,
	markup []byte,
	width, height int,
) ([]byte, error) {
	source, err := json.Marshal(
		"data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(markup),
	)
	if err != nil {
		return nil, karma.Format(err, "unable to encode svg data url")
	}

	tab, cancel, err := rasterizer.browser.Tab(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var result rasterized

	err = chromedp.Run(
		tab,
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(
			fmt.Sprintf(rasterizeScript, source, width, height),
			&result,
			func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
				return params.WithAwaitPromise(true)
			},
		),
	)
	if err != nil {
		var exception *runtime.ExceptionDetails
		if errors.As(err, &exception) {
			return nil, fmt.Errorf("%w: %s", ErrDecode, exception.Error())
		}

		return nil, karma.Format(err, "unable to rasterize in browser")
	}

	if !result.Surface || !strings.HasPrefix(result.Data, pngDataPrefix) {
		return nil, fmt.Errorf("%w: canvas of %dx%d is unavailable", ErrSurface, width, height)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(result.Data, pngDataPrefix))
	if err != nil {
		return nil, karma.Format(err, "unable to decode canvas data url")
	}

	return data, nil
}
