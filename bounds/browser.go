package bounds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/kovetskiy/mermaidmono/browser"
	"github.com/kovetskiy/mermaidmono/geom"
	"github.com/kovetskiy/mermaidmono/graphic"
	"github.com/reconquest/karma-go"
)

// measureScript mounts the markup in an off-screen container, reads the
// box of every drawable element mapped into the root user space and
// always removes the container again.
const measureScript = `(async (markup) => {
	const container = document.createElement('div');
	container.style.position = 'absolute';
	container.style.left = '-9999px';
	container.style.visibility = 'hidden';
	container.innerHTML = markup;
	document.body.appendChild(container);

	try {
		await document.fonts.ready;

		const svg = container.querySelector('svg');
		if (!svg) {
			throw new Error('no svg root');
		}

		const root = svg.getScreenCTM();
		const inverse = root ? root.inverse() : null;
		const selector = 'text, rect, path, circle, ellipse, line, polyline, ' +
			'polygon, g, foreignObject, image, use';

		const boxes = [];
		for (const element of svg.querySelectorAll(selector)) {
			let box;
			try {
				box = element.getBBox();
			} catch (e) {
				continue;
			}

			const screen = element.getScreenCTM();
			const matrix = inverse && screen ? inverse.multiply(screen) : null;

			const corners = [
				[box.x, box.y],
				[box.x + box.width, box.y],
				[box.x + box.width, box.y + box.height],
				[box.x, box.y + box.height],
			].map(([x, y]) => {
				if (!matrix) {
					return [x, y];
				}
				const point = new DOMPoint(x, y).matrixTransform(matrix);
				return [point.x, point.y];
			});

			const xs = corners.map((corner) => corner[0]);
			const ys = corners.map((corner) => corner[1]);

			boxes.push({
				minX: Math.min(...xs),
				minY: Math.min(...ys),
				maxX: Math.max(...xs),
				maxY: Math.max(...ys),
			});
		}

		return boxes;
	} finally {
		container.remove();
	}
})(%s)`

type browserBox struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Browser measures graphics with the layout engine of headless Chrome, so
// text is sized with the fonts the page actually resolves.
type Browser struct {
	browser *browser.Browser
}

func NewBrowser(browser *browser.Browser) *Browser {
	return &Browser{browser: browser}
}

func (measurer *Browser) Measure(
	ctx context.Context,
	graphic *graphic.Graphic,
) ([]geom.Rect, error) {
	markup, err := graphic.Bytes()
	if err != nil {
		return nil, err
	}

	argument, err := json.Marshal(string(markup))
	if err != nil {
		return nil, karma.Format(err, "unable to encode svg markup")
	}

	tab, cancel, err := measurer.browser.Tab(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var boxes []browserBox

	err = chromedp.Run(
		tab,
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(
			fmt.Sprintf(measureScript, argument),
			&boxes,
			awaitPromise,
		),
	)
	if err != nil {
		return nil, karma.Format(err, "unable to measure graphic in browser")
	}

	result := make([]geom.Rect, 0, len(boxes))
	for _, box := range boxes {
		result = append(result, geom.Rect{
			MinX: box.MinX,
			MinY: box.MinY,
			MaxX: box.MaxX,
			MaxY: box.MaxY,
		})
	}

	return result, nil
}

func awaitPromise(params *runtime.EvaluateParams) *runtime.EvaluateParams {
	return params.WithAwaitPromise(true)
}
