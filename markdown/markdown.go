// Package markdown finds diagram sources embedded in Markdown documents.
package markdown

import (
	"bytes"
	"slices"
	"strings"

	"github.com/reconquest/pkg/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Languages are the fence info strings recognized as diagrams.
var Languages = []string{"mermaid", "d2"}

// Block is a fenced diagram block.
type Block struct {
	Language string
	Source   string
	Line     int
}

// ExtractDiagrams returns every fenced block whose language is one of
// languages, in document order. No languages means all of Languages.
func ExtractDiagrams(markdown []byte, languages ...string) []Block {
	if len(languages) == 0 {
		languages = Languages
	}

	log.Tracef(nil, "looking for %v blocks in markdown:\n%s", languages, string(markdown))

	converter := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
	)

	document := converter.Parser().Parse(text.NewReader(markdown))

	blocks := []Block{}

	err := ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		language := strings.ToLower(string(fenced.Language(markdown)))
		if !slices.Contains(languages, language) {
			return ast.WalkSkipChildren, nil
		}

		var source bytes.Buffer

		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			source.Write(segment.Value(markdown))
		}

		line := 0
		if lines.Len() > 0 {
			line = bytes.Count(markdown[:lines.At(0).Start], []byte("\n"))
		}

		blocks = append(blocks, Block{
			Language: language,
			Source:   source.String(),
			Line:     line,
		})

		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		log.Errorf(err, "unable to walk markdown document")
	}

	return blocks
}

// FirstDiagram returns the first diagram block of the document.
func FirstDiagram(markdown []byte, languages ...string) (Block, bool) {
	blocks := ExtractDiagrams(markdown, languages...)
	if len(blocks) == 0 {
		return Block{}, false
	}

	if len(blocks) > 1 {
		log.Debugf(nil, "document holds %d diagrams, using the first one", len(blocks))
	}

	return blocks[0], true
}
