package metadata

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
	"gopkg.in/yaml.v3"
)

const (
	HeaderTitle  = `Title`
	HeaderFormat = `Format`
)

const frontMatterDelimiter = "---"

type Meta struct {
	Title   string
	Formats []string
}

type frontMatter struct {
	Title   string   `yaml:"title"`
	Formats []string `yaml:"formats"`
}

var reHeaderPattern = regexp.MustCompile(`<!--\s*([^:]+):\s*(.*)\s*-->`)

// ExtractMeta reads diagram metadata either from a leading YAML front
// matter block or from leading <!-- Header: value --> comments, and
// returns the data that follows it. When nothing names the diagram and
// titleFromFilename is set, the file stem is used.
func ExtractMeta(data []byte, filename string, titleFromFilename bool) (*Meta, []byte, error) {
	meta, body, err := extractFrontMatter(data)
	if err != nil {
		return nil, nil, err
	}

	if meta == nil {
		meta, body = extractHeaders(data)
	}

	if titleFromFilename && filename != "" && (meta == nil || meta.Title == "") {
		if meta == nil {
			meta = &Meta{}
		}

		meta.Title = TitleFromFilename(filename)
	}

	if meta == nil {
		return nil, data, nil
	}

	meta.Title = strings.TrimSpace(meta.Title)

	return meta, body, nil
}

func extractFrontMatter(data []byte) (*Meta, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != frontMatterDelimiter {
		return nil, data, nil
	}

	offset := len(scanner.Text()) + 1

	var block bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		offset += len(line) + 1

		if strings.TrimSpace(line) == frontMatterDelimiter {
			var matter frontMatter

			err := yaml.Unmarshal(block.Bytes(), &matter)
			if err != nil {
				return nil, nil, karma.Format(err, "unable to parse front matter")
			}

			if offset > len(data) {
				offset = len(data)
			}

			return &Meta{
				Title:   matter.Title,
				Formats: matter.Formats,
			}, data[offset:], nil
		}

		block.WriteString(line)
		block.WriteByte('\n')
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	log.Warningf(nil, "front matter is never closed, treating it as diagram source")

	return nil, data, nil
}

func extractHeaders(data []byte) (*Meta, []byte) {
	var (
		meta   *Meta
		offset int
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()

		matches := reHeaderPattern.FindStringSubmatch(line)
		if matches == nil {
			break
		}

		offset += len(line) + 1

		if meta == nil {
			meta = &Meta{}
		}

		value := strings.TrimSpace(matches[2])

		switch strings.ToLower(strings.TrimSpace(matches[1])) {
		case strings.ToLower(HeaderTitle):
			meta.Title = value

		case strings.ToLower(HeaderFormat):
			meta.Formats = append(meta.Formats, value)

		default:
			log.Debugf(
				nil,
				`ignoring unknown header %q line: %#v`,
				matches[1],
				line,
			)
		}
	}

	if offset > len(data) {
		offset = len(data)
	}

	return meta, data[offset:]
}

// TitleFromFilename returns the file name without directory and
// extension.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
