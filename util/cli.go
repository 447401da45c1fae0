package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kovetskiy/lorg"
	"github.com/kovetskiy/mermaidmono/artifact"
	"github.com/kovetskiy/mermaidmono/clipboard"
	"github.com/kovetskiy/mermaidmono/editor"
	"github.com/kovetskiy/mermaidmono/export"
	"github.com/kovetskiy/mermaidmono/markdown"
	"github.com/kovetskiy/mermaidmono/metadata"
	"github.com/kovetskiy/mermaidmono/preview"
	"github.com/kovetskiy/mermaidmono/render"
	"github.com/kovetskiy/mermaidmono/types"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
	"github.com/urfave/cli/v3"
)

const defaultRenderTimeout = 90 * time.Second

func RunExport(ctx context.Context, cmd *cli.Command) error {
	if err := setupLogging(cmd); err != nil {
		return err
	}

	config, err := ConfigFromCommand(cmd)
	if err != nil {
		return err
	}

	logFlags(cmd)

	pipeline, err := NewPipeline(ctx, config)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	fatalErrorHandler := NewErrorHandler(cmd.Bool("continue-on-error"))
	saver := artifact.NewDirSaver(config.OutputDir)

	if cmd.Bool("clipboard") {
		processClipboard(ctx, pipeline, config, saver, fatalErrorHandler)
		return nil
	}

	files, err := doublestar.FilepathGlob(cmd.String("files"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		msg := "No files matched"
		if cmd.Bool("ci") {
			log.Warning(msg)
		} else {
			log.Fatal(msg)
		}
	}

	for _, file := range files {
		log.Infof(
			nil,
			"processing %s",
			file,
		)

		paths := processFile(ctx, file, pipeline, config, saver, fatalErrorHandler)
		for _, path := range paths {
			fmt.Println(path)
		}
	}

	if failures := fatalErrorHandler.Failures(); failures > 0 {
		log.Warningf(nil, "%d of %d file(s) could not be exported", failures, len(files))
	}

	return nil
}

func RunPreview(ctx context.Context, cmd *cli.Command) error {
	if err := setupLogging(cmd); err != nil {
		return err
	}

	config, err := ConfigFromCommand(cmd)
	if err != nil {
		return err
	}

	logFlags(cmd)

	pipeline, err := NewPipeline(ctx, config)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	session := pipeline.Session(clipboard.System{})
	if config.Name != "" {
		session.SetName(config.Name)
	}

	input := cmd.String("file")
	if input == "" {
		input = cmd.Args().First()
	}

	server, err := preview.NewServer(ctx, session, preview.Options{
		Host:      cmd.String("host"),
		Port:      cmd.String("port"),
		InputPath: input,
		Load:      Loader(config),
		Open:      cmd.Bool("open"),
	})
	if err != nil {
		return err
	}

	return server.Run()
}

// ConfigFromCommand collects and validates the flag values.
func ConfigFromCommand(cmd *cli.Command) (types.Config, error) {
	config := types.Config{
		Engine:        strings.ToLower(cmd.String("engine")),
		Theme:         cmd.String("theme"),
		FontFamily:    cmd.String("font-family"),
		FontSize:      cmd.Float("font-size"),
		Padding:       cmd.Float("padding"),
		Scale:         cmd.Float("scale"),
		Measurer:      strings.ToLower(cmd.String("measurer")),
		Rasterizer:    strings.ToLower(cmd.String("rasterizer")),
		MaxPixels:     int(cmd.Int("max-pixels")),
		RenderTimeout: cmd.Duration("render-timeout"),
		Name:          cmd.String("name"),
		OutputDir:     cmd.String("output-dir"),
		Formats:       cmd.StringSlice("format"),
	}

	return config, ValidateConfig(config)
}

func ValidateConfig(config types.Config) error {
	switch config.Engine {
	case render.EngineMermaid, render.EngineD2:
	default:
		return fmt.Errorf("unknown engine: %s", config.Engine)
	}

	switch config.Measurer {
	case backendAuto, backendBrowser, backendNative:
	default:
		return fmt.Errorf("unknown measurer: %s", config.Measurer)
	}

	switch config.Rasterizer {
	case backendAuto, backendBrowser, backendNative:
	default:
		return fmt.Errorf("unknown rasterizer: %s", config.Rasterizer)
	}

	if config.Padding < 0 {
		return fmt.Errorf("padding must not be negative: %v", config.Padding)
	}

	if config.Scale <= 0 {
		return fmt.Errorf("scale must be positive: %v", config.Scale)
	}

	for _, value := range config.Formats {
		_, err := export.ParseFormat(value)
		if err != nil {
			return err
		}
	}

	return nil
}

func processClipboard(
	ctx context.Context,
	pipeline *Pipeline,
	config types.Config,
	saver artifact.Saver,
	fatalErrorHandler *FatalErrorHandler,
) {
	session := pipeline.Session(clipboard.System{})
	if config.Name != "" {
		session.SetName(config.Name)
	}

	ctx, cancel := withTimeout(ctx, config.RenderTimeout)
	defer cancel()

	state, err := session.Paste(ctx)
	if err != nil {
		fatalErrorHandler.Handle(err, "unable to read diagram from clipboard")
		return
	}

	for _, path := range exportState(ctx, session, state, "clipboard", config, saver, fatalErrorHandler) {
		fmt.Println(path)
	}
}

func processFile(
	ctx context.Context,
	file string,
	pipeline *Pipeline,
	config types.Config,
	saver artifact.Saver,
	fatalErrorHandler *FatalErrorHandler,
) []string {
	diagram, err := LoadDiagram(file, config.Engine)
	if err != nil {
		fatalErrorHandler.Handle(err, "unable to load diagram from %q", file)
		return nil
	}

	name := diagram.Name
	if config.Name != "" {
		name = config.Name
	}

	if len(diagram.Formats) > 0 {
		log.Debugf(nil, "%s asks for formats %v", file, diagram.Formats)
		config.Formats = diagram.Formats
	}

	session := pipeline.Session(clipboard.Static{
		Err: errors.New("clipboard is not used when exporting files"),
	})
	session.SetName(name)

	ctx, cancel := withTimeout(ctx, config.RenderTimeout)
	defer cancel()

	state := session.SetSource(ctx, diagram.Source)

	return exportState(ctx, session, state, file, config, saver, fatalErrorHandler)
}

func exportState(
	ctx context.Context,
	session *editor.Session,
	state editor.State,
	origin string,
	config types.Config,
	saver artifact.Saver,
	fatalErrorHandler *FatalErrorHandler,
) []string {
	switch state.Status {
	case editor.StatusEmpty:
		log.Warningf(nil, "%s contains no diagram source, nothing to export", origin)
		return nil

	case editor.StatusFailed:
		fatalErrorHandler.Handle(
			karma.Describe("source", origin).Format(nil, "%s", state.Error),
			"unable to render diagram",
		)
		return nil
	}

	var artifacts []*artifact.Artifact

	for _, value := range config.Formats {
		format, err := export.ParseFormat(value)
		if err != nil {
			fatalErrorHandler.Handle(err, "unable to export %s", origin)
			return nil
		}

		result, err := session.Export(ctx, format)
		if err != nil {
			fatalErrorHandler.Handle(err, "unable to export %s as %s", origin, format)
			return nil
		}

		artifacts = append(artifacts, result)
	}

	paths, err := artifact.SaveAll(saver, artifacts)
	if err != nil {
		fatalErrorHandler.Handle(err, "unable to save exports of %s", origin)
		return nil
	}

	return paths
}

// Diagram is a diagram file as read from disk.
type Diagram struct {
	Name    string
	Source  string
	Formats []string
}

// LoadDiagram reads a diagram file. Markdown files contribute their first
// fenced block of the engine's language. The name comes from the
// metadata title, else from the file name. Formats listed in the metadata
// replace the configured ones for this file.
func LoadDiagram(file string, engine string) (Diagram, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Diagram{}, karma.Format(err, "unable to read file %q", file)
	}

	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	meta, body, err := metadata.ExtractMeta(data, file, true)
	if err != nil {
		return Diagram{}, karma.Format(err, "unable to extract metadata from file %q", file)
	}

	var diagram Diagram
	if meta != nil {
		diagram.Name = meta.Title
		diagram.Formats = meta.Formats
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".md", ".markdown":
		block, ok := markdown.FirstDiagram(body, engine)
		if ok {
			diagram.Source = block.Source
		}

		return diagram, nil
	}

	// mermaid reads its own front matter, d2 does not know it
	if engine == render.EngineMermaid && bytes.HasPrefix(data, []byte("---")) {
		diagram.Source = string(data)
	} else {
		diagram.Source = string(body)
	}

	return diagram, nil
}

// Loader adapts LoadDiagram to the preview file watcher.
func Loader(config types.Config) preview.Loader {
	return func(path string) (string, string, error) {
		diagram, err := LoadDiagram(path, config.Engine)
		if err != nil {
			return "", "", err
		}

		if config.Name != "" {
			diagram.Name = config.Name
		}

		return diagram.Name, diagram.Source, nil
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func setupLogging(cmd *cli.Command) error {
	if err := SetLogLevel(cmd); err != nil {
		return err
	}

	if cmd.String("color") == "never" {
		log.GetLogger().SetFormat(
			lorg.NewFormat(
				`${time:2006-01-02 15:04:05.000} ${level:%s:left:true} ${prefix}%s`,
			),
		)
		log.GetLogger().SetOutput(os.Stderr)
	}

	return nil
}

func logFlags(cmd *cli.Command) {
	log.Debug("config:")
	for _, f := range cmd.Flags {
		flag := f.Names()
		log.Debugf(nil, "%20s: %v", flag[0], cmd.Value(flag[0]))
	}
}

func ConfigFilePath() string {
	fp, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(err)
	}
	return filepath.Join(fp, "mermaidmono.toml")
}

func SetLogLevel(cmd *cli.Command) error {
	logLevel := cmd.String("log-level")
	switch strings.ToUpper(logLevel) {
	case lorg.LevelTrace.String():
		log.SetLevel(lorg.LevelTrace)
	case lorg.LevelDebug.String():
		log.SetLevel(lorg.LevelDebug)
	case lorg.LevelInfo.String():
		log.SetLevel(lorg.LevelInfo)
	case lorg.LevelWarning.String():
		log.SetLevel(lorg.LevelWarning)
	case lorg.LevelError.String():
		log.SetLevel(lorg.LevelError)
	case lorg.LevelFatal.String():
		log.SetLevel(lorg.LevelFatal)
	default:
		return fmt.Errorf("unknown log level: %s", logLevel)
	}

	return nil
}
