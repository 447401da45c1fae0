package util

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	altsrctoml "github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var filename string

// Flags are shared by every command.
var Flags = []cli.Flag{
	&cli.StringFlag{
		Name:    "engine",
		Aliases: []string{"e"},
		Value:   "mermaid",
		Usage:   "diagram language to render. Possible values: mermaid, d2.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_ENGINE"), altsrctoml.TOML("engine", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:    "theme",
		Value:   "default",
		Usage:   "engine theme. For d2 either a theme name or its numeric id.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_THEME"), altsrctoml.TOML("theme", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:    "font-family",
		Value:   "JetBrains Mono, Courier New, monospace",
		Usage:   "font family used to lay out and measure labels.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_FONT_FAMILY"), altsrctoml.TOML("font-family", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.FloatFlag{
		Name:    "font-size",
		Value:   14,
		Usage:   "font size in pixels.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_FONT_SIZE"), altsrctoml.TOML("font-size", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.FloatFlag{
		Name:    "padding",
		Value:   80,
		Usage:   "margin added on every side of the painted area of an export.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_PADDING"), altsrctoml.TOML("padding", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.FloatFlag{
		Name:    "scale",
		Value:   3,
		Usage:   "pixels per unit of PNG exports.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_SCALE"), altsrctoml.TOML("scale", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:    "measurer",
		Value:   "auto",
		Usage:   "how painted bounds are measured. Possible values: auto, browser, native.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_MEASURER"), altsrctoml.TOML("measurer", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:    "rasterizer",
		Value:   "auto",
		Usage:   "how PNG exports are painted. Possible values: auto, browser, native. The native rasterizer does not draw text.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_RASTERIZER"), altsrctoml.TOML("rasterizer", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.IntFlag{
		Name:    "max-pixels",
		Value:   64 << 20,
		Usage:   "largest PNG surface, in pixels, the native rasterizer allocates.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_MAX_PIXELS"), altsrctoml.TOML("max-pixels", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.DurationFlag{
		Name:    "render-timeout",
		Value:   defaultRenderTimeout,
		Usage:   "time limit for rendering and exporting one diagram.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_RENDER_TIMEOUT"), altsrctoml.TOML("render-timeout", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:    "name",
		Aliases: []string{"n"},
		Value:   "",
		Usage:   "base name of exported files. Defaults to the diagram title, then the file name.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_NAME"), altsrctoml.TOML("name", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:  "color",
		Value: "auto",
		Usage: "display logs in color. Possible values: auto, never.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_COLOR"),
			altsrctoml.TOML("color", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		Usage:   "set the log level. Possible values: TRACE, DEBUG, INFO, WARNING, ERROR, FATAL.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_LOG_LEVEL"), altsrctoml.TOML("log-level", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Value:       ConfigFilePath(),
		Usage:       "use the specified configuration file.",
		TakesFile:   true,
		Sources:     cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_CONFIG")),
		Destination: &filename,
	},
}

var ExportFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:      "files",
		Aliases:   []string{"f"},
		Value:     "",
		Usage:     "export diagrams from the specified file(s). Markdown files contribute their first diagram block. Supports file globbing patterns (needs to be quoted).",
		TakesFile: true,
		Sources:   cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_FILES"), altsrctoml.TOML("files", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.BoolFlag{
		Name:    "clipboard",
		Value:   false,
		Usage:   "export the diagram currently in the clipboard instead of files.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_CLIPBOARD"), altsrctoml.TOML("clipboard", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:      "output-dir",
		Aliases:   []string{"o"},
		Value:     ".",
		Usage:     "directory exported files are written to.",
		TakesFile: true,
		Sources:   cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_OUTPUT_DIR"), altsrctoml.TOML("output-dir", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringSliceFlag{
		Name:    "format",
		Value:   []string{"svg", "png"},
		Usage:   "export formats. Possible values: svg, png.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_FORMAT"), altsrctoml.TOML("format", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.BoolFlag{
		Name:    "continue-on-error",
		Value:   false,
		Usage:   "don't exit if an error occurs while processing a file, continue processing remaining files.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_CONTINUE_ON_ERROR"), altsrctoml.TOML("continue-on-error", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.BoolFlag{
		Name:    "ci",
		Value:   false,
		Usage:   "run on CI mode. It won't fail if files are not found.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_CI"), altsrctoml.TOML("ci", altsrc.NewStringPtrSourcer(&filename))),
	},
}, Flags...)

var PreviewFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:      "file",
		Aliases:   []string{"f"},
		Value:     "",
		Usage:     "watch the specified file and preview it on every change.",
		TakesFile: true,
		Sources:   cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_FILE")),
	},
	&cli.StringFlag{
		Name:    "host",
		Value:   "localhost",
		Usage:   "address the preview server listens on.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_HOST"), altsrctoml.TOML("host", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.StringFlag{
		Name:    "port",
		Value:   "0",
		Usage:   "port the preview server listens on, 0 picks a free one.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_PORT"), altsrctoml.TOML("port", altsrc.NewStringPtrSourcer(&filename))),
	},
	&cli.BoolFlag{
		Name:    "open",
		Value:   true,
		Usage:   "open the preview page in the default browser.",
		Sources: cli.NewValueSourceChain(cli.EnvVar("MERMAIDMONO_OPEN"), altsrctoml.TOML("open", altsrc.NewStringPtrSourcer(&filename))),
	},
}, Flags...)
