package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kovetskiy/mermaidmono/util"
	"github.com/reconquest/pkg/log"
	"github.com/urfave/cli/v3"
)

const (
	version     = "1.0.0"
	usage       = "A tool for previewing and exporting mermaid and d2 diagrams."
	description = `mermaidmono renders diagram markup, previews it live while you type and exports it as SVG or PNG framed tightly around everything the diagram paints.`
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:                  "mermaidmono",
		Usage:                 usage,
		Description:           description,
		Version:               version,
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "export diagram files or the clipboard as SVG and PNG.",
				Flags:  util.ExportFlags,
				Action: util.RunExport,
			},
			{
				Name:      "preview",
				Usage:     "serve a live preview of a diagram.",
				ArgsUsage: "[file]",
				Flags:     util.PreviewFlags,
				Action:    util.RunPreview,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
