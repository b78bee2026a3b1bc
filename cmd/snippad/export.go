package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/httpapi"
	"pkt.systems/snippad/internal/snapshot"
)

func newExportCmd() *cobra.Command {
	var output string
	var screenshot string
	var chromePath string
	var width, height int64
	cmd := &cobra.Command{
		Use:   "export [html] [css] [js]",
		Short: "Compose html, css, and javascript files into one document",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			parts := make([]string, 3)
			for i, path := range args {
				if path == "" || path == "-" {
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				parts[i] = string(data)
			}
			document := core.ComposeDocument(parts[0], parts[1], parts[2])
			if err := os.WriteFile(output, []byte(document), 0o644); err != nil {
				return err
			}
			logger.Info("export wrote", "path", output, "bytes", len(document))
			if screenshot == "" {
				return nil
			}
			opts := snapshot.DefaultOptions()
			opts.ExecPath = chromePath
			if width > 0 {
				opts.Width = width
			}
			if height > 0 {
				opts.Height = height
			}
			started := time.Now()
			png, err := snapshot.Render(cmd.Context(), document, opts)
			if err != nil {
				return fmt.Errorf("screenshot: %w", err)
			}
			if err := os.WriteFile(screenshot, png, 0o644); err != nil {
				return err
			}
			logger.Info("export screenshot wrote", "path", screenshot, "bytes", len(png), "elapsed", time.Since(started))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", httpapi.ExportFileName, "output document path")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "also render the document to this PNG path")
	cmd.Flags().StringVar(&chromePath, "chrome", "", "path to a Chrome or Chromium binary")
	cmd.Flags().Int64Var(&width, "width", 0, "screenshot viewport width")
	cmd.Flags().Int64Var(&height, "height", 0, "screenshot viewport height")
	return cmd
}
