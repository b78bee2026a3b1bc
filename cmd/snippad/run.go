package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/internal/appconfig"
	"pkt.systems/snippad/schema"
)

const cliWorkspace schema.WorkspaceID = "cli"

var errRunFailed = errors.New("run failed")

func newRunCmd() *cobra.Command {
	var cfgPath string
	var language string
	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Run a local file once and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			client, err := newPistonClient(cfg)
			if err != nil {
				return err
			}
			result, err := runLocalFile(cmd.Context(), client, cfg.CoreConfig(), args[0], schema.Language(language))
			if err != nil {
				return err
			}
			if result.Mode == schema.RunModePreview {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Output)
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), renderResult(result)); err != nil {
				return err
			}
			if result.Classification == schema.ClassError {
				return errRunFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&language, "language", "l", "", "language override (defaults to the file extension)")
	return cmd
}

// runLocalFile imports path into a throwaway workspace and executes it once.
// Console languages go to the remote executor; the rest return a preview
// document.
func runLocalFile(ctx context.Context, exec core.Executor, serviceCfg schema.ServiceConfig, path string, language schema.Language) (schema.RunResult, error) {
	log := pslog.Ctx(ctx)
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.RunResult{}, err
	}
	language = schema.Language(strings.ToLower(strings.TrimSpace(string(language))))
	if language != "" {
		if _, ok := schema.LookupLanguage(language); !ok {
			return schema.RunResult{}, fmt.Errorf("%w: %s", schema.ErrInvalidLanguage, language)
		}
	}

	stateDir, err := os.MkdirTemp("", "snippad-run-")
	if err != nil {
		return schema.RunResult{}, err
	}
	defer func() { _ = os.RemoveAll(stateDir) }()
	serviceCfg.StateDir = stateDir

	svc, err := core.NewService(serviceCfg, core.ServiceDeps{Executor: exec, Logger: log})
	if err != nil {
		return schema.RunResult{}, err
	}
	defer func() { _ = svc.Close() }()

	imported, err := svc.ImportFile(ctx, schema.ImportFileRequest{
		WorkspaceID: cliWorkspace,
		Name:        filepath.Base(path),
		Data:        data,
	})
	if err != nil {
		return schema.RunResult{}, err
	}
	if language == "" {
		language = imported.File.Language
	}

	if schema.ModeFor(language) == schema.RunModePreview {
		document := previewDocument(language, string(data))
		log.Debug("run preview composed", "file", imported.File.Name, "bytes", len(document))
		return schema.RunResult{
			FileID:         imported.File.ID,
			Output:         document,
			Classification: schema.ClassInfo,
			Status:         schema.RunStatusInfo,
			Mode:           schema.RunModePreview,
		}, nil
	}

	if _, err := svc.RefreshRuntimes(ctx, schema.RefreshRuntimesRequest{}); err != nil {
		log.Warn("run runtimes refresh failed", "err", err)
	}
	resp, err := svc.Execute(ctx, schema.ExecuteRequest{
		WorkspaceID: cliWorkspace,
		FileID:      imported.File.ID,
		Language:    language,
	})
	if err != nil {
		return schema.RunResult{}, err
	}
	log.Debug("run execute done", "file", imported.File.Name, "language", language, "classification", resp.Result.Classification)
	return resp.Result, nil
}

// previewDocument composes a single web file on its own. Other preview
// languages are shown as-is.
func previewDocument(language schema.Language, code string) string {
	switch language {
	case schema.LanguageHTML:
		return core.ComposeDocument(code, "", "")
	case schema.LanguageCSS:
		return core.ComposeDocument("", code, "")
	case schema.LanguageJavaScript:
		return core.ComposeDocument("", "", code)
	default:
		return code
	}
}
