package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/snippad/core"
	"pkt.systems/snippad/internal/format"
	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

// Banner is written to a fresh or cleared terminal.
var Banner = []string{
	format.Heading("Snippad Terminal"),
	format.Info(`Type "node filename.js" to run JavaScript files, or "help" for commands.`),
	"",
}

// HandlerConfig configures terminal command behavior.
type HandlerConfig struct {
	// Highlight renders cat output with ANSI colors.
	Highlight bool
	// Style is the chroma style name used when Highlight is set.
	Style               string
	DisableAuditLogging bool
}

// Handler routes terminal commands to service operations. Output is appended
// to the workspace terminal.
type Handler struct {
	service core.Service
	cfg     HandlerConfig
}

// NewHandler constructs a command handler.
func NewHandler(service core.Service, cfg HandlerConfig) *Handler {
	return &Handler{service: service, cfg: cfg}
}

// Handle runs one command line. Command failures are written to the terminal
// as error lines; the returned error reports only failures to reach the
// workspace itself.
func (h *Handler) Handle(ctx context.Context, workspaceID schema.WorkspaceID, input string) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	if err := schema.ValidateWorkspaceID(workspaceID); err != nil {
		return err
	}
	baseLog := logx.WithWorkspace(ctx, workspaceID)
	ctx = logx.ContextWithWorkspaceLogger(ctx, baseLog, workspaceID)
	cmd, ok := Parse(input)
	if !ok {
		return h.append(ctx, workspaceID, "$")
	}
	if !h.cfg.DisableAuditLogging {
		baseLog.Debug("audit command", "command", cmd.Raw)
	}
	log := baseLog.With("command", cmd.Name, "args", len(cmd.Args))
	log.Info("command request")
	if cmd.Name != "clear" {
		if err := h.append(ctx, workspaceID, "$ "+cmd.Raw); err != nil {
			return err
		}
	}

	var lines []string
	var err error
	switch cmd.Name {
	case "help":
		lines = helpLines()
	case "clear":
		return h.handleClear(ctx, workspaceID)
	case "ls":
		lines, err = h.handleList(ctx, workspaceID)
	case "cat":
		lines, err = h.handleCat(ctx, workspaceID, cmd)
	case "run":
		lines, err = h.handleRun(ctx, workspaceID, cmd)
	case "node":
		lines, err = h.handleNode(ctx, workspaceID, cmd)
	case "runtimes":
		lines, err = h.handleRuntimes(ctx, cmd)
	case "search":
		lines, err = h.handleSearch(ctx, workspaceID, cmd)
	case "undo", "redo":
		lines, err = h.handleStep(ctx, workspaceID, cmd)
	default:
		log.Warn("command rejected", "reason", "unknown")
		lines = []string{
			format.Error(fmt.Sprintf("Command not found: %s", cmd.Name)),
			`Type "help" for available commands.`,
		}
	}
	if err != nil {
		if errors.Is(err, schema.ErrInvalidWorkspace) {
			return err
		}
		log.Warn("command failed", "err", err)
		lines = append(lines, format.Error("Error: "+err.Error()))
	} else {
		log.Debug("command completed", "lines", len(lines))
	}
	lines = append(lines, "")
	return h.append(ctx, workspaceID, lines...)
}

func helpLines() []string {
	return []string{
		format.Heading("Available commands:"),
		"  node <filename>  - Run a JavaScript file",
		"  run <filename>   - Run any file through its runtime or preview",
		"  cat <filename>   - Print a file with syntax highlighting",
		"  ls               - List files in editor",
		"  search <query>   - Fuzzy-find files by name",
		"  runtimes [lang]  - List remote runtimes",
		"  undo [filename]  - Undo the last edit",
		"  redo [filename]  - Redo the last undone edit",
		"  clear            - Clear terminal",
		"  help             - Show this help",
	}
}

func (h *Handler) handleClear(ctx context.Context, workspaceID schema.WorkspaceID) error {
	if _, err := h.service.ClearTerminal(ctx, schema.ClearTerminalRequest{WorkspaceID: workspaceID}); err != nil {
		return err
	}
	return h.append(ctx, workspaceID, Banner...)
}

func (h *Handler) handleList(ctx context.Context, workspaceID schema.WorkspaceID) ([]string, error) {
	resp, err := h.service.ListFiles(ctx, schema.ListFilesRequest{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	lines := []string{format.Heading("Files in editor:")}
	for _, f := range resp.Files {
		icon := " "
		if f.Active {
			icon = "▶"
		}
		lines = append(lines, fmt.Sprintf("  %s %s (%s)", icon, f.Name, f.Language))
	}
	return lines, nil
}

func (h *Handler) handleCat(ctx context.Context, workspaceID schema.WorkspaceID, cmd Command) ([]string, error) {
	f, lines, ok := h.requireFile(ctx, workspaceID, cmd, "cat")
	if !ok {
		return lines, nil
	}
	if f.Code == "" {
		return []string{format.Info("(empty file)")}, nil
	}
	if h.cfg.Highlight {
		return format.Highlight(f.Name, f.Language, f.Code, h.cfg.Style), nil
	}
	return format.MarkLines(schema.CodeMarker, format.SplitLines(f.Code)), nil
}

func (h *Handler) handleRun(ctx context.Context, workspaceID schema.WorkspaceID, cmd Command) ([]string, error) {
	f, lines, ok := h.requireFile(ctx, workspaceID, cmd, "run")
	if !ok {
		return lines, nil
	}
	resp, err := h.service.Run(ctx, schema.RunRequest{WorkspaceID: workspaceID, FileID: f.ID, Wait: true})
	if err != nil {
		return nil, err
	}
	return append([]string{format.Info(fmt.Sprintf("Running %s...", f.Name))}, format.ResultLines(resp.Result)...), nil
}

func (h *Handler) handleNode(ctx context.Context, workspaceID schema.WorkspaceID, cmd Command) ([]string, error) {
	f, lines, ok := h.requireFile(ctx, workspaceID, cmd, "node")
	if !ok {
		return lines, nil
	}
	if f.Language != schema.LanguageJavaScript {
		return []string{format.Error(fmt.Sprintf("Error: %q is not a JavaScript file.", f.Name))}, nil
	}
	resp, err := h.service.Execute(ctx, schema.ExecuteRequest{WorkspaceID: workspaceID, FileID: f.ID})
	if err != nil {
		return nil, err
	}
	return append([]string{format.Info(fmt.Sprintf("Running %s...", f.Name))}, format.ResultLines(resp.Result)...), nil
}

func (h *Handler) handleRuntimes(ctx context.Context, cmd Command) ([]string, error) {
	resp, err := h.service.ListRuntimes(ctx, schema.ListRuntimesRequest{})
	if err != nil {
		return nil, err
	}
	filter := strings.ToLower(cmd.Arg(0))
	lines := []string{format.Heading("Runtimes:")}
	for _, rt := range resp.Runtimes {
		if filter != "" && !rt.Matches(schema.Language(filter)) {
			continue
		}
		line := fmt.Sprintf("  %s %s", rt.Language, rt.Version)
		if len(rt.Aliases) > 0 {
			line += " (" + strings.Join(rt.Aliases, ", ") + ")"
		}
		lines = append(lines, line)
	}
	if len(lines) == 1 {
		lines = append(lines, format.Info("  no runtimes available"))
	}
	return lines, nil
}

func (h *Handler) handleSearch(ctx context.Context, workspaceID schema.WorkspaceID, cmd Command) ([]string, error) {
	if cmd.Remainder == "" {
		return []string{format.Error("usage: search <query>")}, nil
	}
	resp, err := h.service.SearchFiles(ctx, schema.SearchFilesRequest{WorkspaceID: workspaceID, Query: cmd.Remainder})
	if err != nil {
		return nil, err
	}
	if len(resp.Files) == 0 {
		return []string{format.Info("no matches")}, nil
	}
	lines := make([]string, 0, len(resp.Files))
	for _, f := range resp.Files {
		lines = append(lines, fmt.Sprintf("  %s (%s)", f.Name, f.Language))
	}
	return lines, nil
}

func (h *Handler) handleStep(ctx context.Context, workspaceID schema.WorkspaceID, cmd Command) ([]string, error) {
	var id schema.FileID
	if len(cmd.Args) > 0 {
		f, lines, ok := h.requireFile(ctx, workspaceID, cmd, cmd.Name)
		if !ok {
			return lines, nil
		}
		id = f.ID
	}
	var file schema.FileSnapshot
	var applied bool
	if cmd.Name == "undo" {
		resp, err := h.service.Undo(ctx, schema.UndoRequest{WorkspaceID: workspaceID, FileID: id})
		if err != nil {
			return nil, err
		}
		file, applied = resp.File, resp.Applied
	} else {
		resp, err := h.service.Redo(ctx, schema.RedoRequest{WorkspaceID: workspaceID, FileID: id})
		if err != nil {
			return nil, err
		}
		file, applied = resp.File, resp.Applied
	}
	if !applied {
		return []string{format.Info(fmt.Sprintf("nothing to %s in %s", cmd.Name, file.Name))}, nil
	}
	return []string{format.Info(fmt.Sprintf("%s applied to %s", cmd.Name, file.Name))}, nil
}

// requireFile resolves the first argument to a file by name. When it cannot,
// it returns the lines to print instead.
func (h *Handler) requireFile(ctx context.Context, workspaceID schema.WorkspaceID, cmd Command, usage string) (schema.FileSnapshot, []string, bool) {
	name := cmd.Arg(0)
	if name == "" {
		return schema.FileSnapshot{}, []string{format.Error(fmt.Sprintf("usage: %s <filename>", usage))}, false
	}
	resp, err := h.service.ListFiles(ctx, schema.ListFilesRequest{WorkspaceID: workspaceID})
	if err != nil {
		return schema.FileSnapshot{}, []string{format.Error("Error: " + err.Error())}, false
	}
	for _, f := range resp.Files {
		if f.Name == name {
			return f, nil, true
		}
	}
	return schema.FileSnapshot{}, []string{format.Error(fmt.Sprintf("Error: File %q not found.", name))}, false
}

func (h *Handler) append(ctx context.Context, workspaceID schema.WorkspaceID, lines ...string) error {
	_, err := h.service.AppendTerminal(ctx, schema.AppendTerminalRequest{WorkspaceID: workspaceID, Lines: lines})
	if err != nil {
		pslog.Ctx(ctx).Warn("command terminal append failed", "err", err)
	}
	return err
}
