package command

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/snippad/core"
	"pkt.systems/snippad/schema"
)

type echoExecutor struct {
	mu       sync.Mutex
	requests []core.ExecuteRequest
}

func (e *echoExecutor) Requests() []core.ExecuteRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.ExecuteRequest(nil), e.requests...)
}

func (e *echoExecutor) Runtimes(context.Context) ([]schema.Runtime, error) {
	return []schema.Runtime{
		{Language: "javascript", Version: "18.15.0", Aliases: []string{"js"}},
		{Language: "python", Version: "3.10.0", Aliases: []string{"py"}},
	}, nil
}

func (e *echoExecutor) Execute(_ context.Context, req core.ExecuteRequest) (core.ExecuteResponse, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	code := req.Files[0].Content
	if strings.Contains(code, "throw") {
		return core.ExecuteResponse{Run: &core.RunOutput{Stderr: "Uncaught Error"}}, nil
	}
	return core.ExecuteResponse{Run: &core.RunOutput{Stdout: "ran " + req.Language}}, nil
}

func newHandler(t *testing.T, cfg HandlerConfig) (*Handler, core.Service, *echoExecutor) {
	t.Helper()
	exec := &echoExecutor{}
	svc, err := core.NewService(schema.ServiceConfig{
		StateDir:       t.TempDir(),
		DebounceDelay:  time.Hour,
		ExecuteTimeout: 2 * time.Second,
	}, core.ServiceDeps{Executor: exec})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if _, err := svc.RefreshRuntimes(context.Background(), schema.RefreshRuntimesRequest{}); err != nil {
		t.Fatalf("refresh runtimes: %v", err)
	}
	return NewHandler(svc, cfg), svc, exec
}

func terminalText(t *testing.T, svc core.Service) string {
	t.Helper()
	resp, err := svc.GetTerminal(context.Background(), schema.GetTerminalRequest{WorkspaceID: "alice"})
	if err != nil {
		t.Fatalf("get terminal: %v", err)
	}
	lines := make([]string, len(resp.Terminal.Lines))
	for i, line := range resp.Terminal.Lines {
		lines[i], _ = schema.StripMarker(line)
	}
	return strings.Join(lines, "\n")
}

func TestParse(t *testing.T) {
	cmd, ok := Parse("  search  my file  ")
	if !ok || cmd.Name != "search" || cmd.Remainder != "my file" || len(cmd.Args) != 2 {
		t.Fatalf("unexpected parse: %+v", cmd)
	}
	if _, ok := Parse("   "); ok {
		t.Fatalf("expected blank line to be rejected")
	}
}

func TestUnknownCommand(t *testing.T) {
	h, svc, _ := newHandler(t, HandlerConfig{})
	if err := h.Handle(context.Background(), "alice", "frobnicate now"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	text := terminalText(t, svc)
	if !strings.Contains(text, "Command not found: frobnicate") || !strings.Contains(text, `Type "help" for available commands.`) {
		t.Fatalf("unexpected terminal:\n%s", text)
	}
}

func TestListMarksActiveFile(t *testing.T) {
	h, svc, _ := newHandler(t, HandlerConfig{})
	if err := h.Handle(context.Background(), "alice", "ls"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	text := terminalText(t, svc)
	for _, want := range []string{"Files in editor:", "▶ index.html (html)", "  style.css (css)", "script.js (javascript)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in:\n%s", want, text)
		}
	}
}

func TestNodeRunsJavaScriptOnly(t *testing.T) {
	h, svc, exec := newHandler(t, HandlerConfig{})
	ctx := context.Background()
	if err := h.Handle(ctx, "alice", "node style.css"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(exec.Requests()) != 0 {
		t.Fatalf("expected no remote call for css")
	}
	if err := h.Handle(ctx, "alice", "node script.js"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reqs := exec.Requests(); len(reqs) != 1 || reqs[0].Language != "javascript" {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
	text := terminalText(t, svc)
	for _, want := range []string{`"style.css" is not a JavaScript file.`, "Running script.js...", "Output:", "ran javascript"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in:\n%s", want, text)
		}
	}
	if err := h.Handle(ctx, "alice", "node missing.js"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(terminalText(t, svc), `File "missing.js" not found.`) {
		t.Fatalf("expected not found message")
	}
}

func TestRunUsesOrchestrator(t *testing.T) {
	h, svc, _ := newHandler(t, HandlerConfig{})
	ctx := context.Background()
	created, err := svc.CreateFile(ctx, schema.CreateFileRequest{WorkspaceID: "alice", Language: schema.LanguagePython, Name: "main"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateCode(ctx, schema.UpdateCodeRequest{WorkspaceID: "alice", FileID: created.File.ID, Code: "print(1)"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := h.Handle(ctx, "alice", "run main.py"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(terminalText(t, svc), "ran python") {
		t.Fatalf("expected python output:\n%s", terminalText(t, svc))
	}
	result, err := svc.GetResult(ctx, schema.GetResultRequest{WorkspaceID: "alice", FileID: created.File.ID})
	if err != nil || result.Result.Output != "ran python" {
		t.Fatalf("expected stored result, got %+v %v", result.Result, err)
	}
}

func TestCatHighlights(t *testing.T) {
	h, svc, _ := newHandler(t, HandlerConfig{Highlight: true})
	if err := h.Handle(context.Background(), "alice", "cat script.js"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	resp, err := svc.GetTerminal(context.Background(), schema.GetTerminalRequest{WorkspaceID: "alice"})
	if err != nil {
		t.Fatalf("get terminal: %v", err)
	}
	found := false
	for _, line := range resp.Terminal.Lines {
		if strings.HasPrefix(line, schema.CodeMarker) && strings.Contains(line, "\x1b[") {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected highlighted code lines")
	}
}

func TestClearResetsTerminalToBanner(t *testing.T) {
	h, svc, _ := newHandler(t, HandlerConfig{})
	ctx := context.Background()
	if err := h.Handle(ctx, "alice", "help"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := h.Handle(ctx, "alice", "clear"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	resp, _ := svc.GetTerminal(ctx, schema.GetTerminalRequest{WorkspaceID: "alice"})
	if len(resp.Terminal.Lines) != len(Banner) {
		t.Fatalf("expected banner only, got %q", resp.Terminal.Lines)
	}
}

func TestUndoWithoutHistory(t *testing.T) {
	h, svc, _ := newHandler(t, HandlerConfig{})
	if err := h.Handle(context.Background(), "alice", "undo"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(terminalText(t, svc), "nothing to undo in index.html") {
		t.Fatalf("unexpected terminal:\n%s", terminalText(t, svc))
	}
}

func TestRuntimesFilter(t *testing.T) {
	h, svc, _ := newHandler(t, HandlerConfig{})
	if err := h.Handle(context.Background(), "alice", "runtimes py"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	text := terminalText(t, svc)
	if !strings.Contains(text, "python 3.10.0 (py)") || strings.Contains(text, "javascript 18.15.0") {
		t.Fatalf("unexpected runtimes output:\n%s", text)
	}
}

func TestHandleRejectsInvalidWorkspace(t *testing.T) {
	h, _, _ := newHandler(t, HandlerConfig{})
	if err := h.Handle(context.Background(), "../x", "ls"); err == nil {
		t.Fatalf("expected invalid workspace error")
	}
}
