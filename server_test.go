package snippad

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pkt.systems/snippad/core"
	"pkt.systems/snippad/internal/dropwatch"
	"pkt.systems/snippad/schema"
)

type stubExecutor struct {
	mu       sync.Mutex
	runtimes int
}

func (s *stubExecutor) Runtimes(context.Context) ([]schema.Runtime, error) {
	s.mu.Lock()
	s.runtimes++
	s.mu.Unlock()
	return []schema.Runtime{{Language: "python", Version: "3.10.0"}}, nil
}

func (s *stubExecutor) Execute(context.Context, core.ExecuteRequest) (core.ExecuteResponse, error) {
	code := 0
	return core.ExecuteResponse{Run: &core.RunOutput{Stdout: "ok\n", Output: "ok\n", Code: &code}}, nil
}

func (s *stubExecutor) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtimes
}

type countingSink struct {
	mu    sync.Mutex
	files int
}

func (c *countingSink) OnFileEvent(schema.FileEvent) {
	c.mu.Lock()
	c.files++
	c.mu.Unlock()
}

func (c *countingSink) OnResult(schema.ResultEvent)           {}
func (c *countingSink) OnTerminalOutput(schema.TerminalEvent) {}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.files
}

func TestNewRequiresAService(t *testing.T) {
	deps := ServerDeps{ServiceDeps: core.ServiceDeps{Executor: &stubExecutor{}}}
	if _, err := New(ServerConfig{Service: schema.ServiceConfig{StateDir: t.TempDir()}}, deps); err == nil {
		t.Fatalf("expected error without enabled services")
	}
	if _, err := New(ServerConfig{Service: schema.ServiceConfig{StateDir: t.TempDir()}}, ServerDeps{}, WithHTTP()); err == nil {
		t.Fatalf("expected error without executor")
	}
}

func TestNewRejectsInvalidDropConfig(t *testing.T) {
	deps := ServerDeps{ServiceDeps: core.ServiceDeps{Executor: &stubExecutor{}}}
	cfg := ServerConfig{
		Service: schema.ServiceConfig{StateDir: t.TempDir()},
		Drop:    dropwatch.Config{Dir: t.TempDir(), Workspace: "../escape"},
	}
	if _, err := New(cfg, deps, WithDropWatch()); err == nil {
		t.Fatalf("expected invalid drop workspace to fail")
	}
}

func TestServerDropFolderLifecycle(t *testing.T) {
	exec := &stubExecutor{}
	sink := &countingSink{}
	dropDir := filepath.Join(t.TempDir(), "drop")
	cfg := ServerConfig{
		Service: schema.ServiceConfig{StateDir: t.TempDir()},
		Drop:    dropwatch.Config{Dir: dropDir, Workspace: "inbox", Settle: 20 * time.Millisecond},
	}
	srv, err := New(cfg, ServerDeps{ServiceDeps: core.ServiceDeps{Executor: exec, EventSink: sink}}, WithDropWatch())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(ctx); err == nil {
		t.Fatalf("expected second start to fail")
	}

	waitFor(t, func() bool {
		_, err := os.Stat(dropDir)
		return err == nil
	})
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dropDir, "notes.py"), []byte("print(1)\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool {
		resp, err := srv.Service().ListFiles(context.Background(), schema.ListFilesRequest{WorkspaceID: "inbox"})
		if err != nil {
			return false
		}
		for _, f := range resp.Files {
			if f.Name == "notes.py" {
				return true
			}
		}
		return false
	})
	waitFor(t, func() bool { return exec.calls() > 0 })
	if sink.count() == 0 {
		t.Fatalf("expected caller sink to receive file events")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := srv.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

type panickingSink struct{}

func (panickingSink) OnFileEvent(schema.FileEvent)          { panic("sink closed") }
func (panickingSink) OnResult(schema.ResultEvent)           { panic("sink closed") }
func (panickingSink) OnTerminalOutput(schema.TerminalEvent) { panic("sink closed") }

func TestEventFanoutCollapsesSinks(t *testing.T) {
	if sink := newEventFanout(nil); sink != nil {
		t.Fatalf("expected nil fanout without sinks, got %T", sink)
	}
	only := &countingSink{}
	if sink := newEventFanout(nil, nil, only); sink != core.EventSink(only) {
		t.Fatalf("expected the single sink to be returned, got %T", sink)
	}
}

func TestEventFanoutIsolatesPanickingSink(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	fanout := newEventFanout(nil, a, panickingSink{}, nil, b)
	fanout.OnFileEvent(schema.FileEvent{WorkspaceID: "ws-1", Type: schema.FileEventCreated})
	fanout.OnResult(schema.ResultEvent{WorkspaceID: "ws-1"})
	fanout.OnTerminalOutput(schema.TerminalEvent{WorkspaceID: "ws-1"})
	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected both sinks to receive the event, got %d and %d", a.count(), b.count())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
