package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"pkt.systems/snippad/schema"
)

type fakeExecutor struct {
	mu          sync.Mutex
	runtimes    []schema.Runtime
	runtimesErr error
	requests    []ExecuteRequest
	respond     func(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error)
}

func (f *fakeExecutor) Runtimes(ctx context.Context) ([]schema.Runtime, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runtimesErr != nil {
		return nil, f.runtimesErr
	}
	return append([]schema.Runtime(nil), f.runtimes...), nil
}

func (f *fakeExecutor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return ExecuteResponse{Run: &RunOutput{Stdout: req.Files[0].Content}}, nil
	}
	return respond(ctx, req)
}

func (f *fakeExecutor) Requests() []ExecuteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExecuteRequest(nil), f.requests...)
}

type fakeSink struct {
	mu       sync.Mutex
	files    []schema.FileEvent
	results  []schema.ResultEvent
	terminal []schema.TerminalEvent
}

func (f *fakeSink) OnFileEvent(event schema.FileEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, event)
}

func (f *fakeSink) OnResult(event schema.ResultEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, event)
}

func (f *fakeSink) OnTerminalOutput(event schema.TerminalEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminal = append(f.terminal, event)
}

func (f *fakeSink) fileEventTypes() []schema.FileEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]schema.FileEventType, 0, len(f.files))
	for _, event := range f.files {
		out = append(out, event.Type)
	}
	return out
}

type memoryKV struct {
	mu      sync.Mutex
	entries map[string]string
	failSet error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{entries: make(map[string]string)}
}

func (m *memoryKV) Get(ws schema.WorkspaceID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[string(ws)+"/"+key]
	return value, ok, nil
}

func (m *memoryKV) Set(ws schema.WorkspaceID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.entries[string(ws)+"/"+key] = value
	return nil
}

func (m *memoryKV) Delete(ws schema.WorkspaceID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, string(ws)+"/"+key)
	return nil
}

type testEnv struct {
	svc  Service
	exec *fakeExecutor
	sink *fakeSink
	dir  string
}

func newTestEnv(t *testing.T, exec *fakeExecutor, mutate func(*schema.ServiceConfig)) testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := schema.ServiceConfig{
		StateDir:       dir,
		DebounceDelay:  30 * time.Millisecond,
		ExecuteTimeout: 2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	sink := &fakeSink{}
	deps := ServiceDeps{EventSink: sink}
	if exec != nil {
		deps.Executor = exec
	}
	svc, err := NewService(cfg, deps)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return testEnv{svc: svc, exec: exec, sink: sink, dir: dir}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func pythonRuntimes() []schema.Runtime {
	return []schema.Runtime{
		{Language: "javascript", Version: "18.15.0", Aliases: []string{"node-javascript", "node-js", "js"}},
		{Language: "python", Version: "3.10.0", Aliases: []string{"py", "py3", "python3"}},
		{Language: "c++", Version: "10.2.0", Aliases: []string{"cpp", "g++"}},
	}
}
