package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pkt.systems/snippad/schema"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestUpdateSettingsValidates(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	bad := []schema.UpdateSettingsRequest{
		{FontSize: intPtr(11)},
		{FontSize: intPtr(25)},
		{TabSize: intPtr(3)},
		{AccentColor: strPtr("purple")},
		{AccentColor: strPtr("#12345")},
	}
	for _, req := range bad {
		req.WorkspaceID = "alice"
		if _, err := env.svc.UpdateSettings(ctx, req); !errors.Is(err, schema.ErrInvalidSettings) {
			t.Fatalf("expected ErrInvalidSettings for %+v, got %v", req, err)
		}
	}
	got, err := env.svc.GetSettings(ctx, schema.GetSettingsRequest{WorkspaceID: "alice"})
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.Settings != schema.DefaultSettings() {
		t.Fatalf("rejected updates changed settings: %+v", got.Settings)
	}
}

func TestSettingsPersistAcrossServices(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	resp, err := env.svc.UpdateSettings(ctx, schema.UpdateSettingsRequest{
		WorkspaceID:   "alice",
		FontSize:      intPtr(18),
		Minimap:       boolPtr(true),
		AccentColor:   strPtr("#0af"),
		Language:      schema.LanguagePython,
		LanguagePrefs: &schema.LanguagePrefs{TabSize: 4, WordWrap: true},
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if resp.Settings.FontSize != 18 || !resp.Settings.Minimap || resp.Settings.TabSize != 2 {
		t.Fatalf("unexpected settings: %+v", resp.Settings)
	}
	_ = env.svc.Close()

	reopened, err := NewService(schema.ServiceConfig{StateDir: env.dir}, ServiceDeps{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetSettings(ctx, schema.GetSettingsRequest{WorkspaceID: "alice", Language: schema.LanguagePython})
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.Settings != resp.Settings {
		t.Fatalf("settings not restored: %+v", got.Settings)
	}
	if got.LanguagePrefs == nil || got.LanguagePrefs.TabSize != 4 || !got.LanguagePrefs.WordWrap {
		t.Fatalf("language prefs not restored: %+v", got.LanguagePrefs)
	}
}

func TestKVWriteFailureDoesNotFailEdit(t *testing.T) {
	kv := newMemoryKV()
	kv.failSet = errors.New("disk full")
	svc, err := NewService(schema.ServiceConfig{StateDir: t.TempDir()}, ServiceDeps{Store: kv})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer svc.Close()
	resp, err := svc.UpdateCode(context.Background(), schema.UpdateCodeRequest{WorkspaceID: "alice", FileID: 2, Code: "a{}"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if resp.File.Code != "a{}" {
		t.Fatalf("expected edit applied in memory, got %q", resp.File.Code)
	}
}

func TestSnippetLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	all, err := env.svc.ListSnippets(ctx, schema.ListSnippetsRequest{WorkspaceID: "alice"})
	if err != nil {
		t.Fatalf("list snippets: %v", err)
	}
	if len(all.Snippets) != len(builtinSnippets) {
		t.Fatalf("expected built-ins only, got %d", len(all.Snippets))
	}

	saved, err := env.svc.SaveSnippet(ctx, schema.SaveSnippetRequest{WorkspaceID: "alice", Snippet: schema.Snippet{
		Name: " greet ", Language: schema.LanguageJavaScript, Code: "console.log('hi');",
	}})
	if err != nil {
		t.Fatalf("save snippet: %v", err)
	}
	if !strings.HasPrefix(string(saved.Snippet.ID), "user-") || saved.Snippet.Name != "greet" {
		t.Fatalf("unexpected saved snippet: %+v", saved.Snippet)
	}
	js, err := env.svc.ListSnippets(ctx, schema.ListSnippetsRequest{WorkspaceID: "alice", Language: schema.LanguageJavaScript})
	if err != nil {
		t.Fatalf("list snippets: %v", err)
	}
	for _, snippet := range js.Snippets {
		if snippet.Language != schema.LanguageJavaScript {
			t.Fatalf("unexpected snippet in filter: %+v", snippet)
		}
	}

	edited := saved.Snippet
	edited.Code = "console.log('bye');"
	if _, err := env.svc.SaveSnippet(ctx, schema.SaveSnippetRequest{WorkspaceID: "alice", Snippet: edited}); err != nil {
		t.Fatalf("edit snippet: %v", err)
	}
	inserted, err := env.svc.InsertSnippet(ctx, schema.InsertSnippetRequest{WorkspaceID: "alice", FileID: 3, SnippetID: edited.ID, Offset: 0})
	if err != nil {
		t.Fatalf("insert snippet: %v", err)
	}
	if !strings.HasPrefix(inserted.File.Code, "console.log('bye');") {
		t.Fatalf("expected snippet at start, got %q", inserted.File.Code)
	}

	if _, err := env.svc.DeleteSnippet(ctx, schema.DeleteSnippetRequest{WorkspaceID: "alice", SnippetID: edited.ID}); err != nil {
		t.Fatalf("delete snippet: %v", err)
	}
	if _, err := env.svc.DeleteSnippet(ctx, schema.DeleteSnippetRequest{WorkspaceID: "alice", SnippetID: edited.ID}); !errors.Is(err, schema.ErrSnippetNotFound) {
		t.Fatalf("expected ErrSnippetNotFound, got %v", err)
	}
}

func TestBuiltinSnippetsAreReadOnly(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	id := builtinSnippets[0].ID
	if _, err := env.svc.DeleteSnippet(ctx, schema.DeleteSnippetRequest{WorkspaceID: "alice", SnippetID: id}); !errors.Is(err, schema.ErrSnippetReadOnly) {
		t.Fatalf("expected ErrSnippetReadOnly, got %v", err)
	}
	edit := builtinSnippets[0]
	edit.Code = "changed"
	if _, err := env.svc.SaveSnippet(ctx, schema.SaveSnippetRequest{WorkspaceID: "alice", Snippet: edit}); !errors.Is(err, schema.ErrSnippetReadOnly) {
		t.Fatalf("expected ErrSnippetReadOnly, got %v", err)
	}
	if _, err := env.svc.SaveSnippet(ctx, schema.SaveSnippetRequest{WorkspaceID: "alice", Snippet: schema.Snippet{Name: "x", Language: schema.LanguageGo}}); !errors.Is(err, schema.ErrInvalidSnippet) {
		t.Fatalf("expected ErrInvalidSnippet, got %v", err)
	}
}

func TestInsertSnippetClampsOffset(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	if _, err := env.svc.UpdateCode(ctx, schema.UpdateCodeRequest{WorkspaceID: "alice", FileID: 2, Code: "ab"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	resp, err := env.svc.InsertSnippet(ctx, schema.InsertSnippetRequest{WorkspaceID: "alice", FileID: 2, SnippetID: "builtin-css-center", Offset: 99})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.HasPrefix(resp.File.Code, "ab") || len(resp.File.Code) <= 2 {
		t.Fatalf("expected snippet appended, got %q", resp.File.Code)
	}
}

func TestTerminalAppendAndClear(t *testing.T) {
	env := newTestEnv(t, nil, func(cfg *schema.ServiceConfig) { cfg.TerminalMaxLines = 3 })
	ctx := context.Background()
	if _, err := env.svc.AppendTerminal(ctx, schema.AppendTerminalRequest{WorkspaceID: "alice", Lines: []string{"1", "2", "3", "4"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := env.svc.GetTerminal(ctx, schema.GetTerminalRequest{WorkspaceID: "alice"})
	if err != nil {
		t.Fatalf("get terminal: %v", err)
	}
	if strings.Join(got.Terminal.Lines, ",") != "2,3,4" {
		t.Fatalf("unexpected lines: %v", got.Terminal.Lines)
	}
	if _, err := env.svc.ClearTerminal(ctx, schema.ClearTerminalRequest{WorkspaceID: "alice"}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = env.svc.GetTerminal(ctx, schema.GetTerminalRequest{WorkspaceID: "alice"})
	if len(got.Terminal.Lines) != 0 {
		t.Fatalf("expected empty terminal, got %v", got.Terminal.Lines)
	}
	env.sink.mu.Lock()
	defer env.sink.mu.Unlock()
	if len(env.sink.terminal) != 2 || !env.sink.terminal[1].Cleared {
		t.Fatalf("unexpected terminal events: %+v", env.sink.terminal)
	}
}
