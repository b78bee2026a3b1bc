package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pkt.systems/snippad/core"
	"pkt.systems/snippad/internal/command"
	"pkt.systems/snippad/schema"
)

type stubExecutor struct{}

func (stubExecutor) Runtimes(context.Context) ([]schema.Runtime, error) {
	return []schema.Runtime{{Language: "python", Version: "3.10.0", Aliases: []string{"py"}}}, nil
}

func (stubExecutor) Execute(_ context.Context, req core.ExecuteRequest) (core.ExecuteResponse, error) {
	return core.ExecuteResponse{Run: &core.RunOutput{Stdout: "out:" + req.Files[0].Content}}, nil
}

type testServer struct {
	srv     *Server
	http    *httptest.Server
	service core.Service
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	hub := NewHub(100)
	svc, err := core.NewService(schema.ServiceConfig{
		StateDir:       t.TempDir(),
		DebounceDelay:  time.Hour,
		ExecuteTimeout: 2 * time.Second,
	}, core.ServiceDeps{Executor: stubExecutor{}, EventSink: hub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if _, err := svc.RefreshRuntimes(context.Background(), schema.RefreshRuntimesRequest{}); err != nil {
		t.Fatalf("refresh runtimes: %v", err)
	}
	srv := NewServer(cfg, svc, command.NewHandler(svc, command.HandlerConfig{}), hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{srv: srv, http: ts, service: svc}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestIndexStartsSessionAndAppliesBaseHref(t *testing.T) {
	ts := newTestServer(t, Config{BasePath: "/pad"})
	client := newClient(t)

	resp, err := client.Get(ts.http.URL + "/pad/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `<base href="/pad/" />`) {
		t.Fatalf("expected base href in index")
	}
	found := false
	for _, c := range resp.Cookies() {
		if c.Name == defaultSessionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session cookie")
	}
}

func TestFilesLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := newClient(t)
	base := ts.http.URL

	var list schema.ListFilesResponse
	if status := doJSON(t, client, http.MethodGet, base+"/api/files", nil, &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(list.Files) != 3 || list.ActiveFile != 1 {
		t.Fatalf("unexpected default files: %+v", list)
	}

	var created schema.CreateFileResponse
	status := doJSON(t, client, http.MethodPost, base+"/api/files", map[string]any{"language": "python", "name": "main"}, &created)
	if status != http.StatusOK || created.File.Name != "main.py" || created.File.ID != 4 {
		t.Fatalf("create: status=%d file=%+v", status, created.File)
	}

	var errBody map[string]string
	status = doJSON(t, client, http.MethodPost, base+"/api/files", map[string]any{"language": "python", "name": "main"}, &errBody)
	if status != http.StatusBadRequest || errBody["error"] == "" {
		t.Fatalf("duplicate create: status=%d body=%v", status, errBody)
	}
	status = doJSON(t, client, http.MethodPost, base+"/api/files/delete", map[string]any{"file_id": 99}, &errBody)
	if status != http.StatusNotFound {
		t.Fatalf("delete missing: status=%d", status)
	}
	status = doJSON(t, client, http.MethodPost, base+"/api/files/code", map[string]any{"file_id": 4, "code": "x", "extra": true}, &errBody)
	if status != http.StatusBadRequest {
		t.Fatalf("unknown field: status=%d", status)
	}

	var renamed schema.RenameFileResponse
	status = doJSON(t, client, http.MethodPost, base+"/api/files/rename", map[string]any{"file_id": 4, "name": "script.js"}, &renamed)
	if status != http.StatusOK || !renamed.Duplicate {
		t.Fatalf("rename duplicate: status=%d resp=%+v", status, renamed)
	}

	var updated schema.UpdateCodeResponse
	status = doJSON(t, client, http.MethodPost, base+"/api/files/code", map[string]any{"file_id": 1, "code": "<p>x</p>"}, &updated)
	if status != http.StatusOK || updated.File.Code != "<p>x</p>" {
		t.Fatalf("update code: status=%d", status)
	}
	var undo schema.UndoResponse
	status = doJSON(t, client, http.MethodPost, base+"/api/files/undo", map[string]any{"file_id": 1}, &undo)
	if status != http.StatusOK || !undo.Applied {
		t.Fatalf("undo: status=%d resp=%+v", status, undo)
	}

	var search schema.SearchFilesResponse
	if status := doJSON(t, client, http.MethodGet, base+"/api/files/search?q=idx", nil, &search); status != http.StatusOK {
		t.Fatalf("search status = %d", status)
	}
	if len(search.Files) == 0 || search.Files[0].Name != "index.html" {
		t.Fatalf("unexpected search: %+v", search.Files)
	}

	var order schema.ReorderFileResponse
	status = doJSON(t, client, http.MethodPost, base+"/api/files/reorder", map[string]any{"from": 0, "to": 2}, &order)
	if status != http.StatusOK || order.Order[2] != 1 {
		t.Fatalf("reorder: status=%d order=%v", status, order.Order)
	}
}

func TestWorkspacesAreIsolatedPerSession(t *testing.T) {
	ts := newTestServer(t, Config{})
	alice := newClient(t)
	bob := newClient(t)

	doJSON(t, alice, http.MethodPost, ts.http.URL+"/api/files", map[string]any{"language": "css", "name": "extra"}, nil)

	var list schema.ListFilesResponse
	doJSON(t, bob, http.MethodGet, ts.http.URL+"/api/files", nil, &list)
	if len(list.Files) != 3 {
		t.Fatalf("bob sees %d files, want 3", len(list.Files))
	}
	doJSON(t, alice, http.MethodGet, ts.http.URL+"/api/files", nil, &list)
	if len(list.Files) != 4 {
		t.Fatalf("alice sees %d files, want 4", len(list.Files))
	}
}

func TestPreviewAndExport(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := newClient(t)

	resp, err := client.Get(ts.http.URL + "/preview")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if got := resp.Header.Get("Content-Security-Policy"); got != "sandbox allow-scripts" {
		t.Fatalf("csp = %q", got)
	}
	if !strings.Contains(string(body), "<h1>Hello!</h1>") || !strings.Contains(string(body), "<style>/* CSS goes here */</style>") {
		t.Fatalf("unexpected preview: %s", body)
	}

	resp, err = client.Get(ts.http.URL + "/api/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	exported, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="snippad.html"` {
		t.Fatalf("content disposition = %q", got)
	}
	if !bytes.Equal(body, exported) {
		t.Fatalf("export differs from preview")
	}
}

func TestRunWaitsForRemoteResult(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := newClient(t)
	base := ts.http.URL

	var created schema.CreateFileResponse
	doJSON(t, client, http.MethodPost, base+"/api/files", map[string]any{"language": "python", "name": "hello"}, &created)
	doJSON(t, client, http.MethodPost, base+"/api/files/code", map[string]any{"file_id": created.File.ID, "code": "print(1)"}, nil)

	var run schema.RunResponse
	status := doJSON(t, client, http.MethodPost, base+"/api/run", map[string]any{"file_id": created.File.ID, "wait": true}, &run)
	if status != http.StatusOK {
		t.Fatalf("run status = %d", status)
	}
	if run.Result.Status != schema.RunStatusSuccess || run.Result.Output != "out:print(1)" {
		t.Fatalf("unexpected result: %+v", run.Result)
	}

	var result schema.GetResultResponse
	doJSON(t, client, http.MethodGet, base+"/api/result", nil, &result)
	if result.Result.Output != "out:print(1)" {
		t.Fatalf("active result = %+v", result.Result)
	}

	var cleared schema.ClearOutputResponse
	doJSON(t, client, http.MethodPost, base+"/api/output/clear", map[string]any{"file_id": 0}, &cleared)
	if cleared.Result.Output != "" {
		t.Fatalf("expected cleared output, got %q", cleared.Result.Output)
	}
}

func TestRunIsRateLimitedPerClient(t *testing.T) {
	ts := newTestServer(t, Config{RunRatePerSecond: 0.001, RunBurst: 1})
	client := newClient(t)

	if status := doJSON(t, client, http.MethodPost, ts.http.URL+"/api/run", map[string]any{}, nil); status != http.StatusOK {
		t.Fatalf("first run status = %d", status)
	}
	var errBody map[string]string
	if status := doJSON(t, client, http.MethodPost, ts.http.URL+"/api/run", map[string]any{}, &errBody); status != http.StatusTooManyRequests {
		t.Fatalf("second run status = %d", status)
	}
}

func TestImportMultipart(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := newClient(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range map[string]string{"a.py": "print('a')", "notes.txt": "hello"} {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = part.Write([]byte(content))
	}
	_ = mw.Close()

	resp, err := client.Post(ts.http.URL+"/api/files/import", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var payload struct {
		Files  []schema.FileSnapshot `json:"files"`
		Errors []string              `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(payload.Files) != 2 || len(payload.Errors) != 0 {
		t.Fatalf("unexpected import: status=%d payload=%+v", resp.StatusCode, payload)
	}
	langs := map[string]schema.Language{}
	for _, f := range payload.Files {
		langs[f.Name] = f.Language
	}
	if langs["a.py"] != schema.LanguagePython || langs["notes.txt"] != schema.LanguagePlainText {
		t.Fatalf("unexpected languages: %v", langs)
	}
}

func TestTerminalCommands(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := newClient(t)

	if status := doJSON(t, client, http.MethodPost, ts.http.URL+"/api/terminal", map[string]any{"input": "ls"}, nil); status != http.StatusOK {
		t.Fatalf("terminal status = %d", status)
	}
	doJSON(t, client, http.MethodPost, ts.http.URL+"/api/terminal", map[string]any{"input": "bogus"}, nil)

	var term schema.GetTerminalResponse
	doJSON(t, client, http.MethodGet, ts.http.URL+"/api/terminal", nil, &term)
	text := strings.Join(term.Terminal.Lines, "\n")
	for _, want := range []string{"$ ls", "index.html", "Command not found: bogus"} {
		if !strings.Contains(text, want) {
			t.Fatalf("terminal missing %q:\n%s", want, text)
		}
	}
}

func TestSettingsAndSnippets(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := newClient(t)
	base := ts.http.URL

	var settings schema.UpdateSettingsResponse
	if status := doJSON(t, client, http.MethodPost, base+"/api/settings", map[string]any{"font_size": 18}, &settings); status != http.StatusOK {
		t.Fatalf("settings status = %d", status)
	}
	if settings.Settings.FontSize != 18 {
		t.Fatalf("font size = %d", settings.Settings.FontSize)
	}
	if status := doJSON(t, client, http.MethodPost, base+"/api/settings", map[string]any{"font_size": 2}, nil); status != http.StatusBadRequest {
		t.Fatalf("invalid settings status = %d", status)
	}

	var saved schema.SaveSnippetResponse
	doJSON(t, client, http.MethodPost, base+"/api/snippets", map[string]any{"name": "log", "language": "javascript", "code": "console.log(1)"}, &saved)
	if saved.Snippet.ID == "" {
		t.Fatalf("expected snippet id")
	}
	var inserted schema.InsertSnippetResponse
	status := doJSON(t, client, http.MethodPost, base+"/api/snippets/insert", map[string]any{"file_id": 3, "snippet_id": saved.Snippet.ID, "offset": 0}, &inserted)
	if status != http.StatusOK || !strings.HasPrefix(inserted.File.Code, "console.log(1)") {
		t.Fatalf("insert: status=%d code=%q", status, inserted.File.Code)
	}
	if status := doJSON(t, client, http.MethodPost, base+"/api/snippets/delete", map[string]any{"id": "builtin-for-loop-js"}, nil); status != http.StatusBadRequest {
		t.Fatalf("delete builtin status = %d", status)
	}
}

func TestStreamSendsSnapshotThenEvents(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := newClient(t)
	client.Timeout = 0
	// Establish the session first so the stream and the command share a workspace.
	doJSON(t, client, http.MethodGet, ts.http.URL+"/api/files", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.http.URL+"/api/stream", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	if first.Type != "snapshot" || first.Snapshot == nil || len(first.Snapshot.Workspace.Files) != 3 {
		t.Fatalf("unexpected first event: %+v", first)
	}

	doJSON(t, client, http.MethodPost, ts.http.URL+"/api/terminal", map[string]any{"input": "help"}, nil)
	for {
		event := readEvent(t, reader)
		if event.Type != "terminal" {
			continue
		}
		if event.Seq == 0 || len(event.Lines) == 0 {
			t.Fatalf("unexpected terminal event: %+v", event)
		}
		return
	}
}

func readEvent(t *testing.T, reader *bufio.Reader) StreamEvent {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return event
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{schema.ErrDuplicateName, http.StatusBadRequest},
		{schema.ErrLastFile, http.StatusBadRequest},
		{schema.ErrFileNotFound, http.StatusNotFound},
		{schema.ErrSnippetNotFound, http.StatusNotFound},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestClientLimiterEvictsOldest(t *testing.T) {
	l := newClientLimiter(1, 1)
	l.max = 2
	if !l.allow("a") || !l.allow("b") || !l.allow("c") {
		t.Fatalf("first requests should pass")
	}
	if _, ok := l.items["a"]; ok {
		t.Fatalf("expected a to be evicted")
	}
	if l.allow("b") {
		t.Fatalf("expected b to be limited")
	}
	if newClientLimiter(0, 0) != nil {
		t.Fatalf("expected nil limiter for zero rate")
	}
}

func TestExpiredSessionReleasesWorkspace(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := newClient(t)
	base := ts.http.URL

	var created schema.CreateFileResponse
	status := doJSON(t, client, http.MethodPost, base+"/api/files", map[string]any{"language": "python", "name": "keep"}, &created)
	if status != http.StatusOK {
		t.Fatalf("create: status=%d", status)
	}
	records := ts.srv.sessions.snapshot()
	if len(records) != 1 {
		t.Fatalf("expected one session, got %d", len(records))
	}
	workspaceID := schema.WorkspaceID(records[0].WorkspaceID)
	if ts.srv.hub.Replay(workspaceID, 0) == nil {
		t.Fatalf("expected stream history for the live workspace")
	}

	now := time.Now()
	ts.srv.sessions.now = func() time.Time { return now.Add(800 * time.Hour) }
	if n := ts.srv.sessions.sweep(); n != 1 {
		t.Fatalf("sweep ended %d sessions, want 1", n)
	}
	if ts.srv.hub.Replay(workspaceID, 0) != nil {
		t.Fatalf("expected stream history released")
	}
	list, err := ts.service.ListFiles(context.Background(), schema.ListFilesRequest{WorkspaceID: workspaceID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Files) != 3 {
		t.Fatalf("expected released workspace to start from defaults, got %d files", len(list.Files))
	}

	ts.srv.sessions.now = time.Now
	var listed schema.ListFilesResponse
	if status := doJSON(t, client, http.MethodGet, base+"/api/files", nil, &listed); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	records = ts.srv.sessions.snapshot()
	if len(records) != 1 || schema.WorkspaceID(records[0].WorkspaceID) == workspaceID {
		t.Fatalf("expected a fresh session after expiry, got %+v", records)
	}
}
