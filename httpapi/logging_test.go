package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/pslog"
)

func serveLogged(t *testing.T, target string, status int) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := pslog.NewWithOptions(&buf, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		markWorkspace(r, "ws-7", "sess-1")
		w.WriteHeader(status)
	})
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(pslog.ContextWithLogger(context.Background(), logger))
	req.RemoteAddr = "192.0.2.10:5555"
	logRequests(inner).ServeHTTP(httptest.NewRecorder(), req)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogRequestsTagsWorkspaceAndFile(t *testing.T) {
	entries := serveLogged(t, "/api/result?file_id=3", http.StatusOK)
	if len(entries) != 1 {
		t.Fatalf("expected one access log line, got %+v", entries)
	}
	entry := entries[0]
	if entry["message"] != "http request" || entry["workspace"] != "ws-7" || entry["http_session"] != "sess-1" {
		t.Fatalf("unexpected access log line %+v", entry)
	}
	if entry["file"] != float64(3) || entry["remote"] != "192.0.2.10" || entry["status"] != float64(200) {
		t.Fatalf("unexpected access log fields %+v", entry)
	}
}

func TestLogRequestsLevelsByOutcome(t *testing.T) {
	cases := []struct {
		target string
		status int
		want   string
	}{
		{"/api/run", http.StatusTooManyRequests, "http request throttled"},
		{"/api/files", http.StatusInternalServerError, "http request failed"},
	}
	for _, tc := range cases {
		entries := serveLogged(t, tc.target, tc.status)
		if len(entries) != 1 || entries[0]["message"] != tc.want {
			t.Fatalf("%s: expected %q, got %+v", tc.target, tc.want, entries)
		}
	}
	if entries := serveLogged(t, "/assets/app.js", http.StatusOK); len(entries) != 0 {
		t.Fatalf("expected asset requests below info, got %+v", entries)
	}
}

func TestClientIPIgnoresGarbledForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:9000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("clientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	if got := clientIP(req); got != "198.51.100.4" {
		t.Fatalf("clientIP with garbled header = %q", got)
	}
}
