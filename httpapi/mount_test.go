package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCleanPrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{" / ", ""},
		{"snippad", "/snippad"},
		{"/snippad", "/snippad"},
		{"/snippad/", "/snippad"},
		{"//pad//play/", "/pad/play"},
	}
	for _, tc := range cases {
		if got := cleanPrefix(tc.in); got != tc.want {
			t.Fatalf("cleanPrefix(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMountHref(t *testing.T) {
	cases := []struct {
		baseURL  string
		basePath string
		want     string
	}{
		{"", "", ""},
		{"", "/snippad", "/snippad/"},
		{"", "snippad", "/snippad/"},
		{"https://example.com", "", "https://example.com/"},
		{"https://example.com/", "snippad", "https://example.com/snippad/"},
		{"https://example.com/base", "/x", "https://example.com/base/x/"},
	}
	for _, tc := range cases {
		if got := newMount(tc.baseURL, tc.basePath).href; got != tc.want {
			t.Fatalf("newMount(%q, %q).href = %q, want %q", tc.baseURL, tc.basePath, got, tc.want)
		}
	}
}

func TestMountWrapRoutesBelowPrefix(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	h := newMount("", "/pad").wrap(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pad/api/files", nil))
	if rec.Code != http.StatusNoContent || seen != "/api/files" {
		t.Fatalf("status = %d, inner path = %q", rec.Code, seen)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pad?file_id=2", nil))
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/pad/?file_id=2" {
		t.Fatalf("redirect status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unprefixed status = %d", rec.Code)
	}
}

func TestMountRewriteIndexEscapesHref(t *testing.T) {
	page := []byte("<head>" + baseHrefPlaceholder + "</head>")
	if got := string(newMount("", "").rewriteIndex(page)); got != "<head></head>" {
		t.Fatalf("rewrite without mount = %q", got)
	}
	got := string(newMount(`https://example.com/"x`, "").rewriteIndex(page))
	if got != `<head><base href="https://example.com/&#34;x/" /></head>` {
		t.Fatalf("rewrite = %q", got)
	}
}
