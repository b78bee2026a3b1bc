package httpapi

import (
	"net/http"
	"strings"
	"testing"
)

func TestAssetsRevalidateWithETag(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, err := http.Get(ts.http.URL + "/assets/app.js")
	if err != nil {
		t.Fatalf("get app.js: %v", err)
	}
	_ = resp.Body.Close()
	etag := resp.Header.Get("ETag")
	if resp.StatusCode != http.StatusOK || etag == "" {
		t.Fatalf("status = %d, etag = %q", resp.StatusCode, etag)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "javascript") {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}

	req, _ := http.NewRequest(http.MethodGet, ts.http.URL+"/assets/app.js", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("revalidate status = %d", resp.StatusCode)
	}
}

func TestAssetsDoNotListDirectories(t *testing.T) {
	ts := newTestServer(t, Config{})
	for _, path := range []string{"/assets/", "/assets/missing.js"} {
		resp, err := http.Get(ts.http.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}
