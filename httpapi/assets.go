package httpapi

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed assets/*
var embeddedAssets embed.FS

// uiAssets serves the embedded editor UI. Each file carries a content ETag so
// browsers revalidate instead of refetching app.js on every workspace load.
type uiAssets struct {
	files map[string][]byte
	etags map[string]string
}

func loadUIAssets() (*uiAssets, error) {
	root, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return nil, err
	}
	a := &uiAssets{files: map[string][]byte{}, etags: map[string]string{}}
	err = fs.WalkDir(root, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(root, name)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		a.files[name] = data
		a.etags[name] = `"` + hex.EncodeToString(sum[:8]) + `"`
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func mustLoadUIAssets() *uiAssets {
	a, err := loadUIAssets()
	if err != nil {
		panic("httpapi: embedded ui assets: " + err.Error())
	}
	return a
}

// page returns the raw bytes of one embedded file.
func (a *uiAssets) page(name string) ([]byte, bool) {
	data, ok := a.files[name]
	return data, ok
}

// ServeHTTP serves files below /assets/. Directories are not listed.
func (a *uiAssets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	data, ok := a.files[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("ETag", a.etags[name])
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}
