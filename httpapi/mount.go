package httpapi

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"path"
	"strings"
)

const baseHrefPlaceholder = "<!-- BASE_HREF -->"

// mount is where the editor UI lives when snippad sits behind a reverse
// proxy: the path prefix the router strips and the href the index page uses
// to resolve assets and API calls.
type mount struct {
	prefix string
	href   string
}

func newMount(baseURL, basePath string) mount {
	prefix := cleanPrefix(basePath)
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	m := mount{prefix: prefix}
	if base != "" || prefix != "" {
		m.href = base + prefix + "/"
	}
	return m
}

// cleanPrefix turns a configured base path into "" or "/a/b" form.
func cleanPrefix(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	cleaned := path.Clean("/" + value)
	if cleaned == "/" {
		return ""
	}
	return cleaned
}

// wrap serves h below the prefix. The bare prefix redirects to its slash
// form so relative asset URLs in the index resolve.
func (m mount) wrap(h http.Handler) http.Handler {
	if m.prefix == "" {
		return h
	}
	root := http.NewServeMux()
	root.Handle(m.prefix+"/", http.StripPrefix(m.prefix, h))
	root.HandleFunc(m.prefix, func(w http.ResponseWriter, r *http.Request) {
		target := m.prefix + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	})
	return root
}

// rewriteIndex fills the base href slot of the editor page.
func (m mount) rewriteIndex(page []byte) []byte {
	replacement := ""
	if m.href != "" {
		replacement = fmt.Sprintf(`<base href="%s" />`, html.EscapeString(m.href))
	}
	return bytes.ReplaceAll(page, []byte(baseHrefPlaceholder), []byte(replacement))
}
