package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

// requestTrace collects what a request resolved to while it is served. The
// session middleware fills in the workspace so the access log can name it.
type requestTrace struct {
	workspaceID schema.WorkspaceID
	sessionID   string
}

type traceKey struct{}

func traceFrom(ctx context.Context) *requestTrace {
	trace, _ := ctx.Value(traceKey{}).(*requestTrace)
	return trace
}

// markWorkspace records the resolved session on the request trace, if any.
func markWorkspace(r *http.Request, workspaceID schema.WorkspaceID, sessionID string) {
	if trace := traceFrom(r.Context()); trace != nil {
		trace.workspaceID = workspaceID
		trace.sessionID = sessionID
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

// Flush keeps the event stream working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logRequests writes one access log line per request, tagged with the
// workspace and file it touched. Static assets log at debug, throttled runs at
// warn and server failures at error.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		trace := &requestTrace{}
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), traceKey{}, trace)))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		log := logx.WithWorkspaceFile(r.Context(), trace.workspaceID, queryFileID(r)).With("remote", clientIP(r))
		if trace.sessionID != "" {
			log = log.With("http_session", trace.sessionID)
		}
		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("http request failed", fields...)
		case status == http.StatusTooManyRequests:
			log.Warn("http request throttled", fields...)
		case strings.HasPrefix(r.URL.Path, "/assets/"):
			log.Debug("http asset served", fields...)
		default:
			log.Info("http request", fields...)
		}
		if ua := r.UserAgent(); ua != "" {
			log.Trace("http request client", "ua", ua, "query", r.URL.RawQuery)
		}
	})
}

// clientIP returns the first well formed address from X-Forwarded-For, or the
// peer address when the header is absent or garbled.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
