package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/snippad/core"
	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

// CommandHandler runs one terminal command line against a workspace.
type CommandHandler interface {
	Handle(ctx context.Context, workspaceID schema.WorkspaceID, input string) error
}

// Server serves the HTTP API and UI.
type Server struct {
	cfg        Config
	service    core.Service
	cmdHandler CommandHandler
	sessions   *sessionStore
	hub        *Hub
	limiter    *clientLimiter
	mount      mount
	assets     *uiAssets
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, handler CommandHandler, hub *Hub) *Server {
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	if strings.TrimSpace(cfg.SessionCookie) == "" {
		cfg.SessionCookie = defaultSessionCookie
	}
	if cfg.TerminalLines <= 0 {
		cfg.TerminalLines = defaultTerminalLines
	}
	if hub == nil {
		hub = NewHub(0)
	}
	srv := &Server{
		cfg:        cfg,
		service:    service,
		cmdHandler: handler,
		hub:        hub,
		limiter:    newClientLimiter(cfg.RunRatePerSecond, cfg.RunBurst),
		mount:      newMount(cfg.BaseURL, cfg.BasePath),
		assets:     mustLoadUIAssets(),
	}
	srv.sessions = newSessionStore(ttl, cfg.SessionPath, srv.releaseWorkspace)
	return srv
}

// releaseWorkspace frees an ended session's workspace and its stream history.
func (s *Server) releaseWorkspace(workspaceID schema.WorkspaceID) {
	log := logx.WithWorkspace(context.Background(), workspaceID)
	if s.service != nil {
		if _, err := s.service.ReleaseWorkspace(context.Background(), schema.ReleaseWorkspaceRequest{
			WorkspaceID: workspaceID,
			Purge:       true,
		}); err != nil {
			log.Warn("http workspace release failed", "err", err)
		}
	}
	if !s.hub.Release(workspaceID) {
		log.Debug("http workspace stream kept", "reason", "subscribers")
	}
}

// SweepSessions ends expired sessions every interval until ctx is done.
func (s *Server) SweepSessions(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSessionSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.sessions.sweep(); n > 0 {
				logx.Ctx(ctx).Info("http sessions swept", "ended", n)
			}
		}
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.withWorkspace(s.handleIndex))
	mux.Handle("/assets/", http.StripPrefix("/assets/", s.assets))
	mux.HandleFunc("/preview", s.withWorkspace(s.handlePreview))

	mux.HandleFunc("/api/workspace", s.withWorkspace(s.handleWorkspace))
	mux.HandleFunc("/api/languages", s.handleLanguages)
	mux.HandleFunc("/api/files", s.withWorkspace(s.handleFiles))
	mux.HandleFunc("/api/files/rename", s.withWorkspace(s.handleRename))
	mux.HandleFunc("/api/files/delete", s.withWorkspace(s.handleDelete))
	mux.HandleFunc("/api/files/code", s.withWorkspace(s.handleCode))
	mux.HandleFunc("/api/files/reorder", s.withWorkspace(s.handleReorder))
	mux.HandleFunc("/api/files/activate", s.withWorkspace(s.handleActivate))
	mux.HandleFunc("/api/files/undo", s.withWorkspace(s.handleUndo))
	mux.HandleFunc("/api/files/redo", s.withWorkspace(s.handleRedo))
	mux.HandleFunc("/api/files/import", s.withWorkspace(s.handleImport))
	mux.HandleFunc("/api/files/search", s.withWorkspace(s.handleSearch))
	mux.HandleFunc("/api/history", s.withWorkspace(s.handleHistory))

	mux.HandleFunc("/api/run", s.limiter.limit(s.withWorkspace(s.handleRun)))
	mux.HandleFunc("/api/result", s.withWorkspace(s.handleResult))
	mux.HandleFunc("/api/output/clear", s.withWorkspace(s.handleClearOutput))
	mux.HandleFunc("/api/clear", s.withWorkspace(s.handleClearCode))
	mux.HandleFunc("/api/export", s.withWorkspace(s.handleExport))
	mux.HandleFunc("/api/runtimes", s.handleRuntimes)
	mux.HandleFunc("/api/runtimes/refresh", s.handleRefreshRuntimes)

	mux.HandleFunc("/api/settings", s.withWorkspace(s.handleSettings))
	mux.HandleFunc("/api/snippets", s.withWorkspace(s.handleSnippets))
	mux.HandleFunc("/api/snippets/delete", s.withWorkspace(s.handleDeleteSnippet))
	mux.HandleFunc("/api/snippets/insert", s.withWorkspace(s.handleInsertSnippet))

	mux.HandleFunc("/api/terminal", s.limiter.limit(s.withWorkspace(s.handleTerminal)))
	mux.HandleFunc("/api/stream", s.withWorkspace(s.handleStream))

	return s.mount.wrap(logRequests(mux))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ schema.WorkspaceID) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, ok := s.assets.page("index.html")
	if !ok {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", time.Time{}, bytes.NewReader(s.mount.rewriteIndex(page)))
}

// withWorkspace resolves the session cookie to a workspace, starting a new
// anonymous session when the cookie is missing or expired.
func (s *Server) withWorkspace(next func(http.ResponseWriter, *http.Request, schema.WorkspaceID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.sessionToken(r)
		entry, ok := s.sessions.get(token)
		if !ok {
			token, entry = s.sessions.create()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.SessionCookie,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Expires:  entry.expiresAt,
			})
			// Later handlers and the request logger see the new session.
			r.AddCookie(&http.Cookie{Name: s.cfg.SessionCookie, Value: token})
		}
		markWorkspace(r, entry.workspaceID, entry.id)
		log := logx.Ctx(r.Context()).With("remote", clientIP(r), "http_session", entry.id)
		ctx := logx.ContextWithWorkspaceLogger(r.Context(), log, entry.workspaceID)
		next(w, r.WithContext(ctx), entry.workspaceID)
	}
}

func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cfg.SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case schema.IsValidation(err):
		return http.StatusBadRequest
	case schema.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

const maxJSONBody = 4 << 20

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// queryFileID reads file_id from the query string; 0 addresses the active file.
func queryFileID(r *http.Request) schema.FileID {
	return schema.FileID(parseInt(r.URL.Query().Get("file_id"), 0))
}
