package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

// session binds an anonymous browser cookie to a workspace.
type session struct {
	id          string
	workspaceID schema.WorkspaceID
	expiresAt   time.Time
}

type sessionStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]session
	path  string
	now   func() time.Time
	// onRelease is called without the lock for every session that ends.
	onRelease func(schema.WorkspaceID)
}

func newSessionStore(ttl time.Duration, path string, onRelease func(schema.WorkspaceID)) *sessionStore {
	store := &sessionStore{
		ttl:       ttl,
		items:     make(map[string]session),
		path:      strings.TrimSpace(path),
		now:       time.Now,
		onRelease: onRelease,
	}
	if store.path != "" {
		if err := store.load(); err != nil {
			logx.Ctx(context.Background()).Warn("session store load failed", "err", err)
		}
	}
	return store
}

// newWorkspaceID returns a fresh workspace id for an anonymous session.
func newWorkspaceID() schema.WorkspaceID {
	return schema.WorkspaceID("ws-" + uuid.NewString())
}

func (s *sessionStore) create() (string, session) {
	token := randomToken(32)
	entry := session{
		id:          randomToken(12),
		workspaceID: newWorkspaceID(),
		expiresAt:   s.now().Add(s.ttl),
	}
	log := logx.WithWorkspace(context.Background(), entry.workspaceID).With("http_session", entry.id)
	s.mu.Lock()
	s.items[token] = entry
	s.mu.Unlock()
	s.persist()
	log.Info("session created", "expires", entry.expiresAt.Format(time.RFC3339))
	return token, entry
}

func (s *sessionStore) get(token string) (session, bool) {
	if token == "" {
		return session{}, false
	}
	s.mu.Lock()
	entry, ok := s.items[token]
	if !ok {
		s.mu.Unlock()
		return session{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.items, token)
		s.mu.Unlock()
		logx.WithWorkspace(context.Background(), entry.workspaceID).With("http_session", entry.id).Info("session expired")
		s.persist()
		s.release(entry.workspaceID)
		return session{}, false
	}
	s.mu.Unlock()
	return entry, true
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	entry, ok := s.items[token]
	if ok {
		delete(s.items, token)
	}
	s.mu.Unlock()
	if ok {
		logx.WithWorkspace(context.Background(), entry.workspaceID).With("http_session", entry.id).Info("session deleted")
		s.persist()
		s.release(entry.workspaceID)
	}
}

// sweep drops every expired session and returns how many ended.
func (s *sessionStore) sweep() int {
	now := s.now()
	var ended []session
	s.mu.Lock()
	for token, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, token)
			ended = append(ended, entry)
		}
	}
	s.mu.Unlock()
	if len(ended) == 0 {
		return 0
	}
	s.persist()
	for _, entry := range ended {
		logx.WithWorkspace(context.Background(), entry.workspaceID).With("http_session", entry.id).Info("session expired")
		s.release(entry.workspaceID)
	}
	return len(ended)
}

func (s *sessionStore) release(workspaceID schema.WorkspaceID) {
	if s.onRelease != nil {
		s.onRelease(workspaceID)
	}
}

func randomToken(size int) string {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

type sessionRecord struct {
	Token       string    `json:"token"`
	SessionID   string    `json:"session_id"`
	WorkspaceID string    `json:"workspace_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type sessionFile struct {
	Version  int             `json:"version"`
	Sessions []sessionRecord `json:"sessions"`
}

func (s *sessionStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	now := s.now()
	entries := make(map[string]session)
	var expired []schema.WorkspaceID
	for _, record := range file.Sessions {
		if strings.TrimSpace(record.Token) == "" {
			continue
		}
		workspaceID := schema.WorkspaceID(record.WorkspaceID)
		if schema.ValidateWorkspaceID(workspaceID) != nil {
			continue
		}
		if now.After(record.ExpiresAt) {
			expired = append(expired, workspaceID)
			continue
		}
		entries[record.Token] = session{
			id:          record.SessionID,
			workspaceID: workspaceID,
			expiresAt:   record.ExpiresAt,
		}
	}
	s.mu.Lock()
	s.items = entries
	s.mu.Unlock()
	if len(file.Sessions) != len(entries) {
		s.persist()
	}
	for _, workspaceID := range expired {
		s.release(workspaceID)
	}
	logx.Ctx(context.Background()).Info("session store loaded", "sessions", len(entries), "expired", len(expired))
	return nil
}

func (s *sessionStore) persist() {
	if s.path == "" {
		return
	}
	records := s.snapshot()
	if err := writeSessionFile(s.path, records); err != nil {
		logx.Ctx(context.Background()).Warn("session store save failed", "err", err)
	}
}

func (s *sessionStore) snapshot() []sessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]sessionRecord, 0, len(s.items))
	for token, entry := range s.items {
		records = append(records, sessionRecord{
			Token:       token,
			SessionID:   entry.id,
			WorkspaceID: string(entry.workspaceID),
			ExpiresAt:   entry.expiresAt,
		})
	}
	return records
}

func writeSessionFile(path string, records []sessionRecord) error {
	payload := sessionFile{Version: 1, Sessions: records}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "sessions-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
