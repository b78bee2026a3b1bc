package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"pkt.systems/pslog"
	"pkt.systems/snippad/schema"
)

// WorkspaceSnapshot is the on-disk form of a workspace's key-value entries.
type WorkspaceSnapshot struct {
	Entries map[string]string `json:"entries"`
}

// Store persists per-workspace key-value entries to disk, one JSON file per
// workspace. Entries are cached after the first load.
type Store struct {
	dir   string
	log   pslog.Logger
	mu    sync.Mutex
	cache map[schema.WorkspaceID]map[string]string
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger, cache: make(map[schema.WorkspaceID]map[string]string)}, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ws schema.WorkspaceID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entriesLocked(ws)
	if err != nil {
		return "", false, err
	}
	value, ok := entries[key]
	return value, ok, nil
}

// Set stores value under key and writes the workspace file. The cache only
// changes once the file is written.
func (s *Store) Set(ws schema.WorkspaceID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entriesLocked(ws)
	if err != nil {
		// An unreadable file is replaced rather than blocking every write.
		entries = nil
	}
	if current, ok := entries[key]; ok && current == value {
		return nil
	}
	next := cloneEntries(entries)
	next[key] = value
	if err := s.saveLocked(ws, next); err != nil {
		return err
	}
	s.cache[ws] = next
	return nil
}

// Delete removes key and writes the workspace file.
func (s *Store) Delete(ws schema.WorkspaceID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entriesLocked(ws)
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	next := cloneEntries(entries)
	delete(next, key)
	if err := s.saveLocked(ws, next); err != nil {
		return err
	}
	s.cache[ws] = next
	return nil
}

// DeleteWorkspace drops every key of a workspace and removes its file.
func (s *Store) DeleteWorkspace(ws schema.WorkspaceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, ws)
	if err := os.Remove(s.pathForWorkspace(ws)); err != nil && !errors.Is(err, os.ErrNotExist) {
		if s.log != nil {
			s.log.Warn("state delete failed", "workspace", ws, "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Debug("state deleted", "workspace", ws)
	}
	return nil
}

func cloneEntries(entries map[string]string) map[string]string {
	out := make(map[string]string, len(entries)+1)
	for key, value := range entries {
		out[key] = value
	}
	return out
}

// Keys lists the stored keys of a workspace in sorted order.
func (s *Store) Keys(ws schema.WorkspaceID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.entriesLocked(ws)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) entriesLocked(ws schema.WorkspaceID) (map[string]string, error) {
	if entries, ok := s.cache[ws]; ok {
		return entries, nil
	}
	snapshot, ok, err := s.load(ws)
	if err != nil {
		return nil, err
	}
	entries := snapshot.Entries
	if !ok || entries == nil {
		entries = make(map[string]string)
	}
	s.cache[ws] = entries
	return entries, nil
}

// load reads a workspace snapshot from disk.
func (s *Store) load(ws schema.WorkspaceID) (WorkspaceSnapshot, bool, error) {
	path := s.pathForWorkspace(ws)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "workspace", ws)
			}
			return WorkspaceSnapshot{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "workspace", ws, "err", err)
		}
		return WorkspaceSnapshot{}, false, err
	}
	var snapshot WorkspaceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "workspace", ws, "err", err)
		}
		return WorkspaceSnapshot{}, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "workspace", ws, "keys", len(snapshot.Entries))
	}
	return snapshot, true, nil
}

// saveLocked writes a workspace snapshot atomically.
func (s *Store) saveLocked(ws schema.WorkspaceID, entries map[string]string) error {
	path := s.pathForWorkspace(ws)
	fail := func(err error) error {
		if s.log != nil {
			s.log.Warn("state save failed", "workspace", ws, "err", err)
		}
		return err
	}
	data, err := json.MarshalIndent(WorkspaceSnapshot{Entries: entries}, "", "  ")
	if err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return fail(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	if s.log != nil {
		s.log.Trace("state save ok", "workspace", ws, "keys", len(entries))
	}
	return nil
}

func (s *Store) pathForWorkspace(ws schema.WorkspaceID) string {
	name := sanitize(string(ws))
	if name == "" || name == "." || name == ".." {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
