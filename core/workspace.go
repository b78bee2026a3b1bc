package core

import (
	"context"
	"encoding/json"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/snippad/schema"
)

// workspace holds one isolated file store with its selection, histories,
// results and terminal.
type workspace struct {
	id        schema.WorkspaceID
	files     map[schema.FileID]*file
	order     []schema.FileID
	active    schema.FileID
	histories map[schema.FileID]*editHistory
	results   map[schema.FileID]schema.RunResult
	runs      map[schema.FileID]*runState
	terminal  *terminalBuffer
	settings  schema.Settings
	snippets  []schema.Snippet

	debounce    *time.Timer
	debounceSeq uint64

	flushes *flushQueue
}

// runState tracks the generation of a file's latest recomputation.
type runState struct {
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// supersede cancels in-flight work, releases waiters and starts a new
// generation.
func (r *runState) supersede() uint64 {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	r.generation++
	return r.generation
}

// settle marks the current generation as finished.
func (r *runState) settle() {
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	r.cancel = nil
}

type persistedFiles struct {
	Files  []persistedFile `json:"files"`
	Active schema.FileID   `json:"active"`
}

type persistedFile struct {
	ID       schema.FileID   `json:"id"`
	Name     string          `json:"name"`
	Language schema.Language `json:"language"`
	Code     string          `json:"code"`
}

func newWorkspace(id schema.WorkspaceID, terminalMaxLines int) *workspace {
	ws := &workspace{
		id:        id,
		files:     make(map[schema.FileID]*file),
		histories: make(map[schema.FileID]*editHistory),
		results:   make(map[schema.FileID]schema.RunResult),
		runs:      make(map[schema.FileID]*runState),
		terminal:  newTerminalBuffer(terminalMaxLines),
		settings:  schema.DefaultSettings(),
		flushes:   newFlushQueue(),
	}
	ws.setFiles(defaultFiles(), 1)
	return ws
}

func (ws *workspace) setFiles(files []*file, active schema.FileID) {
	ws.files = make(map[schema.FileID]*file, len(files))
	ws.order = make([]schema.FileID, 0, len(files))
	for _, f := range files {
		ws.files[f.ID] = f
		ws.order = append(ws.order, f.ID)
	}
	ws.active = active
	if ws.files[active] == nil && len(ws.order) > 0 {
		ws.active = ws.order[0]
	}
}

// resolve returns the file for id; 0 selects the active file.
func (ws *workspace) resolve(id schema.FileID) (*file, error) {
	if id == 0 {
		id = ws.active
	}
	f := ws.files[id]
	if f == nil {
		return nil, schema.ErrFileNotFound
	}
	return f, nil
}

func (ws *workspace) activeFile() *file {
	return ws.files[ws.active]
}

func (ws *workspace) indexOf(id schema.FileID) int {
	for i, candidate := range ws.order {
		if candidate == id {
			return i
		}
	}
	return -1
}

func (ws *workspace) nextID() schema.FileID {
	var max schema.FileID
	for id := range ws.files {
		if id > max {
			max = id
		}
	}
	return max + 1
}

func (ws *workspace) ordered() []*file {
	out := make([]*file, 0, len(ws.order))
	for _, id := range ws.order {
		if f := ws.files[id]; f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (ws *workspace) snapshots() []schema.FileSnapshot {
	out := make([]schema.FileSnapshot, 0, len(ws.order))
	for _, f := range ws.ordered() {
		out = append(out, f.Snapshot(f.ID == ws.active))
	}
	return out
}

func (ws *workspace) history(id schema.FileID, max int) *editHistory {
	h := ws.histories[id]
	if h == nil {
		h = newEditHistory(max)
		ws.histories[id] = h
	}
	return h
}

// seededHistory returns f's history, recording its current code first when
// nothing has been recorded yet (default and restored files).
func (ws *workspace) seededHistory(f *file, max int) *editHistory {
	h := ws.history(f.ID, max)
	if len(h.entries) == 0 {
		h.Record(f.Code)
	}
	return h
}

func (ws *workspace) run(id schema.FileID) *runState {
	rs := ws.runs[id]
	if rs == nil {
		rs = &runState{}
		ws.runs[id] = rs
	}
	return rs
}

func (ws *workspace) stopDebounce() {
	ws.debounceSeq++
	if ws.debounce != nil {
		ws.debounce.Stop()
		ws.debounce = nil
	}
}

func (ws *workspace) persistedFiles() persistedFiles {
	out := persistedFiles{Active: ws.active}
	for _, f := range ws.ordered() {
		out.Files = append(out.Files, persistedFile{ID: f.ID, Name: f.Name, Language: f.Language, Code: f.Code})
	}
	return out
}

// loadWorkspaceLocked builds a workspace from the key-value store, falling
// back to defaults for anything missing or malformed.
func (s *service) loadWorkspaceLocked(id schema.WorkspaceID) *workspace {
	ws := newWorkspace(id, s.cfg.TerminalMaxLines)
	if s.store == nil {
		return ws
	}
	log := s.logger.With("workspace", id)

	var saved persistedFiles
	if s.loadJSON(log, id, keyFiles, &saved) {
		if files, ok := restoreFiles(saved); ok {
			ws.setFiles(files, saved.Active)
			log.Debug("service workspace restored", "files", len(files))
		} else {
			log.Warn("service workspace restore skipped", "reason", "invalid file set")
		}
	}

	settings := schema.DefaultSettings()
	if s.loadJSON(log, id, keySettings, &settings) {
		if err := validateSettings(settings); err != nil {
			log.Warn("service settings restore skipped", "err", err)
			settings = schema.DefaultSettings()
		}
	}
	if accent, ok := s.kvGet(log, id, keyAccentColor); ok && validAccentColor(accent) {
		settings.AccentColor = accent
	}
	ws.settings = settings

	var snippets []schema.Snippet
	if s.loadJSON(log, id, keyUserSnippets, &snippets) {
		for _, snippet := range snippets {
			if snippet.ID == "" || isBuiltinSnippet(snippet.ID) {
				continue
			}
			snippet.BuiltIn = false
			ws.snippets = append(ws.snippets, snippet)
		}
	}
	return ws
}

func restoreFiles(saved persistedFiles) ([]*file, bool) {
	if len(saved.Files) == 0 {
		return nil, false
	}
	seen := make(map[schema.FileID]bool, len(saved.Files))
	files := make([]*file, 0, len(saved.Files))
	for _, pf := range saved.Files {
		if pf.ID <= 0 || seen[pf.ID] {
			return nil, false
		}
		if _, ok := schema.LookupLanguage(pf.Language); !ok && pf.Language != schema.LanguagePlainText {
			return nil, false
		}
		seen[pf.ID] = true
		files = append(files, &file{ID: pf.ID, Name: pf.Name, Language: pf.Language, Code: pf.Code})
	}
	return files, true
}

func (s *service) kvGet(log pslog.Logger, id schema.WorkspaceID, key string) (string, bool) {
	if s.store == nil {
		return "", false
	}
	value, ok, err := s.store.Get(id, key)
	if err != nil {
		log.Warn("service kv get failed", "key", key, "err", err)
		return "", false
	}
	return value, ok
}

func (s *service) loadJSON(log pslog.Logger, id schema.WorkspaceID, key string, dst any) bool {
	raw, ok := s.kvGet(log, id, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Warn("service kv decode failed", "key", key, "err", err)
		return false
	}
	return true
}
