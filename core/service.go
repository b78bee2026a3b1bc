package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"pkt.systems/pslog"
	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/internal/persist"
	"pkt.systems/snippad/schema"
)

// service implements the core service behavior.
type service struct {
	cfg        schema.ServiceConfig
	exec       Executor
	store      KVStore
	sink       EventSink
	logger     pslog.Logger
	now        func() time.Time
	mu         sync.Mutex
	workspaces map[schema.WorkspaceID]*workspace
	runtimes   []schema.Runtime
	closed     bool
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	store := deps.Store
	if store == nil {
		kv, err := persist.NewStoreWithLogger(normalized.StateDir, logger)
		if err != nil {
			return nil, err
		}
		store = kv
	}
	return &service{
		cfg:        normalized,
		exec:       deps.Executor,
		store:      store,
		sink:       deps.EventSink,
		logger:     logger,
		now:        now,
		workspaces: make(map[schema.WorkspaceID]*workspace),
	}, nil
}

// begin validates the workspace id, loads its state and locks the service.
// Callers must unlock s.mu.
func (s *service) begin(ctx context.Context, id schema.WorkspaceID) (*workspace, pslog.Logger, error) {
	if ctx == nil {
		return nil, nil, errors.New("missing context")
	}
	if id == "" {
		id = s.cfg.DefaultWorkspace
	}
	if err := schema.ValidateWorkspaceID(id); err != nil {
		return nil, nil, err
	}
	log := logx.WithWorkspace(ctx, id)
	s.mu.Lock()
	return s.workspaceLocked(id), log, nil
}

func (s *service) workspaceLocked(id schema.WorkspaceID) *workspace {
	ws := s.workspaces[id]
	if ws == nil {
		ws = s.loadWorkspaceLocked(id)
		s.workspaces[id] = ws
	}
	return ws
}

func (s *service) ListFiles(ctx context.Context, req schema.ListFilesRequest) (schema.ListFilesResponse, error) {
	ws, _, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ListFilesResponse{}, err
	}
	defer s.mu.Unlock()
	return schema.ListFilesResponse{Files: ws.snapshots(), ActiveFile: ws.active}, nil
}

func (s *service) GetFile(ctx context.Context, req schema.GetFileRequest) (schema.GetFileResponse, error) {
	ws, _, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.GetFileResponse{}, err
	}
	defer s.mu.Unlock()
	f, err := ws.resolve(req.FileID)
	if err != nil {
		return schema.GetFileResponse{}, err
	}
	return schema.GetFileResponse{File: f.Snapshot(f.ID == ws.active)}, nil
}

func (s *service) CreateFile(ctx context.Context, req schema.CreateFileRequest) (schema.CreateFileResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.CreateFileResponse{}, err
	}
	name, err := schema.ResolveNewFileName(req.Language, req.Name)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service file create rejected", "language", req.Language, "name", req.Name, "err", err)
		return schema.CreateFileResponse{}, err
	}
	for _, existing := range ws.files {
		if existing.Name == name {
			s.mu.Unlock()
			log.Warn("service file create rejected", "name", name, "err", schema.ErrDuplicateName)
			return schema.CreateFileResponse{}, schema.ErrDuplicateName
		}
	}
	code := ""
	switch req.Seed {
	case schema.SeedTemplate:
		code = schema.Template(req.Language)
	case schema.SeedLastCode:
		if last, ok := s.kvGet(log, ws.id, codeKey(req.Language)); ok {
			code = last
		}
	}

	f := &file{ID: ws.nextID(), Name: name, Language: req.Language, Code: code}
	ws.files[f.ID] = f
	ws.order = append(ws.order, f.ID)
	ws.history(f.ID, s.cfg.HistoryMax).Record(code)

	out := newOutbox(ws)
	s.activateLocked(ws, f.ID, out)
	out.fileEvent(ws, schema.FileEventCreated, f)
	out.saveFiles(log, ws)
	snap := f.Snapshot(true)
	s.mu.Unlock()

	s.flush(log, out)
	logx.WithFile(log, snap).Info("service file created")
	return schema.CreateFileResponse{File: snap}, nil
}

func (s *service) DeleteFile(ctx context.Context, req schema.DeleteFileRequest) (schema.DeleteFileResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.DeleteFileResponse{}, err
	}
	f, err := ws.resolve(req.FileID)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service file delete failed", "file", int(req.FileID), "err", err)
		return schema.DeleteFileResponse{}, err
	}
	if len(ws.order) <= 1 {
		s.mu.Unlock()
		log.Warn("service file delete rejected", "file", int(f.ID), "err", schema.ErrLastFile)
		return schema.DeleteFileResponse{}, schema.ErrLastFile
	}

	idx := ws.indexOf(f.ID)
	ws.order = append(ws.order[:idx], ws.order[idx+1:]...)
	delete(ws.files, f.ID)
	delete(ws.histories, f.ID)
	delete(ws.results, f.ID)
	if rs := ws.runs[f.ID]; rs != nil {
		rs.supersede()
		delete(ws.runs, f.ID)
	}

	out := newOutbox(ws)
	if ws.active == f.ID {
		next := idx - 1
		if next < 0 {
			next = 0
		}
		s.activateLocked(ws, ws.order[next], out)
	} else if s.affectsActiveLocked(ws, f) {
		s.recomputeLocked(ws, ws.active, out)
	}
	out.fileEvent(ws, schema.FileEventDeleted, f)
	out.saveFiles(log, ws)
	snap := f.Snapshot(false)
	active := ws.active
	s.mu.Unlock()

	s.flush(log, out)
	logx.WithFile(log, snap).Info("service file deleted", "active", int(active))
	return schema.DeleteFileResponse{File: snap, ActiveFile: active}, nil
}

func (s *service) RenameFile(ctx context.Context, req schema.RenameFileRequest) (schema.RenameFileResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.RenameFileResponse{}, err
	}
	f, err := ws.resolve(req.FileID)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service file rename failed", "file", int(req.FileID), "err", err)
		return schema.RenameFileResponse{}, err
	}
	name, err := schema.NormalizeRenameName(req.Name)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service file rename rejected", "file", int(f.ID), "err", err)
		return schema.RenameFileResponse{}, err
	}
	duplicate := false
	for _, other := range ws.files {
		if other.ID != f.ID && other.Name == name {
			duplicate = true
			break
		}
	}
	f.Name = name

	out := newOutbox(ws)
	out.fileEvent(ws, schema.FileEventRenamed, f)
	out.saveFiles(log, ws)
	snap := f.Snapshot(f.ID == ws.active)
	s.mu.Unlock()

	s.flush(log, out)
	if duplicate {
		logx.WithFile(log, snap).Warn("service file renamed to duplicate name")
	} else {
		logx.WithFile(log, snap).Info("service file renamed")
	}
	return schema.RenameFileResponse{File: snap, Duplicate: duplicate}, nil
}

func (s *service) UpdateCode(ctx context.Context, req schema.UpdateCodeRequest) (schema.UpdateCodeResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.UpdateCodeResponse{}, err
	}
	f, err := ws.resolve(req.FileID)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service code update failed", "file", int(req.FileID), "err", err)
		return schema.UpdateCodeResponse{}, err
	}
	out := newOutbox(ws)
	s.updateCodeLocked(log, ws, f, req.Code, out)
	snap := f.Snapshot(f.ID == ws.active)
	history := ws.history(f.ID, s.cfg.HistoryMax).Snapshot(f.ID)
	s.mu.Unlock()

	s.flush(log, out)
	log.Trace("service code updated", "file", int(f.ID), "bytes", len(req.Code))
	return schema.UpdateCodeResponse{File: snap, History: history}, nil
}

// updateCodeLocked is the single write path for edits: it records history,
// remembers the code per language and schedules a debounced recomputation
// when the edit affects the active file's output.
func (s *service) updateCodeLocked(log pslog.Logger, ws *workspace, f *file, code string, out *outbox) {
	if f.Code == code {
		return
	}
	ws.seededHistory(f, s.cfg.HistoryMax).Record(code)
	f.Code = code
	out.fileEvent(ws, schema.FileEventUpdated, f)
	out.set(codeKey(f.Language), code)
	out.saveFiles(log, ws)
	if s.affectsActiveLocked(ws, f) {
		s.scheduleLocked(ws)
	}
}

func (s *service) ReorderFile(ctx context.Context, req schema.ReorderFileRequest) (schema.ReorderFileResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ReorderFileResponse{}, err
	}
	n := len(ws.order)
	if req.From < 0 || req.From >= n || req.To < 0 || req.To >= n {
		s.mu.Unlock()
		log.Warn("service file reorder rejected", "from", req.From, "to", req.To, "err", schema.ErrInvalidIndex)
		return schema.ReorderFileResponse{}, schema.ErrInvalidIndex
	}
	out := newOutbox(ws)
	if req.From != req.To {
		moved := ws.order[req.From]
		ws.order = append(ws.order[:req.From], ws.order[req.From+1:]...)
		ws.order = append(ws.order[:req.To], append([]schema.FileID{moved}, ws.order[req.To:]...)...)
		if active := ws.activeFile(); active != nil && schema.ModeFor(active.Language) == schema.RunModePreview {
			s.recomputeLocked(ws, active.ID, out)
		}
		out.fileEvent(ws, schema.FileEventReordered, ws.files[moved])
		out.saveFiles(log, ws)
	}
	order := append([]schema.FileID(nil), ws.order...)
	s.mu.Unlock()

	s.flush(log, out)
	log.Debug("service file reordered", "from", req.From, "to", req.To)
	return schema.ReorderFileResponse{Order: order}, nil
}

func (s *service) ActivateFile(ctx context.Context, req schema.ActivateFileRequest) (schema.ActivateFileResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ActivateFileResponse{}, err
	}
	f, err := ws.resolve(req.FileID)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service file activate failed", "file", int(req.FileID), "err", err)
		return schema.ActivateFileResponse{}, err
	}
	out := newOutbox(ws)
	if ws.active != f.ID {
		s.activateLocked(ws, f.ID, out)
		out.fileEvent(ws, schema.FileEventActivated, f)
		out.saveFiles(log, ws)
	}
	snap := f.Snapshot(true)
	result := s.resultLocked(ws, f)
	s.mu.Unlock()

	s.flush(log, out)
	logx.WithFile(log, snap).Debug("service file activated")
	return schema.ActivateFileResponse{File: snap, Result: result}, nil
}

// activateLocked moves the selection and recomputes the new active file.
func (s *service) activateLocked(ws *workspace, id schema.FileID, out *outbox) {
	ws.stopDebounce()
	ws.active = id
	s.recomputeLocked(ws, id, out)
}

func (s *service) SearchFiles(ctx context.Context, req schema.SearchFilesRequest) (schema.SearchFilesResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.SearchFilesResponse{}, err
	}
	defer s.mu.Unlock()
	files := ws.ordered()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return schema.SearchFilesResponse{Files: ws.snapshots()}, nil
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	matches := fuzzy.Find(query, names)
	out := make([]schema.FileSnapshot, 0, len(matches))
	for _, match := range matches {
		f := files[match.Index]
		out = append(out, f.Snapshot(f.ID == ws.active))
	}
	log.Trace("service file search", "query", query, "matches", len(out))
	return schema.SearchFilesResponse{Files: out}, nil
}

func (s *service) ImportFile(ctx context.Context, req schema.ImportFileRequest) (schema.ImportFileResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ImportFileResponse{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.mu.Unlock()
		log.Warn("service file import rejected", "err", schema.ErrEmptyName)
		return schema.ImportFileResponse{}, schema.ErrEmptyName
	}
	code := strings.ToValidUTF8(string(req.Data), "\uFFFD")
	f := &file{ID: ws.nextID(), Name: name, Language: schema.LanguageForFileName(name), Code: code}
	ws.files[f.ID] = f
	ws.order = append(ws.order, f.ID)
	ws.history(f.ID, s.cfg.HistoryMax).Record(code)

	out := newOutbox(ws)
	s.activateLocked(ws, f.ID, out)
	out.fileEvent(ws, schema.FileEventImported, f)
	out.saveFiles(log, ws)
	snap := f.Snapshot(true)
	s.mu.Unlock()

	s.flush(log, out)
	logx.WithFile(log, snap).Info("service file imported", "bytes", len(req.Data))
	return schema.ImportFileResponse{File: snap}, nil
}

func (s *service) ClearCode(ctx context.Context, req schema.ClearCodeRequest) (schema.ClearCodeResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ClearCodeResponse{}, err
	}
	ws.stopDebounce()
	for _, f := range ws.ordered() {
		if f.Code != "" {
			ws.seededHistory(f, s.cfg.HistoryMax).Record("")
			f.Code = ""
		}
	}
	for _, rs := range ws.runs {
		rs.supersede()
	}
	ws.results = make(map[schema.FileID]schema.RunResult)

	out := newOutbox(ws)
	out.fileEvent(ws, schema.FileEventCleared, nil)
	out.saveFiles(log, ws)
	files := ws.snapshots()
	s.mu.Unlock()

	s.flush(log, out)
	log.Info("service code cleared", "files", len(files))
	return schema.ClearCodeResponse{Files: files}, nil
}

func (s *service) Undo(ctx context.Context, req schema.UndoRequest) (schema.UndoResponse, error) {
	snap, history, applied, err := s.step(ctx, req.WorkspaceID, req.FileID, true)
	return schema.UndoResponse{File: snap, History: history, Applied: applied}, err
}

func (s *service) Redo(ctx context.Context, req schema.RedoRequest) (schema.RedoResponse, error) {
	snap, history, applied, err := s.step(ctx, req.WorkspaceID, req.FileID, false)
	return schema.RedoResponse{File: snap, History: history, Applied: applied}, err
}

// step applies one undo or redo move without recording it.
func (s *service) step(ctx context.Context, wsID schema.WorkspaceID, id schema.FileID, back bool) (schema.FileSnapshot, schema.HistorySnapshot, bool, error) {
	ws, log, err := s.begin(ctx, wsID)
	if err != nil {
		return schema.FileSnapshot{}, schema.HistorySnapshot{}, false, err
	}
	f, err := ws.resolve(id)
	if err != nil {
		s.mu.Unlock()
		log.Warn("service history step failed", "file", int(id), "err", err)
		return schema.FileSnapshot{}, schema.HistorySnapshot{}, false, err
	}
	h := ws.history(f.ID, s.cfg.HistoryMax)
	var code string
	var applied bool
	if back {
		code, applied = h.Undo()
	} else {
		code, applied = h.Redo()
	}
	out := newOutbox(ws)
	if applied {
		f.Code = code
		out.fileEvent(ws, schema.FileEventUpdated, f)
		out.set(codeKey(f.Language), code)
		out.saveFiles(log, ws)
		if s.affectsActiveLocked(ws, f) {
			ws.stopDebounce()
			s.recomputeLocked(ws, ws.active, out)
		}
	}
	snap := f.Snapshot(f.ID == ws.active)
	history := h.Snapshot(f.ID)
	s.mu.Unlock()

	s.flush(log, out)
	log.Debug("service history step", "file", int(f.ID), "undo", back, "applied", applied, "cursor", history.Cursor)
	return snap, history, applied, nil
}

func (s *service) GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error) {
	ws, _, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.GetHistoryResponse{}, err
	}
	defer s.mu.Unlock()
	f, err := ws.resolve(req.FileID)
	if err != nil {
		return schema.GetHistoryResponse{}, err
	}
	h := ws.histories[f.ID]
	if h == nil {
		h = newEditHistory(s.cfg.HistoryMax)
	}
	return schema.GetHistoryResponse{History: h.Snapshot(f.ID)}, nil
}

func (s *service) GetWorkspace(ctx context.Context, req schema.GetWorkspaceRequest) (schema.GetWorkspaceResponse, error) {
	ws, _, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.GetWorkspaceResponse{}, err
	}
	defer s.mu.Unlock()
	results := make(map[schema.FileID]schema.RunResult, len(ws.results))
	for id, result := range ws.results {
		results[id] = result
	}
	return schema.GetWorkspaceResponse{Workspace: schema.WorkspaceSnapshot{
		WorkspaceID: ws.id,
		Files:       ws.snapshots(),
		ActiveFile:  ws.active,
		Results:     results,
		Settings:    ws.settings,
		Runtimes:    len(s.runtimes),
	}}, nil
}

// ReleaseWorkspace drops a workspace from memory. Its debounce stops and
// in-flight runs are superseded so late responses are discarded.
func (s *service) ReleaseWorkspace(ctx context.Context, req schema.ReleaseWorkspaceRequest) (schema.ReleaseWorkspaceResponse, error) {
	if ctx == nil {
		return schema.ReleaseWorkspaceResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateWorkspaceID(req.WorkspaceID); err != nil {
		return schema.ReleaseWorkspaceResponse{}, err
	}
	log := logx.WithWorkspace(ctx, req.WorkspaceID)
	s.mu.Lock()
	ws := s.workspaces[req.WorkspaceID]
	var out *outbox
	if ws != nil {
		ws.stopDebounce()
		for _, rs := range ws.runs {
			rs.supersede()
		}
		delete(s.workspaces, req.WorkspaceID)
		out = newOutbox(ws)
		out.purge = req.Purge
	}
	remaining := len(s.workspaces)
	s.mu.Unlock()

	if out != nil {
		s.flush(log, out)
	} else if req.Purge {
		s.purgeStore(log, req.WorkspaceID)
	}
	log.Info("service workspace released", "loaded", ws != nil, "purge", req.Purge, "workspaces", remaining)
	return schema.ReleaseWorkspaceResponse{Released: ws != nil}, nil
}

func (s *service) purgeStore(log pslog.Logger, id schema.WorkspaceID) {
	deleter, ok := s.store.(workspaceDeleter)
	if !ok {
		log.Debug("service kv purge skipped", "reason", "store cannot delete workspaces")
		return
	}
	if err := deleter.DeleteWorkspace(id); err != nil {
		log.Warn("service kv purge failed", "err", err)
	}
}

// Close stops pending debounces and cancels in-flight remote runs.
func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ws := range s.workspaces {
		ws.stopDebounce()
		for _, rs := range ws.runs {
			rs.supersede()
		}
	}
	s.logger.Debug("service closed", "workspaces", len(s.workspaces))
	return nil
}
