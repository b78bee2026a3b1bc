package core

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"pkt.systems/snippad/schema"
)

func isBuiltinSnippet(id schema.SnippetID) bool {
	_, ok := builtinSnippet(id)
	return ok
}

func builtinSnippet(id schema.SnippetID) (schema.Snippet, bool) {
	for _, snippet := range builtinSnippets {
		if snippet.ID == id {
			return snippet, true
		}
	}
	return schema.Snippet{}, false
}

func (ws *workspace) snippet(id schema.SnippetID) (schema.Snippet, bool) {
	if snippet, ok := builtinSnippet(id); ok {
		return snippet, true
	}
	for _, snippet := range ws.snippets {
		if snippet.ID == id {
			return snippet, true
		}
	}
	return schema.Snippet{}, false
}

func (s *service) ListSnippets(ctx context.Context, req schema.ListSnippetsRequest) (schema.ListSnippetsResponse, error) {
	ws, _, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.ListSnippetsResponse{}, err
	}
	defer s.mu.Unlock()
	all := append(append([]schema.Snippet(nil), builtinSnippets...), ws.snippets...)
	if req.Language == "" {
		return schema.ListSnippetsResponse{Snippets: all}, nil
	}
	filtered := make([]schema.Snippet, 0, len(all))
	for _, snippet := range all {
		if snippet.Language == req.Language {
			filtered = append(filtered, snippet)
		}
	}
	return schema.ListSnippetsResponse{Snippets: filtered}, nil
}

func (s *service) SaveSnippet(ctx context.Context, req schema.SaveSnippetRequest) (schema.SaveSnippetResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.SaveSnippetResponse{}, err
	}
	snippet := req.Snippet
	snippet.Name = strings.TrimSpace(snippet.Name)
	snippet.BuiltIn = false
	if snippet.Name == "" || strings.TrimSpace(snippet.Code) == "" {
		s.mu.Unlock()
		log.Warn("service snippet save rejected", "err", schema.ErrInvalidSnippet)
		return schema.SaveSnippetResponse{}, schema.ErrInvalidSnippet
	}
	if _, ok := schema.LookupLanguage(snippet.Language); !ok {
		s.mu.Unlock()
		log.Warn("service snippet save rejected", "language", snippet.Language, "err", schema.ErrInvalidLanguage)
		return schema.SaveSnippetResponse{}, schema.ErrInvalidLanguage
	}
	switch {
	case snippet.ID == "":
		snippet.ID = schema.SnippetID("user-" + uuid.NewString())
		ws.snippets = append(ws.snippets, snippet)
	case isBuiltinSnippet(snippet.ID):
		s.mu.Unlock()
		log.Warn("service snippet save rejected", "snippet", snippet.ID, "err", schema.ErrSnippetReadOnly)
		return schema.SaveSnippetResponse{}, schema.ErrSnippetReadOnly
	default:
		found := false
		for i := range ws.snippets {
			if ws.snippets[i].ID == snippet.ID {
				ws.snippets[i] = snippet
				found = true
				break
			}
		}
		if !found {
			s.mu.Unlock()
			return schema.SaveSnippetResponse{}, schema.ErrSnippetNotFound
		}
	}
	out := newOutbox(ws)
	out.setJSON(log, keyUserSnippets, ws.snippets)
	s.mu.Unlock()

	s.flush(log, out)
	log.Info("service snippet saved", "snippet", snippet.ID, "name", snippet.Name)
	return schema.SaveSnippetResponse{Snippet: snippet}, nil
}

func (s *service) DeleteSnippet(ctx context.Context, req schema.DeleteSnippetRequest) (schema.DeleteSnippetResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.DeleteSnippetResponse{}, err
	}
	if isBuiltinSnippet(req.SnippetID) {
		s.mu.Unlock()
		log.Warn("service snippet delete rejected", "snippet", req.SnippetID, "err", schema.ErrSnippetReadOnly)
		return schema.DeleteSnippetResponse{}, schema.ErrSnippetReadOnly
	}
	idx := -1
	for i, snippet := range ws.snippets {
		if snippet.ID == req.SnippetID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return schema.DeleteSnippetResponse{}, schema.ErrSnippetNotFound
	}
	removed := ws.snippets[idx]
	ws.snippets = append(ws.snippets[:idx], ws.snippets[idx+1:]...)
	out := newOutbox(ws)
	out.setJSON(log, keyUserSnippets, ws.snippets)
	s.mu.Unlock()

	s.flush(log, out)
	log.Info("service snippet deleted", "snippet", removed.ID)
	return schema.DeleteSnippetResponse{Snippet: removed}, nil
}

// InsertSnippet splices snippet code into a file through the regular edit path.
func (s *service) InsertSnippet(ctx context.Context, req schema.InsertSnippetRequest) (schema.InsertSnippetResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.InsertSnippetResponse{}, err
	}
	snippet, ok := ws.snippet(req.SnippetID)
	if !ok {
		s.mu.Unlock()
		return schema.InsertSnippetResponse{}, schema.ErrSnippetNotFound
	}
	f, err := ws.resolve(req.FileID)
	if err != nil {
		s.mu.Unlock()
		return schema.InsertSnippetResponse{}, err
	}
	offset := req.Offset
	if offset < 0 || offset > len(f.Code) {
		offset = len(f.Code)
	}
	out := newOutbox(ws)
	s.updateCodeLocked(log, ws, f, f.Code[:offset]+snippet.Code+f.Code[offset:], out)
	snap := f.Snapshot(f.ID == ws.active)
	s.mu.Unlock()

	s.flush(log, out)
	log.Debug("service snippet inserted", "snippet", snippet.ID, "file", int(f.ID), "offset", offset)
	return schema.InsertSnippetResponse{File: snap}, nil
}
