package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

const (
	maxImportSize     = 8 << 20
	maxImportFileSize = 1 << 20
)

type fileRef struct {
	FileID schema.FileID `json:"file_id"`
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.GetWorkspace(r.Context(), schema.GetWorkspaceRequest{WorkspaceID: workspaceID})
	if err != nil {
		log.Warn("http workspace failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http workspace ok", "files", len(resp.Workspace.Files))
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"languages": schema.Languages()})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	log := logx.Ctx(r.Context())
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.ListFiles(ctx, schema.ListFilesRequest{WorkspaceID: workspaceID})
		if err != nil {
			log.Warn("http files list failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http files list ok", "count", len(resp.Files))
	case http.MethodPost:
		var payload struct {
			Language string `json:"language"`
			Name     string `json:"name"`
			Seed     string `json:"seed"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http files decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.CreateFile(ctx, schema.CreateFileRequest{
			WorkspaceID: workspaceID,
			Language:    schema.Language(payload.Language),
			Name:        payload.Name,
			Seed:        schema.FileSeed(payload.Seed),
		})
		if err != nil {
			log.Warn("http files create failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http files create ok", "file", int(resp.File.ID), "name", resp.File.Name)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		FileID schema.FileID `json:"file_id"`
		Name   string        `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.RenameFile(r.Context(), schema.RenameFileRequest{
		WorkspaceID: workspaceID,
		FileID:      payload.FileID,
		Name:        payload.Name,
	})
	if err != nil {
		log.Warn("http files rename failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http files rename ok", "file", int(resp.File.ID), "duplicate", resp.Duplicate)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	var payload fileRef
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.DeleteFile(r.Context(), schema.DeleteFileRequest{
		WorkspaceID: workspaceID,
		FileID:      payload.FileID,
	})
	if err != nil {
		log.Warn("http files delete failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http files delete ok", "file", int(resp.File.ID), "active", int(resp.ActiveFile))
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		FileID schema.FileID `json:"file_id"`
		Code   string        `json:"code"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.UpdateCode(r.Context(), schema.UpdateCodeRequest{
		WorkspaceID: workspaceID,
		FileID:      payload.FileID,
		Code:        payload.Code,
	})
	if err != nil {
		log.Warn("http files code failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Trace("http files code ok", "file", int(resp.File.ID), "bytes", len(payload.Code))
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.ReorderFile(r.Context(), schema.ReorderFileRequest{
		WorkspaceID: workspaceID,
		From:        payload.From,
		To:          payload.To,
	})
	if err != nil {
		log.Warn("http files reorder failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http files reorder ok", "from", payload.From, "to", payload.To)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	var payload fileRef
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.ActivateFile(r.Context(), schema.ActivateFileRequest{
		WorkspaceID: workspaceID,
		FileID:      payload.FileID,
	})
	if err != nil {
		log.Warn("http files activate failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http files activate ok", "file", int(resp.File.ID))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var payload fileRef
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.Undo(r.Context(), schema.UndoRequest{WorkspaceID: workspaceID, FileID: payload.FileID})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http files undo failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var payload fileRef
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.Redo(r.Context(), schema.RedoRequest{WorkspaceID: workspaceID, FileID: payload.FileID})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http files redo failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleImport accepts multipart uploads in the "files" field; every part is
// imported as its own file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		log.Warn("http files import parse failed", "err", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: no files uploaded", schema.ErrInvalidRequest))
		return
	}
	imported := make([]schema.FileSnapshot, 0, len(parts))
	var failures []string
	var firstErr error
	for _, part := range parts {
		data, err := readPart(part)
		if err == nil {
			var resp schema.ImportFileResponse
			resp, err = s.service.ImportFile(r.Context(), schema.ImportFileRequest{
				WorkspaceID: workspaceID,
				Name:        part.Filename,
				Data:        data,
			})
			if err == nil {
				imported = append(imported, resp.File)
				continue
			}
		}
		log.Warn("http files import failed", "name", part.Filename, "err", err)
		failures = append(failures, fmt.Sprintf("%s: %v", part.Filename, err))
		if firstErr == nil {
			firstErr = err
		}
	}
	if len(imported) == 0 && firstErr != nil {
		writeError(w, statusFor(firstErr), firstErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": imported, "errors": failures})
	log.Info("http files import ok", "imported", len(imported), "failed", len(failures))
}

var errImportTooLarge = fmt.Errorf("%w: file exceeds 1MB limit", schema.ErrInvalidRequest)

func readPart(part *multipart.FileHeader) ([]byte, error) {
	if part.Size > maxImportFileSize {
		return nil, errImportTooLarge
	}
	f, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, maxImportFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImportFileSize {
		return nil, errImportTooLarge
	}
	return data, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	resp, err := s.service.SearchFiles(r.Context(), schema.SearchFilesRequest{
		WorkspaceID: workspaceID,
		Query:       r.URL.Query().Get("q"),
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	resp, err := s.service.GetHistory(r.Context(), schema.GetHistoryRequest{
		WorkspaceID: workspaceID,
		FileID:      queryFileID(r),
	})
	if err != nil {
		if !errors.Is(err, schema.ErrFileNotFound) {
			logx.Ctx(r.Context()).Warn("http history failed", "err", err)
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
