package httpapi

import (
	"net/http"

	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

// previewCSP runs preview scripts in an opaque origin so they cannot reach
// the API with the session cookie.
const previewCSP = "sandbox allow-scripts"

// ExportFileName is the download name of the exported document.
const ExportFileName = "snippad.html"

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	var payload struct {
		FileID schema.FileID `json:"file_id"`
		Wait   bool          `json:"wait"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.Run(r.Context(), schema.RunRequest{
		WorkspaceID: workspaceID,
		FileID:      payload.FileID,
		Wait:        payload.Wait,
	})
	if err != nil {
		log.Warn("http run failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http run ok", "file", int(resp.Result.FileID), "status", resp.Result.Status, "generation", resp.Result.Generation)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	resp, err := s.service.GetResult(r.Context(), schema.GetResultRequest{
		WorkspaceID: workspaceID,
		FileID:      queryFileID(r),
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearOutput(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var payload fileRef
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.ClearOutput(r.Context(), schema.ClearOutputRequest{
		WorkspaceID: workspaceID,
		FileID:      payload.FileID,
	})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http output clear failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearCode(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.ClearCode(r.Context(), schema.ClearCodeRequest{WorkspaceID: workspaceID})
	if err != nil {
		log.Warn("http clear failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http clear ok", "files", len(resp.Files))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	resp, err := s.service.Preview(r.Context(), schema.PreviewRequest{WorkspaceID: workspaceID})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http preview failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Security-Policy", previewCSP)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(resp.Document))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.Export(r.Context(), schema.ExportRequest{WorkspaceID: workspaceID})
	if err != nil {
		log.Warn("http export failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	name := resp.FileName
	if name == "" {
		name = ExportFileName
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(resp.Document))
	log.Info("http export ok", "bytes", len(resp.Document))
}

func (s *Server) handleRuntimes(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	resp, err := s.service.ListRuntimes(r.Context(), schema.ListRuntimesRequest{})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefreshRuntimes(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.RefreshRuntimes(r.Context(), schema.RefreshRuntimesRequest{})
	if err != nil {
		log.Warn("http runtimes refresh failed", "err", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http runtimes refresh ok", "count", len(resp.Runtimes))
}
