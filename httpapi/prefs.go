package httpapi

import (
	"net/http"

	"pkt.systems/snippad/internal/logx"
	"pkt.systems/snippad/schema"
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.GetSettings(r.Context(), schema.GetSettingsRequest{
			WorkspaceID: workspaceID,
			Language:    schema.Language(r.URL.Query().Get("language")),
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var payload struct {
			FontSize      *int                  `json:"font_size"`
			TabSize       *int                  `json:"tab_size"`
			LineNumbers   *bool                 `json:"line_numbers"`
			Minimap       *bool                 `json:"minimap"`
			WordWrap      *bool                 `json:"word_wrap"`
			AccentColor   *string               `json:"accent_color"`
			Language      string                `json:"language"`
			LanguagePrefs *schema.LanguagePrefs `json:"language_prefs"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.UpdateSettings(r.Context(), schema.UpdateSettingsRequest{
			WorkspaceID:   workspaceID,
			FontSize:      payload.FontSize,
			TabSize:       payload.TabSize,
			LineNumbers:   payload.LineNumbers,
			Minimap:       payload.Minimap,
			WordWrap:      payload.WordWrap,
			AccentColor:   payload.AccentColor,
			Language:      schema.Language(payload.Language),
			LanguagePrefs: payload.LanguagePrefs,
		})
		if err != nil {
			log.Warn("http settings update failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http settings update ok")
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSnippets(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	log := logx.Ctx(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.ListSnippets(r.Context(), schema.ListSnippetsRequest{
			WorkspaceID: workspaceID,
			Language:    schema.Language(r.URL.Query().Get("language")),
		})
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var payload struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Language string `json:"language"`
			Code     string `json:"code"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.SaveSnippet(r.Context(), schema.SaveSnippetRequest{
			WorkspaceID: workspaceID,
			Snippet: schema.Snippet{
				ID:       schema.SnippetID(payload.ID),
				Name:     payload.Name,
				Language: schema.Language(payload.Language),
				Code:     payload.Code,
			},
		})
		if err != nil {
			log.Warn("http snippets save failed", "err", err)
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http snippets save ok", "snippet", resp.Snippet.ID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDeleteSnippet(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var payload struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.DeleteSnippet(r.Context(), schema.DeleteSnippetRequest{
		WorkspaceID: workspaceID,
		SnippetID:   schema.SnippetID(payload.ID),
	})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http snippets delete failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInsertSnippet(w http.ResponseWriter, r *http.Request, workspaceID schema.WorkspaceID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var payload struct {
		FileID    schema.FileID `json:"file_id"`
		SnippetID string        `json:"snippet_id"`
		Offset    *int          `json:"offset"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	offset := -1
	if payload.Offset != nil {
		offset = *payload.Offset
	}
	resp, err := s.service.InsertSnippet(r.Context(), schema.InsertSnippetRequest{
		WorkspaceID: workspaceID,
		FileID:      payload.FileID,
		SnippetID:   schema.SnippetID(payload.SnippetID),
		Offset:      offset,
	})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http snippets insert failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
