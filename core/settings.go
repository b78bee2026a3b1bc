package core

import (
	"context"
	"fmt"
	"regexp"

	"pkt.systems/snippad/schema"
)

var accentColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

func validAccentColor(value string) bool {
	return accentColorPattern.MatchString(value)
}

func validTabSize(size int) bool {
	return size == 2 || size == 4 || size == 8
}

func validateSettings(settings schema.Settings) error {
	if settings.FontSize < 12 || settings.FontSize > 24 {
		return fmt.Errorf("%w: font size %d outside 12..24", schema.ErrInvalidSettings, settings.FontSize)
	}
	if !validTabSize(settings.TabSize) {
		return fmt.Errorf("%w: tab size %d not one of 2, 4, 8", schema.ErrInvalidSettings, settings.TabSize)
	}
	if !validAccentColor(settings.AccentColor) {
		return fmt.Errorf("%w: accent color %q", schema.ErrInvalidSettings, settings.AccentColor)
	}
	return nil
}

func (s *service) GetSettings(ctx context.Context, req schema.GetSettingsRequest) (schema.GetSettingsResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.GetSettingsResponse{}, err
	}
	defer s.mu.Unlock()
	resp := schema.GetSettingsResponse{Settings: ws.settings}
	if req.Language != "" {
		if _, ok := schema.LookupLanguage(req.Language); !ok {
			return schema.GetSettingsResponse{}, schema.ErrInvalidLanguage
		}
		var prefs schema.LanguagePrefs
		if s.loadJSON(log, ws.id, prefsKey(req.Language), &prefs) {
			resp.LanguagePrefs = &prefs
		}
	}
	return resp, nil
}

func (s *service) UpdateSettings(ctx context.Context, req schema.UpdateSettingsRequest) (schema.UpdateSettingsResponse, error) {
	ws, log, err := s.begin(ctx, req.WorkspaceID)
	if err != nil {
		return schema.UpdateSettingsResponse{}, err
	}
	next := ws.settings
	if req.FontSize != nil {
		next.FontSize = *req.FontSize
	}
	if req.TabSize != nil {
		next.TabSize = *req.TabSize
	}
	if req.LineNumbers != nil {
		next.LineNumbers = *req.LineNumbers
	}
	if req.Minimap != nil {
		next.Minimap = *req.Minimap
	}
	if req.WordWrap != nil {
		next.WordWrap = *req.WordWrap
	}
	if req.AccentColor != nil {
		next.AccentColor = *req.AccentColor
	}
	if err := validateSettings(next); err != nil {
		s.mu.Unlock()
		log.Warn("service settings update rejected", "err", err)
		return schema.UpdateSettingsResponse{}, err
	}
	if req.LanguagePrefs != nil {
		if _, ok := schema.LookupLanguage(req.Language); !ok {
			s.mu.Unlock()
			return schema.UpdateSettingsResponse{}, schema.ErrInvalidLanguage
		}
		if req.LanguagePrefs.TabSize != 0 && !validTabSize(req.LanguagePrefs.TabSize) {
			s.mu.Unlock()
			return schema.UpdateSettingsResponse{}, fmt.Errorf("%w: tab size %d not one of 2, 4, 8", schema.ErrInvalidSettings, req.LanguagePrefs.TabSize)
		}
	}

	out := newOutbox(ws)
	accentChanged := next.AccentColor != ws.settings.AccentColor
	ws.settings = next
	out.setJSON(log, keySettings, next)
	if accentChanged {
		out.set(keyAccentColor, next.AccentColor)
	}
	if req.LanguagePrefs != nil {
		out.setJSON(log, prefsKey(req.Language), *req.LanguagePrefs)
	}
	s.mu.Unlock()

	s.flush(log, out)
	log.Debug("service settings updated", "font_size", next.FontSize, "tab_size", next.TabSize, "accent", next.AccentColor)
	return schema.UpdateSettingsResponse{Settings: next}, nil
}
