package schema

import (
	"fmt"
	"path"
	"strings"
)

// ValidateWorkspaceID ensures a workspace id matches [A-Za-z0-9._-] with no
// normalization and a length of at most 64.
func ValidateWorkspaceID(id WorkspaceID) error {
	raw := string(id)
	if raw == "" || len(raw) > 64 {
		return ErrInvalidWorkspace
	}
	if raw == "." || raw == ".." {
		return ErrInvalidWorkspace
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return ErrInvalidWorkspace
	}
	return nil
}

// ResolveNewFileName derives the name of a new file of the given language.
// An empty request becomes untitled.<ext>. A name that does not already end
// in .<ext> loses any trailing extension and gains .<ext>.
func ResolveNewFileName(lang Language, requested string) (string, error) {
	spec, ok := LookupLanguage(lang)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}
	suffix := "." + spec.Ext
	name := strings.TrimSpace(requested)
	if name == "" {
		return "untitled" + suffix, nil
	}
	if !strings.HasSuffix(name, suffix) {
		name = strings.TrimSuffix(name, path.Ext(name)) + suffix
	}
	if strings.TrimSpace(strings.TrimSuffix(name, suffix)) == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

// NormalizeRenameName trims a rename target and rejects blank names.
func NormalizeRenameName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyName
	}
	return trimmed, nil
}
