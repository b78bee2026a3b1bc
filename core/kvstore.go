package core

import "pkt.systems/snippad/schema"

// KVStore is the per-workspace string key-value capability used for
// preferences, snippets and the last edited code per language.
type KVStore interface {
	Get(ws schema.WorkspaceID, key string) (string, bool, error)
	Set(ws schema.WorkspaceID, key, value string) error
	Delete(ws schema.WorkspaceID, key string) error
}

// workspaceDeleter is implemented by stores that can drop a whole workspace.
type workspaceDeleter interface {
	DeleteWorkspace(ws schema.WorkspaceID) error
}

// Stable storage keys.
const (
	keySettings     = "settings"
	keyAccentColor  = "accent-color"
	keyUserSnippets = "user-snippets"
	keyFiles        = "files"
)

func codeKey(lang schema.Language) string {
	return "code:" + string(lang)
}

func prefsKey(lang schema.Language) string {
	return "prefs:" + string(lang)
}
