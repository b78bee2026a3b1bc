package core

import "pkt.systems/snippad/schema"

// file is one editable document in a workspace.
type file struct {
	ID       schema.FileID
	Name     string
	Language schema.Language
	Code     string
}

// Snapshot returns a transport-friendly view of the file.
func (f *file) Snapshot(active bool) schema.FileSnapshot {
	return schema.FileSnapshot{
		ID:       f.ID,
		Name:     f.Name,
		Language: f.Language,
		Code:     f.Code,
		Mode:     schema.ModeFor(f.Language),
		Active:   active,
	}
}
