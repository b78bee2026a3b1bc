package schema

// FileSnapshot is a read-only view of a file for transports.
type FileSnapshot struct {
	ID       FileID   `json:"id"`
	Name     string   `json:"name"`
	Language Language `json:"language"`
	Code     string   `json:"code"`
	Mode     RunMode  `json:"mode"`
	Active   bool     `json:"active"`
}

// HistorySnapshot describes a file's undo/redo position.
type HistorySnapshot struct {
	FileID  FileID   `json:"file_id"`
	Entries []string `json:"entries"`
	Cursor  int      `json:"cursor"`
	CanUndo bool     `json:"can_undo"`
	CanRedo bool     `json:"can_redo"`
	// Diff is a unified diff from the previous entry to the current one.
	Diff string `json:"diff,omitempty"`
}

// TerminalSnapshot represents the terminal scrollback view.
type TerminalSnapshot struct {
	Lines      []string `json:"lines"`
	TotalLines int      `json:"total_lines"`
}

// WorkspaceSnapshot seeds a client with the full workspace state.
type WorkspaceSnapshot struct {
	WorkspaceID WorkspaceID          `json:"workspace_id"`
	Files       []FileSnapshot       `json:"files"`
	ActiveFile  FileID               `json:"active_file"`
	Results     map[FileID]RunResult `json:"results"`
	Settings    Settings             `json:"settings"`
	Runtimes    int                  `json:"runtimes"`
}
