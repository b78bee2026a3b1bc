package schema

// FileEventType describes file lifecycle or state changes.
type FileEventType string

const (
	// FileEventCreated indicates a file was created.
	FileEventCreated FileEventType = "created"
	// FileEventImported indicates a file was imported from outside.
	FileEventImported FileEventType = "imported"
	// FileEventDeleted indicates a file was deleted.
	FileEventDeleted FileEventType = "deleted"
	// FileEventRenamed indicates a file was renamed.
	FileEventRenamed FileEventType = "renamed"
	// FileEventUpdated indicates a file's code changed.
	FileEventUpdated FileEventType = "updated"
	// FileEventActivated indicates a file became active.
	FileEventActivated FileEventType = "activated"
	// FileEventReordered indicates the file order changed.
	FileEventReordered FileEventType = "reordered"
	// FileEventCleared indicates every file's code was cleared.
	FileEventCleared FileEventType = "cleared"
)

// FileEvent represents a change to a file or the file list.
type FileEvent struct {
	WorkspaceID WorkspaceID
	Type        FileEventType
	File        FileSnapshot
	ActiveFile  FileID
	Order       []FileID
}

// ResultEvent represents a new or replaced run result.
type ResultEvent struct {
	WorkspaceID WorkspaceID
	Result      RunResult
}

// TerminalEvent represents appended terminal lines.
type TerminalEvent struct {
	WorkspaceID WorkspaceID
	Lines       []string
	Cleared     bool
}
