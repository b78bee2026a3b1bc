package schema

// Requests addressing a single file treat FileID 0 as "the active file".

// File store.

// ListFilesRequest describes a request to list files.
type ListFilesRequest struct {
	WorkspaceID WorkspaceID
}

// ListFilesResponse reports files in order and the active file.
type ListFilesResponse struct {
	Files      []FileSnapshot `json:"files"`
	ActiveFile FileID         `json:"active_file"`
}

// GetFileRequest describes a request to read one file.
type GetFileRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
}

// GetFileResponse reports a file snapshot.
type GetFileResponse struct {
	File FileSnapshot `json:"file"`
}

// FileSeed selects the initial code of a new file.
type FileSeed string

const (
	// SeedEmpty starts the file with no code.
	SeedEmpty FileSeed = ""
	// SeedTemplate starts the file with the language template.
	SeedTemplate FileSeed = "template"
	// SeedLastCode starts the file with the last code edited in that language.
	SeedLastCode FileSeed = "last"
)

// CreateFileRequest describes a request to create a file.
type CreateFileRequest struct {
	WorkspaceID WorkspaceID
	Language    Language
	Name        string
	Seed        FileSeed
}

// CreateFileResponse reports the created file.
type CreateFileResponse struct {
	File FileSnapshot `json:"file"`
}

// DeleteFileRequest describes a request to delete a file.
type DeleteFileRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
}

// DeleteFileResponse reports the deleted file and the new active file.
type DeleteFileResponse struct {
	File       FileSnapshot `json:"file"`
	ActiveFile FileID       `json:"active_file"`
}

// RenameFileRequest describes a request to rename a file.
type RenameFileRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
	Name        string
}

// RenameFileResponse reports the renamed file. Duplicate is set when another
// file already carries the same name; the rename is applied regardless.
type RenameFileResponse struct {
	File      FileSnapshot `json:"file"`
	Duplicate bool         `json:"duplicate"`
}

// UpdateCodeRequest describes a code edit.
type UpdateCodeRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
	Code        string
}

// UpdateCodeResponse reports the updated file and its history position.
type UpdateCodeResponse struct {
	File    FileSnapshot    `json:"file"`
	History HistorySnapshot `json:"history"`
}

// ReorderFileRequest moves the file at From to index To.
type ReorderFileRequest struct {
	WorkspaceID WorkspaceID
	From        int
	To          int
}

// ReorderFileResponse reports the resulting order.
type ReorderFileResponse struct {
	Order []FileID `json:"order"`
}

// ActivateFileRequest describes a request to change the active file.
type ActivateFileRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
}

// ActivateFileResponse reports the active file and its last result.
type ActivateFileResponse struct {
	File   FileSnapshot `json:"file"`
	Result RunResult    `json:"result"`
}

// SearchFilesRequest describes a fuzzy name search.
type SearchFilesRequest struct {
	WorkspaceID WorkspaceID
	Query       string
}

// SearchFilesResponse reports matching files, best match first.
type SearchFilesResponse struct {
	Files []FileSnapshot `json:"files"`
}

// ImportFileRequest describes a file imported from outside the workspace.
type ImportFileRequest struct {
	WorkspaceID WorkspaceID
	Name        string
	Data        []byte
}

// ImportFileResponse reports the imported file.
type ImportFileResponse struct {
	File FileSnapshot `json:"file"`
}

// ClearCodeRequest describes a request to empty every file.
type ClearCodeRequest struct {
	WorkspaceID WorkspaceID
}

// ClearCodeResponse reports the cleared files.
type ClearCodeResponse struct {
	Files []FileSnapshot `json:"files"`
}

// Edit history.

// UndoRequest describes an undo on a file.
type UndoRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
}

// UndoResponse reports whether the file changed.
type UndoResponse struct {
	File    FileSnapshot    `json:"file"`
	History HistorySnapshot `json:"history"`
	Applied bool            `json:"applied"`
}

// RedoRequest describes a redo on a file.
type RedoRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
}

// RedoResponse reports whether the file changed.
type RedoResponse struct {
	File    FileSnapshot    `json:"file"`
	History HistorySnapshot `json:"history"`
	Applied bool            `json:"applied"`
}

// GetHistoryRequest describes a request to read a file's history.
type GetHistoryRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
}

// GetHistoryResponse reports the file's history.
type GetHistoryResponse struct {
	History HistorySnapshot `json:"history"`
}

// Run orchestration.

// RunRequest triggers an immediate recomputation for a file.
type RunRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
	// Wait blocks until the run settles or the context ends.
	Wait bool
}

// RunResponse reports the file's result after the trigger (or after it
// settled when Wait was set).
type RunResponse struct {
	Result RunResult `json:"result"`
}

// GetResultRequest describes a request to read a file's last result.
type GetResultRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
}

// GetResultResponse reports the file's last result.
type GetResultResponse struct {
	Result RunResult `json:"result"`
}

// ClearOutputRequest describes a request to blank a file's output.
type ClearOutputRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
}

// ClearOutputResponse reports the blanked result.
type ClearOutputResponse struct {
	Result RunResult `json:"result"`
}

// ExecuteRequest runs a file remotely without touching its stored result.
// Language overrides the file's language when set.
type ExecuteRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
	Language    Language
}

// ExecuteResponse reports the classified outcome.
type ExecuteResponse struct {
	Result RunResult `json:"result"`
}

// PreviewRequest describes a request for the composed preview document.
type PreviewRequest struct {
	WorkspaceID WorkspaceID
}

// PreviewResponse carries the composed document.
type PreviewResponse struct {
	Document string `json:"document"`
}

// ExportRequest describes a request to export the composed document.
type ExportRequest struct {
	WorkspaceID WorkspaceID
}

// ExportResponse carries the export file name and contents.
type ExportResponse struct {
	FileName string `json:"file_name"`
	Document string `json:"document"`
}

// Runtimes.

// ListRuntimesRequest describes a request for cached runtimes.
type ListRuntimesRequest struct{}

// ListRuntimesResponse reports the cached runtimes.
type ListRuntimesResponse struct {
	Runtimes []Runtime `json:"runtimes"`
}

// RefreshRuntimesRequest describes a request to refetch runtimes.
type RefreshRuntimesRequest struct{}

// RefreshRuntimesResponse reports the refreshed runtimes.
type RefreshRuntimesResponse struct {
	Runtimes []Runtime `json:"runtimes"`
}

// Settings and snippets.

// GetSettingsRequest describes a request for editor settings.
type GetSettingsRequest struct {
	WorkspaceID WorkspaceID
	Language    Language
}

// GetSettingsResponse reports editor settings and optional language prefs.
type GetSettingsResponse struct {
	Settings      Settings       `json:"settings"`
	LanguagePrefs *LanguagePrefs `json:"language_prefs,omitempty"`
}

// UpdateSettingsRequest applies the non-nil fields.
type UpdateSettingsRequest struct {
	WorkspaceID   WorkspaceID
	FontSize      *int
	TabSize       *int
	LineNumbers   *bool
	Minimap       *bool
	WordWrap      *bool
	AccentColor   *string
	Language      Language
	LanguagePrefs *LanguagePrefs
}

// UpdateSettingsResponse reports the stored settings.
type UpdateSettingsResponse struct {
	Settings Settings `json:"settings"`
}

// ListSnippetsRequest describes a snippet listing, optionally per language.
type ListSnippetsRequest struct {
	WorkspaceID WorkspaceID
	Language    Language
}

// ListSnippetsResponse reports built-in and user snippets.
type ListSnippetsResponse struct {
	Snippets []Snippet `json:"snippets"`
}

// SaveSnippetRequest adds (empty ID) or edits a user snippet.
type SaveSnippetRequest struct {
	WorkspaceID WorkspaceID
	Snippet     Snippet
}

// SaveSnippetResponse reports the stored snippet.
type SaveSnippetResponse struct {
	Snippet Snippet `json:"snippet"`
}

// DeleteSnippetRequest describes a request to delete a user snippet.
type DeleteSnippetRequest struct {
	WorkspaceID WorkspaceID
	SnippetID   SnippetID
}

// DeleteSnippetResponse reports the deleted snippet.
type DeleteSnippetResponse struct {
	Snippet Snippet `json:"snippet"`
}

// InsertSnippetRequest inserts snippet code into a file at a byte offset.
// A negative offset appends.
type InsertSnippetRequest struct {
	WorkspaceID WorkspaceID
	FileID      FileID
	SnippetID   SnippetID
	Offset      int
}

// InsertSnippetResponse reports the edited file.
type InsertSnippetResponse struct {
	File FileSnapshot `json:"file"`
}

// Terminal.

// AppendTerminalRequest appends lines to the workspace terminal.
type AppendTerminalRequest struct {
	WorkspaceID WorkspaceID
	Lines       []string
}

// AppendTerminalResponse reports the number of lines appended.
type AppendTerminalResponse struct {
	Appended int `json:"appended"`
}

// GetTerminalRequest describes a request for the terminal scrollback.
type GetTerminalRequest struct {
	WorkspaceID WorkspaceID
	Limit       int
}

// GetTerminalResponse reports the terminal scrollback.
type GetTerminalResponse struct {
	Terminal TerminalSnapshot `json:"terminal"`
}

// ClearTerminalRequest describes a request to empty the terminal.
type ClearTerminalRequest struct {
	WorkspaceID WorkspaceID
}

// ClearTerminalResponse is empty.
type ClearTerminalResponse struct{}

// GetWorkspaceRequest describes a request for the full workspace state.
type GetWorkspaceRequest struct {
	WorkspaceID WorkspaceID
}

// GetWorkspaceResponse reports the full workspace state.
type GetWorkspaceResponse struct {
	Workspace WorkspaceSnapshot `json:"workspace"`
}

// ReleaseWorkspaceRequest drops a workspace from memory. Purge also deletes
// its stored keys.
type ReleaseWorkspaceRequest struct {
	WorkspaceID WorkspaceID
	Purge       bool
}

// ReleaseWorkspaceResponse reports whether the workspace was loaded.
type ReleaseWorkspaceResponse struct {
	Released bool `json:"released"`
}
