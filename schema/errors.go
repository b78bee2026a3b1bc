package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidWorkspace indicates an invalid workspace identifier.
	ErrInvalidWorkspace = errors.New("invalid workspace")
	// ErrFileNotFound indicates a requested file could not be found.
	ErrFileNotFound = errors.New("file not found")
	// ErrEmptyName indicates a file name with nothing before its extension.
	ErrEmptyName = errors.New("file name is empty")
	// ErrDuplicateName indicates another file already uses the name.
	ErrDuplicateName = errors.New("file name already exists")
	// ErrLastFile indicates an attempt to delete the only remaining file.
	ErrLastFile = errors.New("cannot delete the last file")
	// ErrInvalidLanguage indicates an unsupported language tag.
	ErrInvalidLanguage = errors.New("invalid language")
	// ErrInvalidIndex indicates a reorder index outside the file list.
	ErrInvalidIndex = errors.New("invalid file index")
	// ErrInvalidSettings indicates editor settings outside the allowed range.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrInvalidSnippet indicates a snippet without a name or code.
	ErrInvalidSnippet = errors.New("snippet name and code are required")
	// ErrSnippetNotFound indicates a requested snippet could not be found.
	ErrSnippetNotFound = errors.New("snippet not found")
	// ErrSnippetReadOnly indicates an attempt to change a built-in snippet.
	ErrSnippetReadOnly = errors.New("built-in snippets are read-only")
	// ErrRuntimeNotFound indicates no runtime serves a language.
	ErrRuntimeNotFound = errors.New("runtime not found")
	// ErrExecutorUnavailable indicates no remote executor is configured.
	ErrExecutorUnavailable = errors.New("executor not configured")
)

// IsValidation reports whether err is a caller error that blocks an action.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidWorkspace),
		errors.Is(err, ErrEmptyName),
		errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrLastFile),
		errors.Is(err, ErrInvalidLanguage),
		errors.Is(err, ErrInvalidIndex),
		errors.Is(err, ErrInvalidSettings),
		errors.Is(err, ErrInvalidSnippet),
		errors.Is(err, ErrSnippetReadOnly):
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err refers to a missing file or snippet.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrSnippetNotFound)
}
