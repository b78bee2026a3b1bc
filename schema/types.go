package schema

import "time"

// WorkspaceID identifies an isolated set of files.
type WorkspaceID string

// FileID identifies a file within a workspace.
type FileID int

// Language is the language tag attached to a file.
type Language string

// SnippetID identifies a stored snippet.
type SnippetID string

// Classification describes how a run output should be interpreted.
type Classification string

const (
	// ClassSuccess marks output produced on stdout without errors.
	ClassSuccess Classification = "success"
	// ClassError marks failed runs, resolution failures and transport errors.
	ClassError Classification = "error"
	// ClassInfo marks previews, placeholders and empty output.
	ClassInfo Classification = "info"
)

// RunMode selects how the active file is turned into output.
type RunMode string

const (
	// RunModePreview composes html, css and javascript into one document.
	RunModePreview RunMode = "preview"
	// RunModeRemote submits code to the remote execution service.
	RunModeRemote RunMode = "remote"
)

// RunStatus tracks the lifecycle of a file's last run.
type RunStatus string

const (
	// RunStatusIdle indicates nothing has been computed yet.
	RunStatusIdle RunStatus = "idle"
	// RunStatusRunning indicates a remote request is in flight.
	RunStatusRunning RunStatus = "running"
	// RunStatusSuccess indicates the last run produced stdout.
	RunStatusSuccess RunStatus = "success"
	// RunStatusError indicates the last run failed.
	RunStatusError RunStatus = "error"
	// RunStatusInfo indicates a preview or empty output.
	RunStatusInfo RunStatus = "info"
)

// StatusFor maps a classification onto its terminal run status.
func StatusFor(class Classification) RunStatus {
	switch class {
	case ClassSuccess:
		return RunStatusSuccess
	case ClassError:
		return RunStatusError
	default:
		return RunStatusInfo
	}
}

// Runtime describes a language the remote execution service can run.
type Runtime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases,omitempty"`
	Runtime  string   `json:"runtime,omitempty"`
}

// Matches reports whether the runtime serves the language tag.
func (r Runtime) Matches(language Language) bool {
	tag := string(language)
	if tag == "" {
		return false
	}
	if r.Language == tag {
		return true
	}
	for _, alias := range r.Aliases {
		if alias == tag {
			return true
		}
	}
	return false
}

// Settings holds global editor preferences.
type Settings struct {
	FontSize    int    `json:"font_size"`
	TabSize     int    `json:"tab_size"`
	LineNumbers bool   `json:"line_numbers"`
	Minimap     bool   `json:"minimap"`
	WordWrap    bool   `json:"word_wrap"`
	AccentColor string `json:"accent_color"`
}

// DefaultSettings returns the editor defaults.
func DefaultSettings() Settings {
	return Settings{
		FontSize:    14,
		TabSize:     2,
		LineNumbers: true,
		Minimap:     false,
		WordWrap:    true,
		AccentColor: DefaultAccentColor,
	}
}

// DefaultAccentColor is the UI accent used until the user picks another.
const DefaultAccentColor = "#a78bfa"

// LanguagePrefs holds per-language editor preferences.
type LanguagePrefs struct {
	TabSize  int  `json:"tab_size,omitempty"`
	WordWrap bool `json:"word_wrap,omitempty"`
}

// Snippet is a reusable piece of code.
type Snippet struct {
	ID       SnippetID `json:"id"`
	Name     string    `json:"name"`
	Language Language  `json:"language"`
	Code     string    `json:"code"`
	BuiltIn  bool      `json:"built_in,omitempty"`
}

// RunResult is the last computed output for a file.
type RunResult struct {
	FileID         FileID         `json:"file_id"`
	Output         string         `json:"output"`
	Classification Classification `json:"classification"`
	Status         RunStatus      `json:"status"`
	Mode           RunMode        `json:"mode,omitempty"`
	Generation     uint64         `json:"generation"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
