package schema

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	StateDir string
	// DebounceDelay coalesces code edits before recomputation.
	DebounceDelay time.Duration
	// HistoryMax caps entries per file; 0 keeps every entry.
	HistoryMax       int
	TerminalMaxLines int
	ExecuteTimeout   time.Duration
	DefaultWorkspace WorkspaceID
}

// Defaults applied by NormalizeServiceConfig.
const (
	DefaultDebounceDelay    = 450 * time.Millisecond
	DefaultHistoryMax       = 500
	DefaultTerminalMaxLines = 2000
	DefaultExecuteTimeout   = 15 * time.Second
	DefaultWorkspace        = WorkspaceID("local")
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".snippad", "state")
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	if cfg.HistoryMax < 0 {
		return ServiceConfig{}, errors.New("history max must not be negative")
	}
	if cfg.HistoryMax == 1 {
		return ServiceConfig{}, errors.New("history max must keep at least two entries")
	}
	if cfg.TerminalMaxLines <= 0 {
		cfg.TerminalMaxLines = DefaultTerminalMaxLines
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = DefaultExecuteTimeout
	}
	if cfg.DefaultWorkspace == "" {
		cfg.DefaultWorkspace = DefaultWorkspace
	}
	if err := ValidateWorkspaceID(cfg.DefaultWorkspace); err != nil {
		return ServiceConfig{}, err
	}
	return cfg, nil
}
