package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/snippad/internal/piston"
	"pkt.systems/snippad/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Service       ServiceConfig `mapstructure:"service" yaml:"service"`
	Piston        PistonConfig  `mapstructure:"piston" yaml:"piston"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Drop          DropConfig    `mapstructure:"drop" yaml:"drop"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ServiceConfig controls core service behavior.
type ServiceConfig struct {
	DebounceMS       int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	HistoryMax       int    `mapstructure:"history_max" yaml:"history_max"`
	TerminalMaxLines int    `mapstructure:"terminal_max_lines" yaml:"terminal_max_lines"`
	ExecuteTimeoutS  int    `mapstructure:"execute_timeout_s" yaml:"execute_timeout_s"`
	DefaultWorkspace string `mapstructure:"default_workspace" yaml:"default_workspace"`
}

// PistonConfig configures the remote execution client.
type PistonConfig struct {
	BaseURL       string  `mapstructure:"base_url" yaml:"base_url"`
	RuntimesPath  string  `mapstructure:"runtimes_path" yaml:"runtimes_path"`
	ExecutePath   string  `mapstructure:"execute_path" yaml:"execute_path"`
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`
	Retries       int     `mapstructure:"retries" yaml:"retries"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr             string  `mapstructure:"addr" yaml:"addr"`
	SessionCookie    string  `mapstructure:"session_cookie" yaml:"session_cookie"`
	SessionTTLHours  int     `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url"`
	BasePath         string  `mapstructure:"base_path" yaml:"base_path"`
	RunRatePerSecond float64 `mapstructure:"run_rate_per_second" yaml:"run_rate_per_second"`
	RunBurst         int     `mapstructure:"run_burst" yaml:"run_burst"`
}

// SSHConfig configures the SSH server.
type SSHConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr        string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath string `mapstructure:"host_key_path" yaml:"host_key_path"`
	Theme       string `mapstructure:"theme" yaml:"theme"`
}

// DropConfig configures the watched import folder. An empty Dir disables it.
type DropConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`
	Workspace string `mapstructure:"workspace" yaml:"workspace"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".snippad", "state"),
		Service: ServiceConfig{
			DebounceMS:       int(schema.DefaultDebounceDelay / time.Millisecond),
			HistoryMax:       schema.DefaultHistoryMax,
			TerminalMaxLines: schema.DefaultTerminalMaxLines,
			ExecuteTimeoutS:  int(schema.DefaultExecuteTimeout / time.Second),
			DefaultWorkspace: schema.DefaultWorkspace,
		},
		Piston: PistonConfig{
			BaseURL:       piston.DefaultBaseURL,
			RuntimesPath:  piston.DefaultRuntimesPath,
			ExecutePath:   piston.DefaultExecutePath,
			RatePerSecond: 4,
			Burst:         4,
			Retries:       2,
		},
		HTTP: HTTPConfig{
			Addr:             ":27580",
			SessionCookie:    "snippad_session",
			SessionTTLHours:  720,
			BaseURL:          "",
			BasePath:         "",
			RunRatePerSecond: 2,
			RunBurst:         5,
		},
		SSH: SSHConfig{
			Enabled:     true,
			Addr:        ":27522",
			HostKeyPath: filepath.Join(home, ".snippad", "ssh_host_key"),
			Theme:       "outrun",
		},
		Drop: DropConfig{
			Dir:       "",
			Workspace: schema.DefaultWorkspace,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".snippad", "config.yaml"), nil
}

// CoreConfig converts the service section into the core service config.
func (c Config) CoreConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		StateDir:         c.StateDir,
		DebounceDelay:    time.Duration(c.Service.DebounceMS) * time.Millisecond,
		HistoryMax:       c.Service.HistoryMax,
		TerminalMaxLines: c.Service.TerminalMaxLines,
		ExecuteTimeout:   time.Duration(c.Service.ExecuteTimeoutS) * time.Second,
		DefaultWorkspace: schema.WorkspaceID(c.Service.DefaultWorkspace),
	}
}

// PistonClientConfig converts the piston section into a client config.
func (c Config) PistonClientConfig() piston.Config {
	retry := piston.DefaultRetryConfig()
	retry.MaxRetries = c.Piston.Retries
	return piston.Config{
		BaseURL:       c.Piston.BaseURL,
		RuntimesPath:  c.Piston.RuntimesPath,
		ExecutePath:   c.Piston.ExecutePath,
		RatePerSecond: c.Piston.RatePerSecond,
		Burst:         c.Piston.Burst,
		Retry:         retry,
	}
}
