package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/snippad/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("service.debounce_ms", cfg.Service.DebounceMS)
	v.SetDefault("service.history_max", cfg.Service.HistoryMax)
	v.SetDefault("service.terminal_max_lines", cfg.Service.TerminalMaxLines)
	v.SetDefault("service.execute_timeout_s", cfg.Service.ExecuteTimeoutS)
	v.SetDefault("service.default_workspace", cfg.Service.DefaultWorkspace)
	v.SetDefault("piston.base_url", cfg.Piston.BaseURL)
	v.SetDefault("piston.runtimes_path", cfg.Piston.RuntimesPath)
	v.SetDefault("piston.execute_path", cfg.Piston.ExecutePath)
	v.SetDefault("piston.rate_per_second", cfg.Piston.RatePerSecond)
	v.SetDefault("piston.burst", cfg.Piston.Burst)
	v.SetDefault("piston.retries", cfg.Piston.Retries)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.session_cookie", cfg.HTTP.SessionCookie)
	v.SetDefault("http.session_ttl_hours", cfg.HTTP.SessionTTLHours)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.run_rate_per_second", cfg.HTTP.RunRatePerSecond)
	v.SetDefault("http.run_burst", cfg.HTTP.RunBurst)
	v.SetDefault("ssh.enabled", cfg.SSH.Enabled)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.theme", cfg.SSH.Theme)
	v.SetDefault("drop.dir", cfg.Drop.Dir)
	v.SetDefault("drop.workspace", cfg.Drop.Workspace)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return err
	}
	if cfg.Service.HistoryMax < 0 || cfg.Service.HistoryMax == 1 {
		return fmt.Errorf("service.history_max must be 0 (unbounded) or at least 2")
	}
	if cfg.Service.DebounceMS < 0 {
		return fmt.Errorf("service.debounce_ms must not be negative")
	}
	if ws := strings.TrimSpace(cfg.Service.DefaultWorkspace); ws != "" {
		if err := schema.ValidateWorkspaceID(schema.WorkspaceID(ws)); err != nil {
			return fmt.Errorf("service.default_workspace: %w", err)
		}
	}
	if cfg.Drop.Dir != "" {
		if err := schema.ValidateWorkspaceID(schema.WorkspaceID(cfg.Drop.Workspace)); err != nil {
			return fmt.Errorf("drop.workspace: %w", err)
		}
	}
	base := strings.TrimSpace(cfg.Piston.BaseURL)
	if base != "" {
		parsed, err := url.Parse(base)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("piston.base_url must be an http(s) URL")
		}
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.base_url must include scheme and host (e.g. https://example.com)")
		}
	}
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.Drop.Dir = expandEnv(cfg.Drop.Dir)
	cfg.Piston.BaseURL = expandEnv(cfg.Piston.BaseURL)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
