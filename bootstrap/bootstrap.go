// Package bootstrap generates a container deployment bundle: a container
// config, a compose file pairing snippad with a Piston engine, and a
// Containerfile.
package bootstrap

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"pkt.systems/snippad/internal/appconfig"
	"pkt.systems/snippad/internal/version"
)

// Files represents generated bootstrap artifacts.
type Files struct {
	ConfigYAML    []byte
	ComposeYAML   []byte
	Containerfile []byte
}

// Options controls optional bootstrap behaviors.
type Options struct {
	ImageTag  string
	Overrides []ConfigOverride
}

// ConfigOverride sets a dotted config path (e.g. "http.base_path") in the
// generated container config.
type ConfigOverride struct {
	Path  string
	Value any
}

// Paths reports where bootstrap wrote its outputs.
type Paths struct {
	ConfigPath        string
	ComposePath       string
	ContainerfilePath string
	StateDir          string
	DropDir           string
}

const (
	containerConfigName = "config-for-container.yaml"
	composeName         = "docker-compose.yaml"
	containerfileName   = "Containerfile.snippad"
	defaultServerImage  = "docker.io/pktsystems/snippad"
	defaultPistonImage  = "ghcr.io/engineer-man/piston:latest"
	containerPistonURL  = "http://piston:2000/api/v2"
)

type templateData struct {
	ConfigFile      string
	HostConfigPath  string
	HostStateDir    string
	HostDropDir     string
	HostPackagesDir string
	ServerImage     string
	PistonImage     string
	HTTPPort        string
	SSHPort         string
}

// ContainerConfig returns the config used inside the snippad container.
func ContainerConfig() (appconfig.Config, error) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		return appconfig.Config{}, err
	}
	cfg.ConfigVersion = appconfig.CurrentConfigVersion
	cfg.StateDir = "/snippad/state"
	cfg.Piston.BaseURL = containerPistonURL
	cfg.Piston.RatePerSecond = 0
	cfg.SSH.HostKeyPath = "/snippad/state/ssh_host_key"
	cfg.Drop.Dir = "/snippad/drop"
	return cfg, nil
}

// Generate renders the bundle for a host directory.
func Generate(rootDir string, opts Options) (Files, error) {
	cfg, err := ContainerConfig()
	if err != nil {
		return Files{}, err
	}
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return Files{}, err
	}
	if configYAML, err = applyOverridesToYAML(configYAML, opts.Overrides); err != nil {
		return Files{}, err
	}
	var effective appconfig.Config
	if err := yaml.Unmarshal(configYAML, &effective); err != nil {
		return Files{}, err
	}
	data := templateData{
		ConfigFile:      containerConfigName,
		HostConfigPath:  filepath.Join(rootDir, containerConfigName),
		HostStateDir:    filepath.Join(rootDir, "state"),
		HostDropDir:     filepath.Join(rootDir, "drop"),
		HostPackagesDir: filepath.Join(rootDir, "piston-packages"),
		ServerImage:     tagImage(defaultServerImage, resolveImageTag(opts.ImageTag)),
		PistonImage:     defaultPistonImage,
		HTTPPort:        portOf(effective.HTTP.Addr, "27580"),
		SSHPort:         portOf(effective.SSH.Addr, "27522"),
	}
	composeYAML, err := renderTemplate("templates/docker-compose.yaml.tmpl", data)
	if err != nil {
		return Files{}, err
	}
	containerfile, err := renderTemplate("templates/Containerfile.snippad.tmpl", data)
	if err != nil {
		return Files{}, err
	}
	return Files{ConfigYAML: configYAML, ComposeYAML: composeYAML, Containerfile: containerfile}, nil
}

// WriteBootstrap renders the bundle into outputDir and creates the host
// directories the compose file mounts.
func WriteBootstrap(outputDir string, overwrite bool, opts Options) (Paths, error) {
	if strings.TrimSpace(outputDir) == "" {
		return Paths{}, fmt.Errorf("output directory is required")
	}
	rootDir, err := filepath.Abs(outputDir)
	if err != nil {
		rootDir = outputDir
	}
	files, err := Generate(rootDir, opts)
	if err != nil {
		return Paths{}, err
	}
	paths := Paths{
		ConfigPath:        filepath.Join(rootDir, containerConfigName),
		ComposePath:       filepath.Join(rootDir, composeName),
		ContainerfilePath: filepath.Join(rootDir, containerfileName),
		StateDir:          filepath.Join(rootDir, "state"),
		DropDir:           filepath.Join(rootDir, "drop"),
	}
	if !overwrite {
		for _, path := range []string{paths.ConfigPath, paths.ComposePath, paths.ContainerfilePath} {
			if _, err := os.Stat(path); err == nil {
				return Paths{}, fmt.Errorf("file already exists: %s", path)
			}
		}
	}
	for _, dir := range []string{rootDir, paths.StateDir, paths.DropDir, filepath.Join(rootDir, "piston-packages")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Paths{}, err
		}
	}
	if err := os.WriteFile(paths.ConfigPath, files.ConfigYAML, 0o644); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.ComposePath, files.ComposeYAML, 0o644); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.ContainerfilePath, files.Containerfile, 0o644); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

// ParseOverride parses a "path=value" flag. The value is decoded as YAML so
// numbers and booleans keep their type.
func ParseOverride(raw string) (ConfigOverride, error) {
	path, value, ok := strings.Cut(raw, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return ConfigOverride{}, fmt.Errorf("invalid override %q: expected path=value", raw)
	}
	var decoded any
	if err := yaml.Unmarshal([]byte(value), &decoded); err != nil {
		return ConfigOverride{}, fmt.Errorf("invalid override %q: %w", raw, err)
	}
	if decoded == nil {
		decoded = ""
	}
	return ConfigOverride{Path: path, Value: decoded}, nil
}

func renderTemplate(name string, data templateData) ([]byte, error) {
	raw, err := readEmbeddedFile(name)
	if err != nil {
		return nil, err
	}
	tpl, err := template.New(filepath.Base(name)).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func applyOverridesToYAML(configYAML []byte, overrides []ConfigOverride) ([]byte, error) {
	if len(overrides) == 0 {
		return configYAML, nil
	}
	var data map[string]any
	if err := yaml.Unmarshal(configYAML, &data); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		if err := setOverrideValue(data, override.Path, override.Value); err != nil {
			return nil, err
		}
	}
	return yaml.Marshal(data)
}

func setOverrideValue(root map[string]any, path string, value any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config override path is required")
	}
	parts := strings.Split(path, ".")
	node := root
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return fmt.Errorf("invalid config override path %q", path)
		}
		if i == len(parts)-1 {
			node[part] = value
			return nil
		}
		next, ok := node[part]
		if !ok || next == nil {
			child := map[string]any{}
			node[part] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("config override %q: %q is not a map", path, part)
		}
		node = child
	}
	return nil
}

func portOf(addr, fallback string) string {
	_, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil || port == "" {
		return fallback
	}
	return port
}

func resolveImageTag(override string) string {
	if value := strings.TrimSpace(override); value != "" {
		return value
	}
	if value := strings.TrimSpace(version.Current()); value != "" {
		return value
	}
	return "latest"
}

func tagImage(base, tag string) string {
	if strings.TrimSpace(tag) == "" {
		tag = "latest"
	}
	return base + ":" + tag
}
