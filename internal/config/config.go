// Package config loads the codevisor configuration from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "codevisor"

type Config struct {
	Service  ServiceConfig  `yaml:"service" validate:"required"`
	Playback PlaybackConfig `yaml:"playback" validate:"required"`
	Server   ServerConfig   `yaml:"server" validate:"required"`
	Export   ExportConfig   `yaml:"export" validate:"required"`
	Limits   Limits         `yaml:"limits" validate:"required"`
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// ServiceConfig points the client at the analysis service.
type ServiceConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"required,min=100ms,max=10m"`
}

type PlaybackConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval" validate:"required,min=10ms,max=1m"`
	ClearOnSubmit bool          `yaml:"clear_on_submit"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr" validate:"required,hostname_port|startswith=:"`
	AllowedOrigin string `yaml:"allowed_origin" validate:"required"`
	CacheDir      string `yaml:"cache_dir"`
}

type ExportConfig struct {
	Dir    string `yaml:"dir" validate:"required"`
	Naming string `yaml:"naming" validate:"oneof=uuid timestamp descriptive"`
}

func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 10 * time.Second,
		},
		Playback: PlaybackConfig{
			TickInterval:  time.Second,
			ClearOnSubmit: true,
		},
		Server: ServerConfig{
			Addr:          ":5000",
			AllowedOrigin: "*",
		},
		Export: ExportConfig{
			Dir:    filepath.Join(dataHome(), appName),
			Naming: "timestamp",
		},
		Limits:   DefaultLimits(),
		LogLevel: "info",
	}
}

// Load reads the config file if there is one, then applies .env and
// environment overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	return LoadFile(Path())
}

func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Path resolves the config file location: CODEVISOR_CONFIG, then
// $XDG_CONFIG_HOME/codevisor/config.yaml, then ~/.config/codevisor/config.yaml.
func Path() string {
	if path := os.Getenv("CODEVISOR_CONFIG"); path != "" {
		return expandTilde(path)
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName, "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, "config.yaml")
}

func dataHome() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return xdgData
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CODEVISOR_SERVICE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("CODEVISOR_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CODEVISOR_CACHE_DIR"); v != "" {
		c.Server.CacheDir = v
	}
	if v := os.Getenv("CODEVISOR_EXPORT_DIR"); v != "" {
		c.Export.Dir = v
	}
	if v := os.Getenv("CODEVISOR_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// expandTilde expands a leading ~/ to the user's home directory.
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) validate() error {
	c.Export.Dir = expandTilde(c.Export.Dir)
	c.Server.CacheDir = expandTilde(c.Server.CacheDir)

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Save writes c as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
