package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr" yaml:"addr"`

	ReadTimeoutSec     int `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeoutSec    int `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything in RAM.
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
}

// TasksConfig holds domain policy switches.
type TasksConfig struct {
	// RequireSubtasksCompleted rejects completing a task while any of its
	// subtasks is still open. Off by default.
	RequireSubtasksCompleted bool `mapstructure:"require_subtasks_completed" yaml:"require_subtasks_completed"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Stdout       bool   `mapstructure:"stdout" yaml:"stdout"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Tasks     TasksConfig     `mapstructure:"tasks" yaml:"tasks"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// envPrefix namespaces environment overrides, e.g. SUPERTODO_SERVER_ADDR.
const envPrefix = "SUPERTODO"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/supertodo/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "supertodo", "config.yaml")
}

// DefaultStorePath returns the default database location,
// ~/.local/share/supertodo/tasks.db.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "tasks.db")
	}
	return filepath.Join(home, ".local", "share", "supertodo", "tasks.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:               ":8080",
			ReadTimeoutSec:     15,
			WriteTimeoutSec:    15,
			ShutdownTimeoutSec: 10,
		},
		Store: StoreConfig{Path: DefaultStorePath()},
		Log:   LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout_sec", d.Server.ReadTimeoutSec)
	v.SetDefault("server.write_timeout_sec", d.Server.WriteTimeoutSec)
	v.SetDefault("server.shutdown_timeout_sec", d.Server.ShutdownTimeoutSec)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tasks.require_subtasks_completed", false)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and SUPERTODO_* environment
// variables still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)
	v.Set("tasks", cfg.Tasks)
	v.Set("telemetry", cfg.Telemetry)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
