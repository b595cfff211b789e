// Package config handles configuration loading for vargo.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for vargo.
type Config struct {
	Verus VerusConfig `mapstructure:"verus"`
	Log   LogConfig   `mapstructure:"log"`
	// Color is the cargo color choice: auto, always or never.
	Color string `mapstructure:"color"`
}

// VerusConfig holds verifier settings.
type VerusConfig struct {
	// Path overrides where the verus binary is found.
	Path string `mapstructure:"path"`
	// Flags are extra shell-quoted flags passed to every verus run.
	Flags string `mapstructure:"flags"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	// File is the debug log path. Empty disables logging.
	File string `mapstructure:"file"`
}

// EnvConfigFile names a config file that replaces the user and project
// files.
const EnvConfigFile = "VARGO_CONFIG"

// Load loads configuration from XDG paths, project overrides, and environment variables.
// When VARGO_CONFIG is set, only that file is read (see LoadFromPath).
// Precedence (highest to lowest):
// 1. Environment variables (VERUS_PATH, VERUS_FLAGS, VARGO_LOG, CARGO_TERM_COLOR)
// 2. Project config (.vargo.yaml in current directory or parent)
// 3. User config (~/.config/vargo/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return LoadFromPath(path)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file. The file must
// exist. Environment variables still take precedence over it.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Verus.Path = os.ExpandEnv(cfg.Verus.Path)
	cfg.Log.File = os.ExpandEnv(cfg.Log.File)
	return cfg, nil
}

// bindEnv maps the environment variables vargo honors onto config keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("verus.path", "VERUS_PATH")
	_ = v.BindEnv("verus.flags", "VERUS_FLAGS")
	_ = v.BindEnv("log.file", "VARGO_LOG")
	_ = v.BindEnv("color", "CARGO_TERM_COLOR")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("verus.path", "")
	v.SetDefault("verus.flags", "")
	v.SetDefault("log.file", "")
	// cargo captures the wrapper's output, so color is forced on unless
	// the user opts out.
	v.SetDefault("color", "always")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{Color: "always"}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// getUserConfigDir returns the XDG config directory for vargo.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vargo")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vargo")
	}
	return filepath.Join(home, ".config", "vargo")
}

// findProjectConfig searches for .vargo.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".vargo.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
