// Package config provides configuration management for restack using Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"restack/internal/paths"
)

// AppName is the application name used for config file naming.
const AppName = paths.AppName

// DefaultProbeTimeout bounds each server validation handshake.
const DefaultProbeTimeout = 10 * time.Second

// Config represents the top-level configuration structure.
type Config struct {
	Version       int           `mapstructure:"version" yaml:"version"`
	StackRoot     string        `mapstructure:"stack_root" yaml:"stack_root"`
	PackagesDir   string        `mapstructure:"packages_dir" yaml:"packages_dir"`
	DesktopConfig string        `mapstructure:"desktop_config" yaml:"desktop_config"`
	Manifest      string        `mapstructure:"manifest" yaml:"manifest"`
	NodeBin       string        `mapstructure:"node_bin" yaml:"node_bin"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	// Config file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".") // Current directory
	viper.AddConfigPath(paths.ConfigDir())

	// Environment variable support
	viper.SetEnvPrefix("RESTACK")
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("version", 1)
	viper.SetDefault("stack_root", paths.DefaultStackRoot())
	viper.SetDefault("packages_dir", paths.DefaultPackagesDir())
	viper.SetDefault("desktop_config", paths.DesktopConfigPath())
	viper.SetDefault("manifest", "")
	viper.SetDefault("node_bin", "node")
	viper.SetDefault("probe_timeout", DefaultProbeTimeout)
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations.
// Returns the loaded configuration or default values if no file is found (when path is empty).
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		// If config file not found...
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// If user specified a path, this is an error
			if path != "" {
				return nil, fmt.Errorf("config file not found at %s: %w", path, err)
			}
			// Otherwise (implicit load), it's fine to use defaults
		} else {
			// Real read error (parsing, permissions, etc)
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Config files written by hand often use ~ for the home directory.
	for _, p := range []*string{&cfg.StackRoot, &cfg.PackagesDir, &cfg.DesktopConfig, &cfg.Manifest} {
		expanded, err := paths.ExpandHome(*p)
		if err != nil {
			return nil, fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}

	return &cfg, nil
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Version:       1,
		StackRoot:     paths.DefaultStackRoot(),
		PackagesDir:   paths.DefaultPackagesDir(),
		DesktopConfig: paths.DesktopConfigPath(),
		NodeBin:       "node",
		ProbeTimeout:  DefaultProbeTimeout,
	}
}
