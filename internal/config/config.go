// Package config loads the analyze-request settings from flags, environment,
// an optional .env file and an optional configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by the tool
const EnvPrefix = "ANALYZE_REQUEST"

const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

// Config holds the effective settings.
type Config struct {
	// App is the key namespace of the saved request collection.
	App string `mapstructure:"app" yaml:"app" default:"analyze-request"`
	// DataDir holds the JSON files or the SQLite database.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir" default:"~/.analyze-request"`
	// Storage selects the medium: json or sqlite.
	Storage string `mapstructure:"storage" yaml:"storage" default:"json"`
	// TimeoutMs is the default request timeout.
	TimeoutMs int `mapstructure:"timeout_ms" yaml:"timeout_ms" default:"15000"`
	// Proxy is the base URL of a proxy server. Empty executes locally.
	Proxy string `mapstructure:"proxy" yaml:"proxy,omitempty"`
	// Port is the listen port of the proxy server.
	Port int `mapstructure:"port" yaml:"port" default:"5173"`
	Log  struct {
		// Format is text or json.
		Format    string `mapstructure:"format" yaml:"format" default:"text"`
		Verbosity int    `mapstructure:"verbosity" yaml:"verbosity"`
	} `mapstructure:"log" yaml:"log"`
}

// Load reads the configuration into v and decodes it. path names an
// explicit configuration file which must exist; when empty, config.yaml is
// looked up in the default data directory and skipped if missing.
func Load(v *viper.Viper, path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, key := range []string{"app", "data_dir", "storage", "timeout_ms", "proxy", "log.format", "log.verbosity"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if err := v.BindEnv("port", EnvPrefix+"_PORT", "PORT"); err != nil {
		return nil, err
	}

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply configuration defaults: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
		return nil
	}

	dir, err := expandHome("~/.analyze-request")
	if err != nil {
		return nil //nolint:nilerr // no home directory, no default file
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	return nil
}

func (c *Config) normalize() error {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.Storage != StorageJSON && c.Storage != StorageSQLite {
		return fmt.Errorf("invalid storage %q (expected %s or %s)", c.Storage, StorageJSON, StorageSQLite)
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format %q (expected text or json)", c.Log.Format)
	}

	if c.TimeoutMs < 0 {
		return fmt.Errorf("invalid timeout_ms %d", c.TimeoutMs)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	dir, err := expandHome(c.DataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}
	c.DataDir = dir
	c.Proxy = strings.TrimRight(strings.TrimSpace(c.Proxy), "/")

	return nil
}

// YAML renders the effective configuration
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
