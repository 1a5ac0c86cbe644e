// Package config loads catsync configuration from file, environment, and
// defaults using viper.
//
// Precedence: environment variables (CATSYNC_*) over the config file
// (.catsync/config.yaml by default) over built-in defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	// DBPath is the SQLite database file for the local replica.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// APIBaseURL is the remote catalog service base URL.
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`

	// AccessToken authenticates catalog API requests.
	AccessToken string `mapstructure:"access_token" yaml:"access_token"`

	// PageSize is the full-sync page size.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// SyncInterval is how often the daemon runs an incremental sync.
	SyncInterval time.Duration `mapstructure:"sync_interval" yaml:"sync_interval"`

	// DashboardPort is the websocket dashboard listen port.
	DashboardPort int `mapstructure:"dashboard_port" yaml:"dashboard_port"`

	// LogFile, when set, routes daemon logs to a rotating file instead
	// of stderr.
	LogFile string `mapstructure:"log_file" yaml:"log_file"`
}

// DefaultDir is where the config file and database live by default.
const DefaultDir = ".catsync"

// Load reads configuration from path (a directory containing config.yaml)
// plus CATSYNC_* environment variables. A missing config file is fine;
// defaults and environment still apply.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("db_path", filepath.Join(dir, "catalog.db"))
	v.SetDefault("api_base_url", "https://connect.joylabs.io")
	v.SetDefault("page_size", 1000)
	v.SetDefault("sync_interval", 5*time.Minute)
	v.SetDefault("dashboard_port", 8080)

	v.SetEnvPrefix("CATSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// FilePath returns the config file path inside dir, whether or not the
// file exists. The daemon watches this path for hot reloads.
func FilePath(dir string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, "config.yaml")
}

// Render returns the effective configuration as YAML with the access
// token redacted, for `catsync config show`.
func (c *Config) Render() (string, error) {
	redacted := *c
	if redacted.AccessToken != "" {
		redacted.AccessToken = "[redacted]"
	}
	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(out), nil
}
