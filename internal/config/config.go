// Package config provides configuration loading and structs for the holokernel server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. HOLO_SERVER_PORT.
const EnvPrefix = "HOLO"

// Config validation errors
var (
	ErrInvalidPort       = errors.New("server.port must be between 1 and 65535")
	ErrInvalidRateLimit  = errors.New("server.rate_limit_rps and rate_limit_burst must not be negative")
	ErrInvalidMetricPath = errors.New("metrics.path must start with /")
	ErrInvalidExtension  = errors.New("watch.extensions entries must start with .")
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Kernel  KernelConfig  `yaml:"kernel"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" split_words:"true"`
	RateLimitBurst int     `yaml:"rate_limit_burst" split_words:"true"`
}

// StorageConfig holds the diagnostic journal location. An empty path disables the journal.
type StorageConfig struct {
	JournalPath string `yaml:"journal_path" split_words:"true"`
}

// KernelConfig holds boot settings.
type KernelConfig struct {
	// RunSelfTest runs the diagnostic harness during boot; defaults to true when unset.
	RunSelfTest *bool  `yaml:"run_self_test" split_words:"true"`
	MemoryKB    uint32 `yaml:"memory_kb" split_words:"true"`
	// Echo mirrors the console to stdout in server mode.
	Echo bool `yaml:"echo"`
}

// SelfTestOrDefault returns whether to run the self test at boot; defaults to true when unset.
func (k *KernelConfig) SelfTestOrDefault() bool {
	if k.RunSelfTest != nil {
		return *k.RunSelfTest
	}
	return true
}

// WatchConfig holds the ingest directory settings. An empty directory disables ingest.
type WatchConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// MetricsConfig holds prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := ApplyEnv(&cfg, filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	if cfg.Storage.JournalPath != "" {
		cfg.Storage.JournalPath = expandPath(cfg.Storage.JournalPath, configDir)
	}
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv loads dotenv (if the file exists) and then overrides cfg fields from
// HOLO_* environment variables. Variables already set in the process win over dotenv.
// Keys follow the struct path (HOLO_SERVER_RATE_LIMIT_RPS); unprefixed variables are never read.
func ApplyEnv(cfg *Config, dotenv string) error {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", dotenv, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

// Validate checks value ranges after defaults have been applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return ErrInvalidRateLimit
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return ErrInvalidMetricPath
	}
	for _, ext := range c.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
		}
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
