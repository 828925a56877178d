package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ServerConfig holds settings for the stdio tool server.
type ServerConfig struct {
	// Name is the server name reported during protocol initialization.
	Name string `mapstructure:"name" yaml:"name"`
}

// SearchConfig holds defaults for mailbox search operations.
type SearchConfig struct {
	// MaxResults caps the number of messages returned by a search
	// when the caller does not specify a limit.
	MaxResults int `mapstructure:"max_results" yaml:"max_results"`
}

// BatchConfig holds settings for chunked bulk operations.
type BatchConfig struct {
	// ChunkSize is how many identifiers are sent per bulk request.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// CacheConfig holds settings for the local message-summary cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// DataDir is where the account registry, active-account marker,
	// credential files, and summary cache live.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Search SearchConfig `mapstructure:"search" yaml:"search"`
	Batch  BatchConfig  `mapstructure:"batch" yaml:"batch"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailbridge/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailbridge", "config.yaml")
}

// DefaultDataDir returns the default data directory,
// ~/.config/mailbridge.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailbridge")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DataDir: DefaultDataDir(),
		Server:  ServerConfig{Name: "mailbridge"},
		Search:  SearchConfig{MaxResults: 50},
		Batch:   BatchConfig{ChunkSize: 50},
		Cache:   CacheConfig{Enabled: true},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// Environment variables prefixed with MAILBRIDGE_ override file values.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILBRIDGE")
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("server.name", "mailbridge")
	v.SetDefault("search.max_results", 50)
	v.SetDefault("batch.chunk_size", 50)
	v.SetDefault("cache.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Search.MaxResults < 1 {
		cfg.Search.MaxResults = 50
	}
	if cfg.Batch.ChunkSize < 1 {
		cfg.Batch.ChunkSize = 50
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

	v.Set("data_dir", cfg.DataDir)
	v.Set("server", cfg.Server)
	v.Set("search", cfg.Search)
	v.Set("batch", cfg.Batch)
	v.Set("cache", cfg.Cache)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
