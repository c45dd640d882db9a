// Package config handles configuration loading and validation for codegraph.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is the default configuration file name (without extension).
	DefaultConfigFile = ".codegraph"
	// DefaultConfigType is the default configuration file type.
	DefaultConfigType = "yaml"
)

// Config holds all configuration for codegraph.
type Config struct {
	// Store contains graph storage configuration.
	Store StoreConfig `mapstructure:"store" yaml:"store"`
	// Spool contains extractor spool configuration.
	Spool SpoolConfig `mapstructure:"spool" yaml:"spool"`
	// Query contains query execution configuration.
	Query QueryConfig `mapstructure:"query" yaml:"query"`
	// Resolver contains name resolution configuration.
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
}

// StoreConfig holds graph storage configuration.
type StoreConfig struct {
	// Path is the directory holding the embedded database.
	Path string `mapstructure:"path" yaml:"path"`
}

// SpoolConfig holds extractor spool configuration.
type SpoolConfig struct {
	// Dir is the directory extractors drop batch files into.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Exclude lists gitignore-style patterns for spool entries to skip.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// QueryConfig holds query execution configuration.
type QueryConfig struct {
	// DefaultLimit caps SELECT results when the query has no LIMIT clause.
	// Zero means unlimited.
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit"`
}

// ResolverConfig holds name resolution configuration.
type ResolverConfig struct {
	// CacheSize is the resolution cache capacity in entries.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
}

// Load loads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Check if a specific config file was set via CLI flag (stored in global viper)
	globalViper := viper.GetViper()
	if configFile := globalViper.GetString("config_file"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigFile)
		v.SetConfigType(DefaultConfigType)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CODEGRAPH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.Query.DefaultLimit < 0 {
		return fmt.Errorf("query default_limit must be non-negative, got %d", c.Query.DefaultLimit)
	}
	if c.Resolver.CacheSize <= 0 {
		return fmt.Errorf("resolver cache_size must be positive, got %d", c.Resolver.CacheSize)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", ".codegraph/graph")

	v.SetDefault("spool.dir", ".codegraph/spool")
	v.SetDefault("spool.exclude", []string{
		"tmp-*",
		"*.partial",
	})

	v.SetDefault("query.default_limit", 100)

	v.SetDefault("resolver.cache_size", 512)
}
