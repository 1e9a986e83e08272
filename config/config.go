package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"mit.edu/dsg/heapdb/common"
)

// Config holds every process-wide setting of the storage engine. The page size in particular is
// fixed for the lifetime of a Database: all heap files and the buffer pool share it.
type Config struct {
	Storage struct {
		PageSize    int    `mapstructure:"page_size"`
		DataDir     string `mapstructure:"data_dir"`
		CatalogFile string `mapstructure:"catalog_file"`
	} `mapstructure:"storage"`

	BufferPool struct {
		NumPages    int           `mapstructure:"num_pages"`
		LockTimeout time.Duration `mapstructure:"lock_timeout"`
	} `mapstructure:"buffer_pool"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

const envPrefix = "HEAPDB"

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.page_size", common.DefaultPageSize)
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.catalog_file", "catalog.json")
	v.SetDefault("buffer_pool.num_pages", 50)
	v.SetDefault("buffer_pool.lock_timeout", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration made only of defaults and HEAPDB_* environment overrides.
func Default() (*Config, error) {
	return decode(newViper())
}

// Load reads a YAML configuration file. Keys missing from the file fall back to defaults, and
// HEAPDB_* environment variables (e.g. HEAPDB_STORAGE_PAGE_SIZE) take precedence over both.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Storage.PageSize <= 0 {
		return common.NewError(common.IllegalArgumentError, "storage.page_size must be positive, got %d", c.Storage.PageSize)
	}
	if c.BufferPool.NumPages <= 0 {
		return common.NewError(common.IllegalArgumentError, "buffer_pool.num_pages must be positive, got %d", c.BufferPool.NumPages)
	}
	if c.BufferPool.LockTimeout <= 0 {
		return common.NewError(common.IllegalArgumentError, "buffer_pool.lock_timeout must be positive")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return common.NewError(common.IllegalArgumentError, "log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, common.NewError(common.IllegalArgumentError, "unknown log level %q", level)
}

// NewLogger builds the structured logger described by the configuration, writing to stderr.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stderr)
}

// NewLoggerTo is NewLogger with an explicit destination.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DiscardLogger is the logger components fall back to when none is injected.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
