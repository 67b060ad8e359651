// Package config loads the rpcroi configuration from YAML and resolves the
// SRTM cache location once at startup.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/beetlebugorg/rpcroi/pkg/srtm"
	"gopkg.in/yaml.v3"
)

// Oracle modes.
const (
	OracleNative = "native" // In-process raster reads
	OracleExec   = "exec"   // srtm4 binaries
)

// DefaultCacheSubdir is the cache directory under the user's home when
// SRTM4_CACHE is unset.
const DefaultCacheSubdir = ".srtm4"

// Config represents the application configuration loaded from YAML
type Config struct {
	// SRTM tile archive and local cache
	SRTM struct {
		// URL is the archive root serving {tile}.zip
		URL string `yaml:"url"`

		// CacheDir holds the extracted {tile}.tif files. Empty means
		// $SRTM4_CACHE, else ~/.srtm4
		CacheDir string `yaml:"cacheDir"`

		// Timeout bounds one download attempt
		Timeout time.Duration `yaml:"timeout"`

		// Attempts is the number of download attempts per tile
		Attempts int `yaml:"attempts"`

		// RetryDelay is the pause after the first failed attempt
		RetryDelay time.Duration `yaml:"retryDelay"`
	} `yaml:"srtm"`

	// Elevation lookup
	Oracle struct {
		// Mode is "native" or "exec"
		Mode string `yaml:"mode"`

		// ElevationBinary and TileBinary are used in exec mode
		ElevationBinary string `yaml:"elevationBinary"`
		TileBinary      string `yaml:"tileBinary"`

		// WorkDir is the working directory of the binaries
		WorkDir string `yaml:"workDir"`

		// MaxTiles bounds decoded tiles held in memory in native mode
		MaxTiles int64 `yaml:"maxTiles"`
	} `yaml:"oracle"`

	// Workers bounds parallel elevation queries and tile fetches
	Workers int `yaml:"workers"`

	Log struct {
		// Level is debug, info, warn or error
		Level string `yaml:"level"`

		// Format is text or json
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.SRTM.URL = srtm.DefaultBaseURL
	cfg.SRTM.Timeout = 2 * time.Minute
	cfg.SRTM.Attempts = 3
	cfg.SRTM.RetryDelay = time.Second

	cfg.Oracle.Mode = OracleNative
	cfg.Oracle.ElevationBinary = srtm.DefaultElevationBinary
	cfg.Oracle.TileBinary = srtm.DefaultTileBinary
	cfg.Oracle.MaxTiles = 4

	cfg.Workers = runtime.NumCPU()

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Oracle.Mode {
	case OracleNative, OracleExec:
	default:
		return fmt.Errorf("unknown oracle mode %q (want %s or %s)", c.Oracle.Mode, OracleNative, OracleExec)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format)
	}
	return nil
}

// Resolve fills the cache directory from the environment when it is not set:
// $SRTM4_CACHE first, else ~/.srtm4. lookupEnv is os.LookupEnv outside tests.
func (c *Config) Resolve(lookupEnv func(string) (string, bool)) error {
	if c.SRTM.CacheDir != "" {
		return nil
	}
	if dir, ok := lookupEnv(srtm.CacheEnv); ok && dir != "" {
		c.SRTM.CacheDir = dir
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve srtm cache directory: %w", err)
	}
	c.SRTM.CacheDir = filepath.Join(home, DefaultCacheSubdir)
	return nil
}

// CacheOptions returns the tile cache settings.
func (c *Config) CacheOptions(logger *slog.Logger) srtm.CacheOptions {
	opts := srtm.DefaultCacheOptions()
	opts.Dir = c.SRTM.CacheDir
	opts.BaseURL = c.SRTM.URL
	opts.Timeout = c.SRTM.Timeout
	opts.Attempts = c.SRTM.Attempts
	opts.RetryDelay = c.SRTM.RetryDelay
	opts.Workers = c.Workers
	opts.Logger = logger
	if c.Oracle.Mode == OracleExec {
		opts.Locator = &srtm.ExecTileLocator{Binary: c.Oracle.TileBinary}
	}
	return opts
}

// NewLogger builds the structured logger described by the log section.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
