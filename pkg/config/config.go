// Package config provides YAML and environment based configuration for linemap.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Sentinel validation errors.
var (
	ErrInvalidFormat      = errors.New("invalid output format")
	ErrInvalidColorMode   = errors.New("invalid color mode")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidCacheSize   = errors.New("invalid cache size")
	ErrInvalidCacheCount  = errors.New("cache max entries must not be negative")
	ErrInvalidTimeout     = errors.New("match timeout must be positive")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config holds all configuration for linemap.
type Config struct {
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Index     IndexConfig     `mapstructure:"index"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ScannerConfig controls directive recognition.
type ScannerConfig struct {
	// Pattern overrides the default directive pattern when non-empty.
	Pattern      string        `mapstructure:"pattern"`
	TopLevelFile string        `mapstructure:"top_level_file"`
	MatchTimeout time.Duration `mapstructure:"match_timeout"`
}

// CacheConfig bounds the cache of built mappers.
type CacheConfig struct {
	// MaxSize is a human readable byte size such as "256MB".
	MaxSize    string `mapstructure:"max_size"`
	MaxEntries int    `mapstructure:"max_entries"`
}

// IndexConfig controls persisted index snapshots.
type IndexConfig struct {
	Compress bool `mapstructure:"compress"`
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  string `mapstructure:"color"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !slices.Contains([]string{FormatText, FormatJSON, FormatYAML}, c.Output.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	if !slices.Contains([]string{ColorAuto, ColorAlways, ColorNever}, c.Output.Color) {
		return fmt.Errorf("%w: %q", ErrInvalidColorMode, c.Output.Color)
	}

	_, err := c.LogLevel()
	if err != nil {
		return err
	}

	_, err = c.CacheBytes()
	if err != nil {
		return err
	}

	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheCount, c.Cache.MaxEntries)
	}

	if c.Scanner.MatchTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Scanner.MatchTimeout)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.ToUpper(c.Logging.Level)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return level, nil
}

// CacheBytes parses the cache size. An empty size means no byte bound.
func (c *Config) CacheBytes() (int64, error) {
	if c.Cache.MaxSize == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(c.Cache.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidCacheSize, c.Cache.MaxSize, err)
	}

	if size > uint64(maxCacheBytes) {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidCacheSize, c.Cache.MaxSize, humanize.IBytes(uint64(maxCacheBytes)))
	}

	return int64(size), nil
}
