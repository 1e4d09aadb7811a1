package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".linemap"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for linemap settings.
const envPrefix = "LINEMAP"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, .linemap.yaml is searched in CWD and $HOME.
// A missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		Scanner: ScannerConfig{
			Pattern:      DefaultScannerPattern,
			TopLevelFile: DefaultScannerTopLevelFile,
			MatchTimeout: DefaultScannerMatchTimeout,
		},
		Cache: CacheConfig{
			MaxEntries: DefaultCacheMaxEntries,
			MaxSize:    DefaultCacheMaxSize,
		},
		Index:   IndexConfig{Compress: DefaultIndexCompress},
		Output:  OutputConfig{Format: DefaultOutputFormat, Color: DefaultOutputColor},
		Logging: LoggingConfig{Level: DefaultLoggingLevel, JSON: DefaultLoggingJSON},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: DefaultTelemetryOTLPEndpoint,
			OTLPInsecure: DefaultTelemetryOTLPInsecure,
			SampleRatio:  DefaultTelemetrySampleRatio,
			MetricsAddr:  DefaultTelemetryMetricsAddr,
		},
	}
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("scanner.pattern", DefaultScannerPattern)
	viperCfg.SetDefault("scanner.top_level_file", DefaultScannerTopLevelFile)
	viperCfg.SetDefault("scanner.match_timeout", DefaultScannerMatchTimeout)

	viperCfg.SetDefault("cache.max_entries", DefaultCacheMaxEntries)
	viperCfg.SetDefault("cache.max_size", DefaultCacheMaxSize)

	viperCfg.SetDefault("index.compress", DefaultIndexCompress)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.color", DefaultOutputColor)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultTelemetryOTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", DefaultTelemetryOTLPInsecure)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)
	viperCfg.SetDefault("telemetry.metrics_addr", DefaultTelemetryMetricsAddr)
}
