package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/linemap/pkg/cache"
	"github.com/Sumatoshi-tech/linemap/pkg/config"
	"github.com/Sumatoshi-tech/linemap/pkg/observability"
	"github.com/Sumatoshi-tech/linemap/pkg/resolver"
	"github.com/Sumatoshi-tech/linemap/pkg/version"
)

// stdinArg selects standard input as the flattened source.
const stdinArg = "-"

// Environment variables honored when the config file leaves telemetry unset.
const (
	envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
)

// binarySniffLength is how many leading bytes are checked for a NUL.
const binarySniffLength = 8000

// ErrBinaryInput is returned when the input looks like binary data.
var ErrBinaryInput = errors.New("input looks binary")

// session bundles what a command needs to run: configuration, telemetry
// providers and a resolver wired to both.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.REDMetrics
	cache     *cache.MapperCache
	resolver  *resolver.Resolver
}

// open loads configuration and initializes telemetry for cmd. tune may
// adjust the observability config before providers are built.
func (g *globalFlags) open(cmd *cobra.Command, mode observability.AppMode, tune func(*config.Config, *observability.Config)) (*session, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	applyColor(cfg.Output.Color)

	obsCfg, err := g.observabilityConfig(cmd, cfg, mode)
	if err != nil {
		return nil, err
	}

	if tune != nil {
		tune(cfg, &obsCfg)
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	sess := &session{cfg: cfg, providers: providers}

	sess.metrics, err = observability.NewREDMetrics(providers.Meter)
	if err != nil {
		sess.close()

		return nil, err
	}

	cacheBytes, err := cfg.CacheBytes()
	if err != nil {
		sess.close()

		return nil, err
	}

	sess.cache = cache.New(cfg.Cache.MaxEntries, cacheBytes)

	sess.resolver, err = resolver.New(resolver.Options{
		Pattern:      cfg.Scanner.Pattern,
		MatchTimeout: cfg.Scanner.MatchTimeout,
		TopLevel:     cfg.Scanner.TopLevelFile,
		Cache:        sess.cache,
		Tracer:       providers.Tracer,
		Metrics:      sess.metrics,
		Logger:       providers.Logger,
	})
	if err != nil {
		sess.close()

		return nil, err
	}

	return sess, nil
}

func (g *globalFlags) observabilityConfig(
	cmd *cobra.Command, cfg *config.Config, mode observability.AppMode,
) (observability.Config, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	switch {
	case g.verbose:
		level = slog.LevelDebug
	case g.quiet:
		level = slog.LevelWarn
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.LogWriter = cmd.ErrOrStderr()
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv(envOTLPEndpoint)
		obsCfg.OTLPInsecure = obsCfg.OTLPInsecure || os.Getenv(envOTLPInsecure) == "true"
	}

	if obsCfg.OTLPHeaders == nil {
		obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(envOTLPHeaders))
	}

	return obsCfg, nil
}

// close flushes telemetry. Failures are logged, not returned.
func (s *session) close() {
	if s.cache != nil {
		stats := s.cache.Stats()
		s.providers.Logger.Debug("cache stats",
			"hits", stats.Hits,
			"misses", stats.Misses,
			"hit_rate", stats.HitRate(),
			"entries", stats.Entries,
		)
	}

	shutdownErr := s.providers.Shutdown(context.Background())
	if shutdownErr != nil {
		s.providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
	}
}

// format returns the flag value, or the configured format when the flag is empty.
func (s *session) format(flag string) string {
	if flag != "" {
		return flag
	}

	return s.cfg.Output.Format
}

// applyColor forces coloured output on or off. Auto leaves detection to fatih/color.
func applyColor(mode string) {
	switch mode {
	case config.ColorAlways:
		color.NoColor = false
	case config.ColorNever:
		color.NoColor = true
	}
}

// readInput returns the flattened text named by arg, reading stdin for "-".
func readInput(cmd *cobra.Command, arg string) (string, error) {
	var (
		data []byte
		err  error
	)

	if arg == stdinArg {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(arg)
	}

	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}

	if bytes.IndexByte(data[:min(len(data), binarySniffLength)], 0) >= 0 {
		return "", fmt.Errorf("%w: %s", ErrBinaryInput, arg)
	}

	return string(data), nil
}
