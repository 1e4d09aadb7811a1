package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/linemap/pkg/config"
	"github.com/Sumatoshi-tech/linemap/pkg/mcp"
	"github.com/Sumatoshi-tech/linemap/pkg/observability"
)

const (
	metricsPath          = "/metrics"
	metricsHeaderTimeout = 5 * time.Second
	metricsStopTimeout   = 5 * time.Second
)

func newMCPCommand(flags *globalFlags) *cobra.Command {
	var (
		debug       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the mapper as tools that AI agents can discover and
invoke:
  - linemap_map: Map flattened lines to their inclusion stacks
  - linemap_records: List the directive records of a flattened text

With --metrics-addr, RED metrics are also served for Prometheus at /metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			var addr string

			sess, err := flags.open(cobraCmd, observability.ModeMCP, func(appCfg *config.Config, cfg *observability.Config) {
				cfg.LogJSON = true
				cfg.DebugTrace = debug

				if debug {
					cfg.LogLevel = slog.LevelDebug
				}

				addr = metricsAddr
				if addr == "" {
					addr = appCfg.Telemetry.MetricsAddr
				}

				cfg.Prometheus = addr != ""
			})
			if err != nil {
				return err
			}
			defer sess.close()

			if addr != "" && sess.providers.MetricsHandler != nil {
				stop, bound, serveErr := serveMetrics(addr, sess.providers.MetricsHandler, sess.providers.Tracer, sess.providers.Logger)
				if serveErr != nil {
					return serveErr
				}
				defer stop()

				sess.providers.Logger.Info("metrics endpoint listening", "addr", bound)
			}

			srv, err := mcp.NewServer(mcp.ServerDeps{
				Resolver: sess.resolver,
				Logger:   sess.providers.Logger,
				Metrics:  sess.metrics,
				Tracer:   sess.providers.Tracer,
			})
			if err != nil {
				return err
			}

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")

	return cmd
}

// serveMetrics starts an HTTP server exposing handler at /metrics. It
// returns a stop function and the bound address.
func serveMetrics(
	addr string, handler http.Handler, tracer trace.Tracer, logger *slog.Logger,
) (stop func(), bound string, err error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, handler)

	server := &http.Server{
		Handler:           observability.HTTPMiddleware(tracer, mux),
		ReadHeaderTimeout: metricsHeaderTimeout,
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", serveErr)
		}
	}()

	stop = func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsStopTimeout)
		defer cancel()

		shutdownErr := server.Shutdown(ctx)
		if shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}

		<-done
	}

	return stop, listener.Addr().String(), nil
}
