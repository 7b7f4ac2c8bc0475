// Copyright © 2024 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/slog" // glsp logs through the slog backend

	"github.com/luthersystems/typecov/config"
	"github.com/luthersystems/typecov/lsp"
	"github.com/luthersystems/typecov/observability"
)

const shutdownTimeout = 5 * time.Second

// LSPCommand creates the "lsp" cobra command with optional embedder
// configuration. Embedders can pass WithProviders to serve coverage for
// other grammars, and WithHub to share the diagnostics provider.
func LSPCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts...)

	var (
		stdio bool
		port  int
	)

	cmd := &cobra.Command{
		Use:   "lsp [flags]",
		Short: "Start the type coverage language server",
		Long: `Start an LSP server that publishes type coverage diagnostics.

Every range the type checker cannot see into is published as a warning on
the active document. The "typecov.toggle" command and the "typecov.enabled"
setting turn the diagnostics on and off; so does editing "enabled" in the
config file while the server runs.

Transport modes:
  --stdio      Use stdin/stdout for LSP communication (default)
  --port N     Listen for an LSP client on TCP port N

Examples:
  typecov lsp                        Start with stdio transport
  typecov lsp --port 7998            Start with TCP on port 7998

Set metrics.addr (TYPECOV_METRICS_ADDR) to expose prometheus metrics and
otlp.endpoint (TYPECOV_OTLP_ENDPOINT) to export traces.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := runLSP(cmd.Context(), cfg, stdio, port); err != nil {
				fmt.Fprintf(os.Stderr, "lsp server error: %v\n", err) //nolint:errcheck // best-effort error display
				os.Exit(1)
			}
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false,
		"Use stdin/stdout for LSP communication (default behavior)")
	cmd.Flags().IntVar(&port, "port", 0,
		"TCP port for LSP server (use instead of --stdio)")

	return cmd
}

func runLSP(ctx context.Context, c *cmdConfig, stdio bool, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := observability.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = serviceName
	obsCfg.ServiceVersion = Version
	obsCfg.OTLPEndpoint = cfg.OTLP.Endpoint
	obsCfg.OTLPInsecure = cfg.OTLP.Insecure
	obsCfg.Prometheus = cfg.Metrics.Addr != ""
	obsCfg.LogLevel = level
	obsCfg.LogFormat = cfg.Log.Format
	prov, err := observability.Init(ctx, obsCfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := prov.Shutdown(sctx); err != nil {
			prov.Logger.Warn("telemetry shutdown", "error", err)
		}
	}()
	logger := prov.Logger
	commonlog.Configure(commonlogVerbosity(level), nil)

	rm, err := observability.NewReconcilerMetrics(prov.Meter)
	if err != nil {
		return err
	}
	am, err := observability.NewAnalysisMetrics(prov.Meter)
	if err != nil {
		return err
	}
	if prov.MetricsHandler != nil {
		stop := serveMetrics(cfg.Metrics.Addr, prov.MetricsHandler, logger)
		defer stop()
	}

	srv, err := lsp.New(
		lsp.WithProviders(c.resolveProviders(cfg)...),
		lsp.WithEnabled(cfg.Enabled),
		lsp.WithDebounce(cfg.Debounce),
		lsp.WithLogger(logger),
		lsp.WithTracer(prov.Tracer),
		lsp.WithMetrics(rm, am),
		lsp.WithHub(c.resolveHub()),
	)
	if err != nil {
		return err
	}
	defer srv.Close()

	err = config.Watch(nil, logger, enabledForwarder(cfg.Enabled, srv.SetEnabled))
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		logger.Warn("not watching config file", "error", err)
	}

	if !stdio && port > 0 {
		addr := fmt.Sprintf("localhost:%d", port)
		logger.Info("typecov LSP server listening", "addr", addr)
		return srv.RunTCP(addr)
	}
	return srv.RunStdio()
}

// enabledForwarder returns a reload callback that calls set only when the
// reloaded enabled value differs from the last one loaded. Edits to other
// keys leave a toggle made from the editor in place.
func enabledForwarder(initial bool, set func(bool)) func(config.Config) {
	var mu sync.Mutex
	last := initial
	return func(next config.Config) {
		mu.Lock()
		defer mu.Unlock()
		if next.Enabled == last {
			return
		}
		last = next.Enabled
		set(next.Enabled)
	}
}

// commonlogVerbosity maps a slog level onto commonlog's verbosity scale.
func commonlogVerbosity(level slog.Level) int {
	switch {
	case level <= slog.LevelDebug:
		return 2
	case level <= slog.LevelInfo:
		return 1
	case level <= slog.LevelWarn:
		return -1
	default:
		return -2
	}
}

// serveMetrics serves h on addr under /metrics until the returned function
// is called.
func serveMetrics(addr string, h http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}

func init() {
	rootCmd.AddCommand(LSPCommand())
}
