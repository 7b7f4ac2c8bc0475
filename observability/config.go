// Copyright © 2024 The ELPS authors

// Package observability wires tracing, metrics and structured logging for
// the typecov server and command line tools.
package observability

import (
	"io"
	"log/slog"
	"os"
)

const (
	defaultServiceName = "typecov"

	FormatText = "text"
	FormatJSON = "json"
)

// Config selects exporters and log output.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// OTLPEndpoint is a host:port for a gRPC trace collector. Empty keeps
	// tracing in-process with a no-op provider.
	OTLPEndpoint string
	OTLPInsecure bool

	// Prometheus registers a prometheus reader and exposes a scrape
	// handler on Providers.MetricsHandler.
	Prometheus bool

	LogLevel  slog.Level
	LogFormat string
	// LogOutput defaults to stderr. The LSP transport owns stdout.
	LogOutput io.Writer
}

// DefaultConfig returns a config with no exporters and text logs on stderr.
func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		LogLevel:    slog.LevelInfo,
		LogFormat:   FormatText,
		LogOutput:   os.Stderr,
	}
}
