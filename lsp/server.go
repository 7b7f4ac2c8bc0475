// Copyright © 2024 The ELPS authors

// Package lsp serves type coverage diagnostics over the Language Server
// Protocol. Open documents drive the active editor, coverage results are
// reconciled against the enabled toggle, and the outcome is published as
// textDocument/publishDiagnostics.
package lsp

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tliron/glsp"
	glspserver "github.com/tliron/glsp/server"
	"go.opentelemetry.io/otel/trace"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/typecov/activeeditor"
	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/observability"
	"github.com/luthersystems/typecov/rx"
	"github.com/luthersystems/typecov/servicehub"
)

const (
	serverName    = "typecov"
	serverVersion = "0.2.0"

	// DiagnosticsService is the hub name of the coverage diagnostics
	// provider.
	DiagnosticsService        = "typecov-diagnostics-provider"
	DiagnosticsServiceVersion = "0.2.0"
)

// Server is the typecov language server.
type Server struct {
	handler protocol.Handler
	glspSrv *glspserver.Server
	docs    *DocumentStore
	logger  *slog.Logger

	registry    *activeeditor.ProviderRegistry
	editors     *activeeditor.Service
	diagnostics *coverage.DiagnosticProvider
	publisher   *Publisher
	status      *statusReporter
	hub         *servicehub.Hub
	subs        *rx.CompositeSubscription

	// enabled feeds the reconciler's toggle. on mirrors its last value.
	enabled        *rx.Subject[bool]
	enabledMu      sync.Mutex
	on             bool
	initialEnabled bool

	debounce        time.Duration
	tracer          trace.Tracer
	analysisMetrics *observability.AnalysisMetrics
	reconcileOpts   []coverage.Option

	// Context for sending notifications (captured from latest request).
	notifyMu sync.Mutex
	notify   glsp.NotifyFunc

	closeOnce sync.Once

	// exitFn is called on the LSP exit notification. Defaults to os.Exit.
	exitFn func(int)
}

// Option configures the LSP server.
type Option func(*Server)

// WithProviders registers coverage providers.
func WithProviders(providers ...coverage.Provider) Option {
	return func(s *Server) {
		for _, p := range providers {
			s.registry.Add(p)
		}
	}
}

// WithEnabled sets the toggle state sent once the client is initialized.
func WithEnabled(on bool) Option {
	return func(s *Server) { s.initialEnabled = on }
}

// WithDebounce sets the delay between an edit and its re-analysis.
func WithDebounce(d time.Duration) Option {
	return func(s *Server) { s.debounce = d }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer traces provider calls with t.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithMetrics records reconciler and provider metrics.
func WithMetrics(rm *observability.ReconcilerMetrics, am *observability.AnalysisMetrics) Option {
	return func(s *Server) {
		s.reconcileOpts = append(s.reconcileOpts, coverage.WithMetrics(rm))
		s.analysisMetrics = am
	}
}

// WithHub registers the diagnostics provider in hub instead of a private
// one.
func WithHub(hub *servicehub.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// New creates a typecov language server.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		docs:           NewDocumentStore(),
		logger:         slog.Default(),
		registry:       activeeditor.NewProviderRegistry(),
		enabled:        rx.NewSubject[bool](),
		initialEnabled: true,
		debounce:       activeeditor.DefaultDebounce,
		hub:            servicehub.New(),
		subs:           rx.NewCompositeSubscription(),
		exitFn:         os.Exit,
	}
	for _, o := range opts {
		o(s)
	}

	editorOpts := []activeeditor.Option{
		activeeditor.WithDebounce(s.debounce),
		activeeditor.WithLogger(s.logger),
		activeeditor.WithMetrics(s.analysisMetrics),
	}
	if s.tracer != nil {
		editorOpts = append(editorOpts, activeeditor.WithTracer(s.tracer))
	}
	s.editors = activeeditor.NewService(s.registry, editorOpts...)

	s.diagnostics = coverage.NewDiagnosticProvider(s.editors.Outcomes(), s.enabled,
		append([]coverage.Option{coverage.WithLogger(s.logger)}, s.reconcileOpts...)...)
	reg, err := s.hub.Provide(DiagnosticsService, DiagnosticsServiceVersion, s.diagnostics)
	if err != nil {
		return nil, err
	}
	s.subs.Add(reg)

	s.publisher = NewPublisher(s.sendNotification)
	s.subs.Add(s.publisher.Attach(s.diagnostics))
	s.status = newStatusReporter(s.sendNotification)
	s.subs.Add(s.status.attach(s.editors.Outcomes(), s.enabled))

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		Exit:        s.exit,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidSave:   s.textDocumentDidSave,
		TextDocumentDidClose:  s.textDocumentDidClose,

		WorkspaceDidChangeConfiguration: s.workspaceDidChangeConfiguration,
		WorkspaceExecuteCommand:         s.workspaceExecuteCommand,
	}

	s.glspSrv = glspserver.NewServer(&s.handler, serverName, false)
	return s, nil
}

// Hub returns the service hub holding the diagnostics provider.
func (s *Server) Hub() *servicehub.Hub { return s.hub }

// RunStdio starts the server using stdio transport.
func (s *Server) RunStdio() error {
	return s.glspSrv.RunStdio()
}

// RunTCP starts the server listening on the given address.
func (s *Server) RunTCP(addr string) error {
	return s.glspSrv.RunTCP(addr)
}

// SetEnabled turns coverage diagnostics on or off.
func (s *Server) SetEnabled(on bool) {
	s.enabledMu.Lock()
	s.on = on
	s.enabledMu.Unlock()
	s.logger.Info("type coverage toggled", "enabled", on)
	s.enabled.Next(on)
}

// Enabled reports the last toggle value.
func (s *Server) Enabled() bool {
	s.enabledMu.Lock()
	defer s.enabledMu.Unlock()
	return s.on
}

// Close stops analyses and releases every subscription.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.editors.Close()
		s.subs.Unsubscribe()
		s.diagnostics.Dispose()
	})
}

func (s *Server) initialize(ctx *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	s.captureNotify(ctx)

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(false)},
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{CommandToggle},
	}

	version := serverVersion
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

// initialized sends the configured toggle state once the client can
// receive diagnostics.
func (s *Server) initialized(ctx *glsp.Context, _ *protocol.InitializedParams) error {
	s.captureNotify(ctx)
	s.SetEnabled(s.initialEnabled)
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	s.Close()
	return nil
}

func (s *Server) exit(_ *glsp.Context) error {
	s.exitFn(0)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, _ *protocol.SetTraceParams) error {
	return nil
}

// captureNotify stores the notification function from the context for
// async use.
func (s *Server) captureNotify(ctx *glsp.Context) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	s.notifyMu.Lock()
	s.notify = ctx.Notify
	s.notifyMu.Unlock()
}

// sendNotification sends a notification to the client.
func (s *Server) sendNotification(method string, params any) {
	s.notifyMu.Lock()
	fn := s.notify
	s.notifyMu.Unlock()
	if fn != nil {
		fn(method, params)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
