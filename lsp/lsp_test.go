// Copyright © 2024 The ELPS authors

package lsp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/servicehub"
)

type fakeProvider struct {
	result *coverage.Result
}

func (p *fakeProvider) Coverage(context.Context, coverage.Editor) (*coverage.Result, error) {
	return p.result, nil
}
func (p *fakeProvider) Priority() int           { return 1 }
func (p *fakeProvider) GrammarScopes() []string { return []string{"hack"} }
func (p *fakeProvider) DisplayName() string     { return "Hack" }

type notification struct {
	method string
	params any
}

type capture struct {
	mu   sync.Mutex
	sent []notification
}

func (c *capture) context() *glsp.Context {
	return &glsp.Context{Notify: func(method string, params any) {
		c.mu.Lock()
		c.sent = append(c.sent, notification{method, params})
		c.mu.Unlock()
	}}
}

func (c *capture) diagnostics() []*protocol.PublishDiagnosticsParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*protocol.PublishDiagnosticsParams
	for _, n := range c.sent {
		if n.method == protocol.ServerTextDocumentPublishDiagnostics {
			out = append(out, n.params.(*protocol.PublishDiagnosticsParams))
		}
	}
	return out
}

func (c *capture) statuses() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, n := range c.sent {
		if n.method == MethodStatus {
			out = append(out, n.params)
		}
	}
	return out
}

const hackURI = "file:///www/src/a.hack"

func newTestServer(t *testing.T, opts ...Option) (*Server, *capture, *glsp.Context) {
	t.Helper()
	p := &fakeProvider{result: &coverage.Result{
		Percentage:      80,
		UncoveredRanges: []coverage.Range{diagnostic.NewRange(2, 4, 2, 9)},
	}}
	s, err := New(append([]Option{WithProviders(p), WithDebounce(5 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	c := &capture{}
	ctx := c.context()
	_, err = s.initialize(ctx, &protocol.InitializeParams{})
	require.NoError(t, err)
	require.NoError(t, s.initialized(ctx, &protocol.InitializedParams{}))
	return s, c, ctx
}

func openHack(t *testing.T, s *Server, ctx *glsp.Context) {
	t.Helper()
	require.NoError(t, s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: hackURI, LanguageID: "hack", Version: 1, Text: "<?hh\n"},
	}))
}

func TestOpenPublishesCoverage(t *testing.T) {
	s, c, ctx := newTestServer(t)
	openHack(t, s, ctx)

	require.Eventually(t, func() bool { return len(c.diagnostics()) == 1 }, time.Second, 5*time.Millisecond)
	pub := c.diagnostics()[0]
	assert.Equal(t, hackURI, pub.URI)
	require.Len(t, pub.Diagnostics, 1)
	d := pub.Diagnostics[0]
	assert.Equal(t, "Not covered by the type system", d.Message)
	assert.Equal(t, "Type Coverage", *d.Source)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, *d.Severity)
	assert.Equal(t, protocol.UInteger(2), d.Range.Start.Line)
	assert.Equal(t, protocol.UInteger(4), d.Range.Start.Character)
	assert.Equal(t, protocol.UInteger(9), d.Range.End.Character)

	require.Eventually(t, func() bool { return len(c.statuses()) == 1 }, time.Second, 5*time.Millisecond)
	st, ok := c.statuses()[0].(*StatusParams)
	require.True(t, ok)
	assert.Equal(t, 80.0, st.Percentage)
	assert.Equal(t, 1, st.Uncovered)
}

func TestCloseClearsDiagnostics(t *testing.T) {
	s, c, ctx := newTestServer(t)
	openHack(t, s, ctx)
	require.Eventually(t, func() bool { return len(c.diagnostics()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: hackURI},
	}))
	require.Eventually(t, func() bool { return len(c.diagnostics()) == 2 }, time.Second, 5*time.Millisecond)
	pubs := c.diagnostics()
	assert.Equal(t, hackURI, pubs[1].URI)
	assert.Empty(t, pubs[1].Diagnostics)
	assert.Nil(t, s.docs.Get(hackURI))

	require.Eventually(t, func() bool {
		statuses := c.statuses()
		return len(statuses) > 0 && statuses[len(statuses)-1] == nil
	}, time.Second, 5*time.Millisecond)
}

func TestToggleCommand(t *testing.T) {
	s, c, ctx := newTestServer(t)
	openHack(t, s, ctx)
	require.Eventually(t, func() bool { return len(c.diagnostics()) == 1 }, time.Second, 5*time.Millisecond)

	res, err := s.workspaceExecuteCommand(ctx, &protocol.ExecuteCommandParams{Command: CommandToggle})
	require.NoError(t, err)
	assert.Equal(t, false, res)
	assert.False(t, s.Enabled())

	require.Eventually(t, func() bool { return len(c.diagnostics()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.diagnostics()[1].Diagnostics)

	res, err = s.workspaceExecuteCommand(ctx, &protocol.ExecuteCommandParams{Command: CommandToggle, Arguments: []any{true}})
	require.NoError(t, err)
	assert.Equal(t, true, res)

	_, err = s.workspaceExecuteCommand(ctx, &protocol.ExecuteCommandParams{Command: CommandToggle, Arguments: []any{"yes"}})
	assert.Error(t, err)
	_, err = s.workspaceExecuteCommand(ctx, &protocol.ExecuteCommandParams{Command: "typecov.nope"})
	assert.Error(t, err)
}

func TestDidChangeConfiguration(t *testing.T) {
	s, _, ctx := newTestServer(t, WithEnabled(false))
	assert.False(t, s.Enabled())

	require.NoError(t, s.workspaceDidChangeConfiguration(ctx, &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{"typecov": map[string]any{"enabled": true}},
	}))
	assert.True(t, s.Enabled())

	require.NoError(t, s.workspaceDidChangeConfiguration(ctx, &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{"typecov.enabled": false},
	}))
	assert.False(t, s.Enabled())

	require.NoError(t, s.workspaceDidChangeConfiguration(ctx, &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{"editor": map[string]any{"tabSize": 2}},
	}))
	assert.False(t, s.Enabled())
}

func TestDisabledServerPublishesNothing(t *testing.T) {
	s, c, ctx := newTestServer(t, WithEnabled(false))
	openHack(t, s, ctx)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.diagnostics())
}

func TestNoProviderForLanguage(t *testing.T) {
	s, c, ctx := newTestServer(t)
	openHack(t, s, ctx)
	require.Eventually(t, func() bool { return len(c.diagnostics()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///www/README.md", LanguageID: "markdown", Version: 1},
	}))
	require.Eventually(t, func() bool { return len(c.diagnostics()) == 2 }, time.Second, 5*time.Millisecond)
	pubs := c.diagnostics()
	assert.Equal(t, hackURI, pubs[1].URI)
	assert.Empty(t, pubs[1].Diagnostics)
}

func TestProviderRegisteredInHub(t *testing.T) {
	hub := servicehub.New()
	s, _, _ := newTestServer(t, WithHub(hub))
	assert.Same(t, hub, s.Hub())

	p, err := servicehub.ConsumeAs[diagnostic.ObservableProvider](hub, DiagnosticsService, DiagnosticsServiceVersion)
	require.NoError(t, err)
	assert.Same(t, s.diagnostics, p)

	s.Close()
	_, err = hub.Consume(DiagnosticsService, DiagnosticsServiceVersion)
	assert.ErrorIs(t, err, servicehub.ErrNoService)
}

func TestPublisherInvalidateFiles(t *testing.T) {
	var got []*protocol.PublishDiagnosticsParams
	p := NewPublisher(func(_ string, params any) {
		got = append(got, params.(*protocol.PublishDiagnosticsParams))
	})
	msg := diagnostic.FileMessage{Type: diagnostic.TypeError, ProviderName: "x", Text: "t"}
	p.Update(diagnostic.ProviderUpdate{FilePathToMessages: map[string][]diagnostic.FileMessage{
		"/a.hack": {msg},
		"/b.hack": {msg},
	}})
	require.Len(t, got, 2)
	assert.Equal(t, "file:///a.hack", got[0].URI)
	assert.Equal(t, protocol.DiagnosticSeverityError, *got[0].Diagnostics[0].Severity)

	p.Invalidate(diagnostic.InvalidateFiles("/b.hack", "/never.hack"))
	require.Len(t, got, 3)
	assert.Equal(t, "file:///b.hack", got[2].URI)

	p.Invalidate(diagnostic.InvalidateAll())
	require.Len(t, got, 4)
	assert.Equal(t, "file:///a.hack", got[3].URI)

	p.Invalidate(diagnostic.InvalidateAll())
	assert.Len(t, got, 4)
}

func TestURIConversion(t *testing.T) {
	assert.Equal(t, "/www/my file.hack", uriToPath("file:///www/my%20file.hack"))
	assert.Equal(t, "file:///www/my%20file.hack", pathToURI("/www/my file.hack"))
	assert.Equal(t, "untitled:1", uriToPath("untitled:1"))
	assert.Equal(t, "relative.hack", pathToURI("relative.hack"))
}

func TestDocumentStore(t *testing.T) {
	ds := NewDocumentStore()
	ds.Open("file:///b", "hack", 1, "x")
	doc := ds.Change("file:///b", 2, "y")
	assert.Equal(t, "hack", doc.Grammar())
	assert.Equal(t, "/b", doc.Path())
	ds.Change("file:///a", 1, "z")
	all := ds.All()
	require.Len(t, all, 2)
	assert.Equal(t, "file:///a", all[0].URI)
	assert.NotNil(t, ds.Close("file:///a"))
	assert.Nil(t, ds.Close("file:///a"))
}
