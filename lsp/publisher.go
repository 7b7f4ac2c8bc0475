// Copyright © 2024 The ELPS authors

package lsp

import (
	"sort"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/rx"
)

// Publisher renders a diagnostic.ObservableProvider as publishDiagnostics
// notifications. It remembers which documents it has published to so an
// invalidation can clear them.
type Publisher struct {
	notify func(method string, params any)

	mu        sync.Mutex
	published map[string]struct{}
}

// NewPublisher returns a publisher sending notifications with notify.
func NewPublisher(notify func(method string, params any)) *Publisher {
	return &Publisher{notify: notify, published: make(map[string]struct{})}
}

// Attach subscribes to p's streams. Unsubscribing detaches.
func (p *Publisher) Attach(src diagnostic.ObservableProvider) rx.Subscription {
	return rx.NewCompositeSubscription(
		src.Updates().Subscribe(p.Update),
		src.Invalidations().Subscribe(p.Invalidate),
	)
}

// Update publishes the messages of u, replacing what each file showed.
func (p *Publisher) Update(u diagnostic.ProviderUpdate) {
	paths := make([]string, 0, len(u.FilePathToMessages))
	for path := range u.FilePathToMessages {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		msgs := u.FilePathToMessages[path]
		diags := make([]protocol.Diagnostic, 0, len(msgs))
		for _, m := range msgs {
			diags = append(diags, toProtocol(m))
		}
		uri := pathToURI(path)
		p.mu.Lock()
		p.published[uri] = struct{}{}
		p.mu.Unlock()
		p.publish(uri, diags)
	}
}

// Invalidate clears the files named by m, or every published file for an
// all-scope invalidation.
func (p *Publisher) Invalidate(m diagnostic.InvalidationMessage) {
	var uris []string
	p.mu.Lock()
	switch m.Scope {
	case diagnostic.ScopeFile:
		for _, path := range m.FilePaths {
			uri := pathToURI(path)
			if _, ok := p.published[uri]; ok {
				uris = append(uris, uri)
				delete(p.published, uri)
			}
		}
	default:
		for uri := range p.published {
			uris = append(uris, uri)
		}
		clear(p.published)
	}
	p.mu.Unlock()

	sort.Strings(uris)
	for _, uri := range uris {
		p.publish(uri, []protocol.Diagnostic{})
	}
}

func (p *Publisher) publish(uri string, diags []protocol.Diagnostic) {
	p.notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

func toProtocol(m diagnostic.FileMessage) protocol.Diagnostic {
	sev := mapSeverity(m.Type)
	source := m.ProviderName
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: safeUint(m.Range.Start.Line), Character: safeUint(m.Range.Start.Column)},
			End:   protocol.Position{Line: safeUint(m.Range.End.Line), Character: safeUint(m.Range.End.Column)},
		},
		Severity: &sev,
		Source:   &source,
		Message:  m.Text,
	}
}

func mapSeverity(t diagnostic.MessageType) protocol.DiagnosticSeverity {
	switch t {
	case diagnostic.TypeError:
		return protocol.DiagnosticSeverityError
	case diagnostic.TypeInfo:
		return protocol.DiagnosticSeverityInformation
	default:
		return protocol.DiagnosticSeverityWarning
	}
}

// safeUint converts a non-negative int to protocol.UInteger, clamping
// negative values to zero.
func safeUint(n int) protocol.UInteger {
	if n < 0 {
		return 0
	}
	return protocol.UInteger(n) // #nosec G115 -- line/col are always small positive ints
}
