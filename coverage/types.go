// Copyright © 2024 The ELPS authors

// Package coverage turns type-coverage analysis results for the active
// editor into diagnostic update and invalidation streams.
//
// Analysis results arrive as AnalysisOutcome values, a closed set of
// variants describing what happened to the current editor/provider pairing.
// NewDiagnosticProvider combines that stream with an on/off toggle stream
// and publishes per-range warnings for uncovered code, clearing them
// whenever the pairing is lost or the toggle is switched off.
package coverage

import (
	"context"
	"slices"

	"github.com/luthersystems/typecov/diagnostic"
)

// Range is a span of uncovered source text.
type Range = diagnostic.Range

// Result is the coverage computed for one file by one analysis.
type Result struct {
	// Percentage of covered code in [0, 100].
	Percentage float64
	// UncoveredRanges lists the spans not covered by the type system, in
	// document order.
	UncoveredRanges []Range
}

// Editor is a handle on an open text editor.
type Editor interface {
	// Path is the file path of the edited document.
	Path() string
	// Grammar is the language scope of the document, e.g. "hack".
	Grammar() string
}

// Provider computes type coverage for editors in the grammars it claims.
type Provider interface {
	// Coverage analyses the editor's document. A nil result with a nil
	// error means the provider has nothing to report.
	Coverage(ctx context.Context, editor Editor) (*Result, error)
	// Priority orders providers claiming the same grammar; higher wins.
	Priority() int
	// GrammarScopes lists the grammars this provider handles.
	GrammarScopes() []string
	// DisplayName is a human readable provider name.
	DisplayName() string
}

// Handles reports whether p claims grammar.
func Handles(p Provider, grammar string) bool {
	return slices.Contains(p.GrammarScopes(), grammar)
}

// FileEditor is an Editor backed by a path and a grammar name.
type FileEditor struct {
	FilePath    string
	GrammarName string
}

// Path implements Editor.
func (e FileEditor) Path() string { return e.FilePath }

// Grammar implements Editor.
func (e FileEditor) Grammar() string { return e.GrammarName }
