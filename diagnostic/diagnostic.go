// Copyright © 2024 The ELPS authors

// Package diagnostic defines the diagnostic message model exchanged between
// diagnostic providers and display layers, and renders diagnostics as
// annotated source snippets for CLI output.
package diagnostic

import "fmt"

// Severity indicates the severity level of a rendered diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// Position is a 0-based line and column in a text document.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Range is a span between two positions. Ranges are compared by value.
type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// NewRange builds a range from start and end line/column pairs.
func NewRange(startLine, startCol, endLine, endCol int) Range {
	return Range{
		Start: Position{Line: startLine, Column: startCol},
		End:   Position{Line: endLine, Column: endCol},
	}
}

// String formats r as "(line,col)-(line,col)".
func (r Range) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Start.Line, r.Start.Column, r.End.Line, r.End.Column)
}

// Span identifies a region of source code to highlight in the diagnostic.
type Span struct {
	File    string // path for reading source; display name if unreadable
	Line    int    // 1-based line number
	Col     int    // 1-based start column
	EndLine int    // 1-based end line (0 = same as Line)
	EndCol  int    // 1-based inclusive end column (0 = underline one character)
	Label   string // text shown under the underline
}

// SpanFromRange converts a 0-based, end-exclusive range to a 1-based span.
func SpanFromRange(file string, r Range) Span {
	endCol := r.End.Column
	if r.End.Line == r.Start.Line && endCol <= r.Start.Column {
		endCol = r.Start.Column + 1
	}
	return Span{
		File:    file,
		Line:    r.Start.Line + 1,
		Col:     r.Start.Column + 1,
		EndLine: r.End.Line + 1,
		EndCol:  endCol,
	}
}

// Diagnostic represents a single error, warning, or note with optional
// source annotations and trailing notes.
type Diagnostic struct {
	Severity Severity
	Message  string
	Spans    []Span
	Notes    []string // "= note:" lines
}
