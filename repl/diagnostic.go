// Copyright © 2024 The ELPS authors

package repl

import (
	"errors"
	"io"
	"strings"

	"github.com/luthersystems/typecov/diagnostic"
)

// renderError renders a console error using the diagnostic renderer. Input
// comes from a stream rather than a file, so the offending line is served
// from the error itself.
func renderError(w io.Writer, source string, err error) {
	d := errorToDiag(source, err)
	r := &diagnostic.Renderer{Color: diagnostic.ColorAuto}
	var perr *ParseError
	if errors.As(err, &perr) {
		text := strings.Repeat("\n", max(perr.Line-1, 0)) + perr.Text
		r.SourceReader = func(string) ([]byte, error) { return []byte(text), nil }
	}
	_ = r.Render(w, d)
}

func errorToDiag(source string, err error) diagnostic.Diagnostic {
	d := diagnostic.Diagnostic{
		Severity: diagnostic.SeverityError,
		Message:  err.Error(),
	}
	var perr *ParseError
	if errors.As(err, &perr) {
		d.Message = perr.Err.Error()
		d.Spans = append(d.Spans, diagnostic.Span{File: source, Line: perr.Line, Col: perr.Col})
	}
	if errors.Is(err, ErrUnknownCommand) {
		d.Notes = append(d.Notes, "type help to list the available commands")
	}
	return d
}
