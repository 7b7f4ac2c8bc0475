// Copyright © 2024 The ELPS authors

package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/rx"
)

const (
	consoleGrammar  = "console"
	untitledPath    = "untitled"
	consoleProvider = "console"
)

// Session drives a diagnostics reconciler with console commands and
// prints what it publishes.
type Session struct {
	out      io.Writer
	results  *rx.Subject[coverage.AnalysisOutcome]
	enabled  *rx.Subject[bool]
	provider *coverage.DiagnosticProvider
	subs     rx.Subscription
	current  coverage.Editor

	// Renderer, when set, also renders each published message as an
	// annotated source snippet.
	Renderer *diagnostic.Renderer
}

// NewSession returns a session writing output to out.
func NewSession(out io.Writer, opts ...coverage.Option) *Session {
	s := &Session{
		out:     out,
		results: rx.NewSubject[coverage.AnalysisOutcome](),
		enabled: rx.NewSubject[bool](),
		current: coverage.FileEditor{FilePath: untitledPath, GrammarName: consoleGrammar},
	}
	s.provider = coverage.NewDiagnosticProvider(s.results, s.enabled, opts...)
	s.subs = rx.NewCompositeSubscription(
		s.provider.Updates().Subscribe(s.printUpdate),
		s.provider.Invalidations().Subscribe(s.printInvalidation),
	)
	return s
}

// Close releases the reconciler.
func (s *Session) Close() {
	s.subs.Unsubscribe()
	s.provider.Dispose()
}

// Exec parses and runs one line.
func (s *Session) Exec(lineno int, line string) error {
	cmd, err := ParseLine(lineno, line)
	if err != nil || cmd == nil {
		return err
	}
	s.Apply(cmd)
	return nil
}

// Apply runs a parsed command.
func (s *Session) Apply(cmd *Command) {
	switch cmd.Name {
	case "enable":
		s.enabled.Next(true)
	case "disable":
		s.enabled.Next(false)
	case "result", "result-null":
		s.current = coverage.FileEditor{FilePath: cmd.Path, GrammarName: consoleGrammar}
		var res *coverage.Result
		if cmd.Name == "result" {
			res = &coverage.Result{Percentage: cmd.Percentage, UncoveredRanges: cmd.Ranges}
		}
		o, err := coverage.NewResultOutcome(consoleCoverage{}, s.current, res)
		if err != nil {
			fmt.Fprintln(s.out, err) //nolint:errcheck // best-effort console output
			return
		}
		s.results.Next(o)
	case "edit":
		s.results.Next(coverage.Edit{Editor: s.current})
	case "save":
		s.results.Next(coverage.Save{Editor: s.current})
	case "pane-change":
		s.results.Next(coverage.PaneChange{})
	case "not-text-editor":
		s.results.Next(coverage.NotTextEditor{})
	case "no-provider":
		s.results.Next(coverage.NoProvider{Grammar: consoleGrammar})
	case "provider-error":
		s.results.Next(coverage.ProviderError{
			Provider: consoleCoverage{},
			Editor:   s.current,
			Err:      errors.New("provider failure requested from console"),
		})
	}
}

func (s *Session) printUpdate(u diagnostic.ProviderUpdate) {
	paths := make([]string, 0, len(u.FilePathToMessages))
	for p := range u.FilePathToMessages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		msgs := u.FilePathToMessages[p]
		fmt.Fprintf(s.out, "update %s (%d)\n", p, len(msgs)) //nolint:errcheck // best-effort console output
		for _, m := range msgs {
			fmt.Fprintf(s.out, "  %s %s: %s\n", m.Range, m.Type, m.Text) //nolint:errcheck // best-effort console output
			if s.Renderer != nil {
				_ = s.Renderer.Render(s.out, diagnostic.FromMessage(m))
			}
		}
	}
}

func (s *Session) printInvalidation(m diagnostic.InvalidationMessage) {
	if m.Scope == diagnostic.ScopeFile {
		fmt.Fprintf(s.out, "invalidate %s\n", strings.Join(m.FilePaths, " ")) //nolint:errcheck // best-effort console output
		return
	}
	fmt.Fprintln(s.out, "invalidate all") //nolint:errcheck // best-effort console output
}

// RunScript executes every line of r. Bad lines are reported to errOut
// and skipped. It returns the number of bad lines.
func RunScript(r io.Reader, out, errOut io.Writer, opts ...coverage.Option) (int, error) {
	s := NewSession(out, opts...)
	defer s.Close()

	bad := 0
	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		if err := s.Exec(lineno, sc.Text()); err != nil {
			bad++
			renderError(errOut, "script", err)
		}
	}
	if err := sc.Err(); err != nil {
		return bad, fmt.Errorf("read script: %w", err)
	}
	return bad, nil
}

// consoleCoverage stands in for the provider that produced console
// outcomes.
type consoleCoverage struct{}

func (consoleCoverage) Coverage(context.Context, coverage.Editor) (*coverage.Result, error) {
	return nil, nil
}
func (consoleCoverage) Priority() int           { return 0 }
func (consoleCoverage) GrammarScopes() []string { return []string{consoleGrammar} }
func (consoleCoverage) DisplayName() string     { return consoleProvider }
