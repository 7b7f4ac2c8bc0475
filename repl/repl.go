// Copyright © 2018 The ELPS authors

package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/diagnostic"
)

type config struct {
	stdin    io.ReadCloser
	stderr   io.WriteCloser
	history  string
	renderer *diagnostic.Renderer
	coverage []coverage.Option
}

func newConfig(opts ...Option) *config {
	config := &config{history: historyPath()}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

type Option func(*config)

// WithStdin allows overriding the input to the console.
func WithStdin(stdin io.ReadCloser) Option {
	return func(c *config) {
		c.stdin = stdin
	}
}

// WithStderr allows overriding the output of the console.
func WithStderr(stderr io.WriteCloser) Option {
	return func(c *config) {
		c.stderr = stderr
	}
}

// WithHistoryFile sets the history file. An empty path disables history.
func WithHistoryFile(path string) Option {
	return func(c *config) {
		c.history = path
	}
}

// WithRenderer renders published messages as source snippets.
func WithRenderer(r *diagnostic.Renderer) Option {
	return func(c *config) {
		c.renderer = r
	}
}

// WithCoverageOptions passes options to the console's reconciler.
func WithCoverageOptions(opts ...coverage.Option) Option {
	return func(c *config) {
		c.coverage = append(c.coverage, opts...)
	}
}

const helpText = `commands:
  enable | disable                   toggle the diagnostics gate
  result <path> <pct> [(l,c)-(l,c)...] publish a coverage result
  result-null <path>                 publish an empty analysis
  edit | save                        edit or save the current file
  pane-change | not-text-editor      move focus away from the file
  no-provider | provider-error       simulate a failed analysis
  help | quit`

// RunConsole reads commands interactively and prints the updates and
// invalidations the reconciler publishes in response.
func RunConsole(prompt string, opts ...Option) error {
	cfg := newConfig(opts...)
	var stderr io.Writer = os.Stderr
	if cfg.stderr != nil {
		stderr = cfg.stderr
	}

	ensureHistoryFilePermissions(cfg.history)
	rlCfg := &readline.Config{
		Stdout:            stderr,
		Stderr:            stderr,
		Prompt:            prompt,
		HistoryFile:       cfg.history,
		HistorySearchFold: true,
		AutoComplete:      newCommandCompleter(),
	}
	if cfg.stdin != nil {
		rlCfg.Stdin = cfg.stdin
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return fmt.Errorf("start console: %w", err)
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	sess := NewSession(stderr, cfg.coverage...)
	sess.Renderer = cfg.renderer
	defer sess.Close()

	for lineno := 1; ; lineno++ {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			// io.EOF ends the session.
			return nil
		}
		switch strings.TrimSpace(line) {
		case "help":
			fmt.Fprintln(stderr, helpText) //nolint:errcheck // best-effort console output
			continue
		case "quit", "exit":
			return nil
		}
		if err := sess.Exec(lineno, line); err != nil {
			renderError(stderr, "stdin", err)
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".typecov_history")
}

// ensureHistoryFilePermissions creates the history file if needed and
// restricts it to the owner.
func ensureHistoryFilePermissions(path string) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path comes from the user's home directory
	if err != nil {
		return
	}
	_ = f.Close()
	_ = os.Chmod(path, 0o600)
}
