// Copyright © 2024 The ELPS authors

// Package hack provides type coverage for Hack and PHP files by asking the
// Hack type checker, hh_client, for its colored typed regions.
package hack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/luthersystems/typecov/coverage"
)

const (
	DefaultClientPath = "hh_client"
	DefaultTimeout    = 30 * time.Second

	displayName = "Hack"
	priority    = 1
)

var grammarScopes = []string{"hack", "php", "source.hack"}

// ErrClientNotFound is returned when the hh_client binary cannot be found.
var ErrClientNotFound = errors.New("hack: hh_client not found")

// Runner executes a command in dir and returns its output streams.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Provider is a coverage.Provider backed by hh_client.
type Provider struct {
	// ClientPath is the hh_client executable. Defaults to DefaultClientPath.
	ClientPath string
	// Timeout bounds each hh_client call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Runner defaults to ExecRunner.
	Runner Runner
}

var _ coverage.Provider = (*Provider)(nil)

// NewProvider returns a provider invoking the client at clientPath.
func NewProvider(clientPath string, timeout time.Duration) *Provider {
	return &Provider{ClientPath: clientPath, Timeout: timeout}
}

func (p *Provider) Priority() int           { return priority }
func (p *Provider) GrammarScopes() []string { return grammarScopes }
func (p *Provider) DisplayName() string     { return displayName }

// Coverage runs hh_client --color --json on the editor's file from the
// file's directory so hh_client finds the enclosing .hhconfig.
func (p *Provider) Coverage(ctx context.Context, editor coverage.Editor) (*coverage.Result, error) {
	path := editor.Path()
	if path == "" {
		return nil, nil
	}
	regions, err := p.typedRegions(ctx, path)
	if err != nil {
		return nil, err
	}
	return ConvertRegions(regions), nil
}

func (p *Provider) typedRegions(ctx context.Context, path string) ([]Region, error) {
	client := p.ClientPath
	if client == "" {
		client = DefaultClientPath
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runner := p.Runner
	if runner == nil {
		if _, err := exec.LookPath(client); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrClientNotFound, client)
		}
		runner = ExecRunner{}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := runner.Run(ctx, filepath.Dir(path), client, "--color", "--json", path)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrClientNotFound, client)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("hh_client %s: %w", path, ctx.Err())
		}
		return nil, fmt.Errorf("hh_client %s: %w: %s", path, err, strings.TrimSpace(string(stderr)))
	}

	var regions []Region
	if err := json.Unmarshal(stdout, &regions); err != nil {
		return nil, fmt.Errorf("decode hh_client output for %s: %w", path, err)
	}
	return regions, nil
}
