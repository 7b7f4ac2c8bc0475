// Copyright © 2024 The ELPS authors

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/luthersystems/typecov/activeeditor"
	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/hack"
)

type stubProvider struct {
	results map[string]*coverage.Result
	err     error
	calls   atomic.Int32
}

func (p *stubProvider) Coverage(_ context.Context, e coverage.Editor) (*coverage.Result, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.results[e.Path()], nil
}
func (p *stubProvider) Priority() int           { return 1 }
func (p *stubProvider) GrammarScopes() []string { return []string{"hack"} }
func (p *stubProvider) DisplayName() string     { return "Stub" }

func newStub() *stubProvider {
	return &stubProvider{results: map[string]*coverage.Result{
		"full.hack": {Percentage: 100},
		"half.hack": {Percentage: 50, UncoveredRanges: []coverage.Range{
			diagnostic.NewRange(0, 0, 0, 4),
			diagnostic.NewRange(2, 1, 2, 3),
		}},
	}}
}

func check(t *testing.T, p coverage.Provider, co checkOptions, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := runCheck(context.Background(), &stdout, &stderr, newCmdConfig(WithProviders(p)), co, args)
	return code, stdout.String(), stderr.String()
}

func TestCheckCommand_DefaultFlags(t *testing.T) {
	cmd := CheckCommand()
	assert.Equal(t, "check [flags] files...", cmd.Use)
	for _, name := range []string{"json", "yaml", "summary", "exclude", "hh-client", "jobs"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestCheck_Clean(t *testing.T) {
	code, stdout, stderr := check(t, newStub(), checkOptions{}, "full.hack")
	assert.Equal(t, exitClean, code)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}

func TestCheck_UncoveredRendered(t *testing.T) {
	code, _, stderr := check(t, newStub(), checkOptions{}, "full.hack", "half.hack")
	assert.Equal(t, exitUncovered, code)
	assert.Contains(t, stderr, "warning: Not covered by the type system")
	assert.Contains(t, stderr, "half.hack:1:1")
	assert.Contains(t, stderr, "half.hack:3:2")
}

func TestCheck_JSON(t *testing.T) {
	code, stdout, _ := check(t, newStub(), checkOptions{json: true}, "half.hack", "full.hack")
	assert.Equal(t, exitUncovered, code)

	var msgs []diagnostic.FileMessage
	require.NoError(t, json.Unmarshal([]byte(stdout), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "half.hack", msgs[0].FilePath)
	assert.Equal(t, diagnostic.NewRange(0, 0, 0, 4), msgs[0].Range)
	assert.Equal(t, coverage.ProviderName, msgs[1].ProviderName)
}

func TestCheck_JSONEmptyIsArray(t *testing.T) {
	code, stdout, _ := check(t, newStub(), checkOptions{json: true}, "full.hack")
	assert.Equal(t, exitClean, code)
	assert.JSONEq(t, "[]", stdout)
}

func TestCheck_YAML(t *testing.T) {
	code, stdout, _ := check(t, newStub(), checkOptions{yaml: true}, "half.hack")
	assert.Equal(t, exitUncovered, code)

	var msgs []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "Warning", msgs[0]["type"])
}

func TestCheck_Summary(t *testing.T) {
	code, stdout, _ := check(t, newStub(), checkOptions{summary: true}, "full.hack", "half.hack", "readme.md", "none.hack")
	assert.Equal(t, exitUncovered, code)
	assert.Contains(t, stdout, "100.0%")
	assert.Contains(t, stdout, "50.0%")
	assert.Contains(t, stdout, "skipped")
	assert.Contains(t, stdout, "Total: 4 files")
	assert.Contains(t, stdout, "75.0%")
}

func TestCheck_SummaryKeepsMachineOutputClean(t *testing.T) {
	files := []string{"full.hack", "half.hack"}

	code, stdout, stderr := check(t, newStub(), checkOptions{summary: true, json: true}, files...)
	assert.Equal(t, exitUncovered, code)
	var msgs []diagnostic.FileMessage
	require.NoError(t, json.Unmarshal([]byte(stdout), &msgs))
	assert.Len(t, msgs, 2)
	assert.Contains(t, stderr, "Total: 2 files")
	assert.NotContains(t, stdout, "Total:")

	code, stdout, stderr = check(t, newStub(), checkOptions{summary: true, yaml: true}, files...)
	assert.Equal(t, exitUncovered, code)
	var docs []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &docs))
	assert.Len(t, docs, 2)
	assert.Contains(t, stderr, "Total: 2 files")
}

func TestCheck_BadInvocation(t *testing.T) {
	code, _, stderr := check(t, newStub(), checkOptions{json: true, yaml: true}, "a.hack")
	assert.Equal(t, exitBadInvocation, code)
	assert.Contains(t, stderr, "mutually exclusive")

	code, _, stderr = check(t, newStub(), checkOptions{excludes: []string{"*.hack"}}, "a.hack")
	assert.Equal(t, exitBadInvocation, code)
	assert.Contains(t, stderr, "no files")
}

func TestCheck_ProviderError(t *testing.T) {
	p := newStub()
	p.err = errors.New("boom")
	code, _, stderr := check(t, p, checkOptions{}, "a.hack")
	assert.Equal(t, exitBadInvocation, code)
	assert.Contains(t, stderr, "a.hack: boom")

	p.err = hack.ErrClientNotFound
	code, _, stderr = check(t, p, checkOptions{}, "a.hack")
	assert.Equal(t, exitBadInvocation, code)
	assert.Contains(t, stderr, "--hh-client")
}

func TestCheckFiles_KeepsOrderAndLimitsJobs(t *testing.T) {
	p := newStub()
	files := []string{"half.hack", "x.php", "full.hack", "half.hack"}
	reports, err := checkFiles(context.Background(), activeeditor.NewProviderRegistry(p), files, 1)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	for i, r := range reports {
		assert.Equal(t, files[i], r.Path)
	}
	assert.True(t, reports[1].Skipped)
	assert.Len(t, reports[3].Messages, 2)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestFormatPercentage(t *testing.T) {
	assert.Contains(t, formatPercentage(91), "91.0%")
	assert.Contains(t, formatPercentage(12.3), "12.3%")
}
