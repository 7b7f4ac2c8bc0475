// Copyright © 2024 The ELPS authors

package repl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/typecov/diagnostic"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *Command
	}{
		{"blank", "   ", nil},
		{"comment", "  # set up", nil},
		{"enable", "enable", &Command{Name: "enable"}},
		{"padded", "  pane-change  ", &Command{Name: "pane-change"}},
		{"not text editor", "not-text-editor", &Command{Name: "not-text-editor"}},
		{"null result", "result-null /www/a.hack", &Command{Name: "result-null", Path: "/www/a.hack"}},
		{"result without ranges", "result /www/a.hack 100", &Command{Name: "result", Path: "/www/a.hack", Percentage: 100}},
		{
			"result with ranges",
			"result a.hack 62.5 (1,0)-(1,4) ( 3 , 2 )-(4,0)",
			&Command{
				Name:       "result",
				Path:       "a.hack",
				Percentage: 62.5,
				Ranges: []diagnostic.Range{
					diagnostic.NewRange(1, 0, 1, 4),
					diagnostic.NewRange(3, 2, 4, 0),
				},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLine(1, tc.line)
			require.NoError(t, err)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want.Name, got.Name)
			assert.Equal(t, tc.want.Path, got.Path)
			assert.Equal(t, tc.want.Percentage, got.Percentage)
			assert.Equal(t, len(tc.want.Ranges), len(got.Ranges))
			for i := range tc.want.Ranges {
				assert.Equal(t, tc.want.Ranges[i], got.Ranges[i])
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		line    string
		unknown bool
		col     int
	}{
		{"frobnicate", true, 1},
		{"enabled", true, 1},
		{"edit now", false, 6},
		{"result /a.hack", false, 8},
		{"result /a.hack lots", false, 8},
		{"result /a.hack 50 (1,0)", false, 8},
		{"result /a.hack 50 (1,0)-(1,4) junk", false, 8},
		{"result-null", false, 13},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			cmd, err := ParseLine(7, tc.line)
			assert.Nil(t, cmd)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 7, perr.Line)
			assert.Equal(t, tc.col, perr.Col)
			assert.Equal(t, tc.unknown, errors.Is(err, ErrUnknownCommand))
			assert.Contains(t, err.Error(), tc.line)
		})
	}
}
