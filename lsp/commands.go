// Copyright © 2024 The ELPS authors

package lsp

import (
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// CommandToggle flips the coverage toggle. An optional boolean argument
// sets it explicitly.
const CommandToggle = "typecov.toggle"

// workspaceDidChangeConfiguration reads typecov.enabled from either a
// nested {"typecov": {"enabled": b}} or a flat {"typecov.enabled": b}
// settings object.
func (s *Server) workspaceDidChangeConfiguration(ctx *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	s.captureNotify(ctx)
	on, ok := enabledSetting(params.Settings)
	if !ok {
		return nil
	}
	if on != s.Enabled() {
		s.SetEnabled(on)
	}
	return nil
}

func enabledSetting(settings any) (bool, bool) {
	m, ok := settings.(map[string]any)
	if !ok {
		return false, false
	}
	if v, ok := m["typecov.enabled"].(bool); ok {
		return v, true
	}
	for k, sub := range m {
		if !strings.EqualFold(k, "typecov") {
			continue
		}
		if sm, ok := sub.(map[string]any); ok {
			if v, ok := sm["enabled"].(bool); ok {
				return v, true
			}
		}
	}
	return false, false
}

func (s *Server) workspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	s.captureNotify(ctx)
	switch params.Command {
	case CommandToggle:
		on := !s.Enabled()
		if len(params.Arguments) > 0 {
			v, ok := params.Arguments[0].(bool)
			if !ok {
				return nil, fmt.Errorf("%s: argument must be a boolean, got %T", CommandToggle, params.Arguments[0])
			}
			on = v
		}
		s.SetEnabled(on)
		return on, nil
	default:
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}
}
