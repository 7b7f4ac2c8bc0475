// Copyright © 2024 The ELPS authors

package diagnostic

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// FormatJSON writes msgs to w as an indented JSON array.
func FormatJSON(w io.Writer, msgs []FileMessage) error {
	if msgs == nil {
		msgs = []FileMessage{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(msgs)
}

// FormatYAML writes msgs to w as a YAML sequence.
func FormatYAML(w io.Writer, msgs []FileMessage) error {
	if msgs == nil {
		msgs = []FileMessage{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(msgs); err != nil {
		return err
	}
	return enc.Close()
}
