// Copyright © 2024 The ELPS authors

package coverage

import "github.com/luthersystems/typecov/diagnostic"

const (
	// ProviderName labels every coverage message.
	ProviderName = "Type Coverage"
	// UncoveredText is the text of every coverage message.
	UncoveredText = "Not covered by the type system"
)

// Messages projects a coverage result onto one warning per uncovered
// range, in range order, attributed to the editor's path. The percentage
// is not used. An empty range list yields an empty, non-nil slice.
func Messages(editor Editor, result *Result) []diagnostic.FileMessage {
	if result == nil {
		return []diagnostic.FileMessage{}
	}
	path := editor.Path()
	msgs := make([]diagnostic.FileMessage, 0, len(result.UncoveredRanges))
	for _, r := range result.UncoveredRanges {
		msgs = append(msgs, diagnostic.FileMessage{
			Scope:        diagnostic.ScopeFile,
			ProviderName: ProviderName,
			Type:         diagnostic.TypeWarning,
			FilePath:     path,
			Range:        r,
			Text:         UncoveredText,
		})
	}
	return msgs
}

// UpdateForResult wraps Messages in a single-file provider update.
func UpdateForResult(editor Editor, result *Result) diagnostic.ProviderUpdate {
	return diagnostic.ProviderUpdate{
		FilePathToMessages: map[string][]diagnostic.FileMessage{
			editor.Path(): Messages(editor, result),
		},
	}
}
