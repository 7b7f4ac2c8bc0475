// Copyright © 2024 The ELPS authors

package diagnostic

import "github.com/luthersystems/typecov/rx"

// Scope says what a message or invalidation applies to.
type Scope string

const (
	ScopeFile    Scope = "file"
	ScopeProject Scope = "project"
	ScopeAll     Scope = "all"
)

// MessageType is the severity of a provider message as shown by a display
// layer.
type MessageType string

const (
	TypeError   MessageType = "Error"
	TypeWarning MessageType = "Warning"
	TypeInfo    MessageType = "Info"
)

// Severity maps t onto the CLI renderer's severity levels.
func (t MessageType) Severity() Severity {
	switch t {
	case TypeError:
		return SeverityError
	case TypeWarning:
		return SeverityWarning
	default:
		return SeverityNote
	}
}

// FileMessage is a diagnostic attached to a range of one file.
type FileMessage struct {
	Scope        Scope       `json:"scope" yaml:"scope"`
	ProviderName string      `json:"providerName" yaml:"providerName"`
	Type         MessageType `json:"type" yaml:"type"`
	FilePath     string      `json:"filePath" yaml:"filePath"`
	Range        Range       `json:"range" yaml:"range"`
	Text         string      `json:"text" yaml:"text"`
}

// ProviderUpdate replaces the messages a provider has published for each
// file path it names.
type ProviderUpdate struct {
	FilePathToMessages map[string][]FileMessage
}

// InvalidationMessage tells a display layer to drop messages previously
// published by a provider. Scope is ScopeAll or ScopeFile; FilePaths is only
// meaningful for ScopeFile.
type InvalidationMessage struct {
	Scope     Scope
	FilePaths []string
}

// InvalidateAll returns the invalidation that clears every message of a
// provider.
func InvalidateAll() InvalidationMessage {
	return InvalidationMessage{Scope: ScopeAll}
}

// InvalidateFiles returns an invalidation limited to paths.
func InvalidateFiles(paths ...string) InvalidationMessage {
	return InvalidationMessage{Scope: ScopeFile, FilePaths: paths}
}

// ObservableProvider is a diagnostic provider expressed as two independent
// push streams.
type ObservableProvider interface {
	Updates() rx.Observable[ProviderUpdate]
	Invalidations() rx.Observable[InvalidationMessage]
}
