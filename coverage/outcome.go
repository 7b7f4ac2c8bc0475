// Copyright © 2024 The ELPS authors

package coverage

import "errors"

// Kind names an AnalysisOutcome variant.
type Kind int

const (
	KindResult Kind = iota
	KindNotTextEditor
	KindNoProvider
	KindProviderError
	KindPaneChange
	KindEdit
	KindSave
)

var kindNames = [...]string{
	KindResult:        "result",
	KindNotTextEditor: "not-text-editor",
	KindNoProvider:    "no-provider",
	KindProviderError: "provider-error",
	KindPaneChange:    "pane-change",
	KindEdit:          "edit",
	KindSave:          "save",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// AnalysisOutcome is one event on the editor-context stream. The set of
// variants is closed: only the types in this package implement it.
type AnalysisOutcome interface {
	// Kind identifies the variant.
	Kind() Kind
	// Accept calls the visitor method matching the variant.
	Accept(v OutcomeVisitor)

	isAnalysisOutcome()
}

// OutcomeVisitor has one method per AnalysisOutcome variant. Adding a
// variant adds a method here, so every handler fails to compile until it
// handles the new case.
type OutcomeVisitor interface {
	VisitResult(ResultOutcome)
	VisitNotTextEditor(NotTextEditor)
	VisitNoProvider(NoProvider)
	VisitProviderError(ProviderError)
	VisitPaneChange(PaneChange)
	VisitEdit(Edit)
	VisitSave(Save)
}

// ResultOutcome carries a completed analysis of the active editor.
type ResultOutcome struct {
	Provider Provider
	Editor   Editor
	// Result is nil when the provider had nothing to report.
	Result *Result
}

// NotTextEditor reports that focus moved to a pane that is not a text
// editor.
type NotTextEditor struct{}

// NoProvider reports that no coverage provider claims the active editor's
// grammar.
type NoProvider struct {
	Grammar string
}

// ProviderError reports that the provider's analysis failed.
type ProviderError struct {
	Provider Provider
	Editor   Editor
	Err      error
}

// PaneChange reports that the active pane changed.
type PaneChange struct{}

// Edit reports that the active editor's buffer was modified.
type Edit struct {
	Editor Editor
}

// Save reports that the active editor's buffer was saved.
type Save struct {
	Editor Editor
}

func (ResultOutcome) Kind() Kind { return KindResult }
func (NotTextEditor) Kind() Kind { return KindNotTextEditor }
func (NoProvider) Kind() Kind    { return KindNoProvider }
func (ProviderError) Kind() Kind { return KindProviderError }
func (PaneChange) Kind() Kind    { return KindPaneChange }
func (Edit) Kind() Kind          { return KindEdit }
func (Save) Kind() Kind          { return KindSave }

func (o ResultOutcome) Accept(v OutcomeVisitor) { v.VisitResult(o) }
func (o NotTextEditor) Accept(v OutcomeVisitor) { v.VisitNotTextEditor(o) }
func (o NoProvider) Accept(v OutcomeVisitor)    { v.VisitNoProvider(o) }
func (o ProviderError) Accept(v OutcomeVisitor) { v.VisitProviderError(o) }
func (o PaneChange) Accept(v OutcomeVisitor)    { v.VisitPaneChange(o) }
func (o Edit) Accept(v OutcomeVisitor)          { v.VisitEdit(o) }
func (o Save) Accept(v OutcomeVisitor)          { v.VisitSave(o) }

func (ResultOutcome) isAnalysisOutcome() {}
func (NotTextEditor) isAnalysisOutcome() {}
func (NoProvider) isAnalysisOutcome()    {}
func (ProviderError) isAnalysisOutcome() {}
func (PaneChange) isAnalysisOutcome()    {}
func (Edit) isAnalysisOutcome()          {}
func (Save) isAnalysisOutcome()          {}

// ErrMissingEditor is returned when a result is built without an editor.
var ErrMissingEditor = errors.New("coverage: result outcome has no editor")

// NewResultOutcome validates and builds a ResultOutcome. Producers should
// construct results through it so malformed events are rejected before
// they reach the reconciler.
func NewResultOutcome(p Provider, e Editor, r *Result) (ResultOutcome, error) {
	if e == nil {
		return ResultOutcome{}, ErrMissingEditor
	}
	return ResultOutcome{Provider: p, Editor: e, Result: r}, nil
}

// IsContextLoss reports whether o means the current editor/provider
// pairing is no longer valid and previously shown diagnostics are stale.
func IsContextLoss(o AnalysisOutcome) bool {
	switch o.Kind() {
	case KindNotTextEditor, KindNoProvider, KindProviderError, KindPaneChange:
		return true
	default:
		return false
	}
}
