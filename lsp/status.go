// Copyright © 2024 The ELPS authors

package lsp

import (
	"sync"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/rx"
)

// MethodStatus is the server-to-client notification carrying the active
// document's coverage. Its params are a StatusParams, or null when there
// is nothing to show.
const MethodStatus = "typecov/status"

// StatusParams reports the coverage of one document.
type StatusParams struct {
	URI        string  `json:"uri"`
	Percentage float64 `json:"percentage"`
	Uncovered  int     `json:"uncovered"`
}

// statusReporter follows the outcome stream and the toggle and sends
// MethodStatus notifications for the status bar.
type statusReporter struct {
	notify func(method string, params any)

	mu      sync.Mutex
	enabled bool
	last    *StatusParams
}

func newStatusReporter(notify func(method string, params any)) *statusReporter {
	return &statusReporter{notify: notify}
}

func (r *statusReporter) attach(outcomes rx.Observable[coverage.AnalysisOutcome], enabled rx.Observable[bool]) rx.Subscription {
	return rx.NewCompositeSubscription(
		enabled.Subscribe(r.setEnabled),
		outcomes.Subscribe(r.outcome),
	)
}

func (r *statusReporter) setEnabled(on bool) {
	r.mu.Lock()
	changed := on != r.enabled
	r.enabled = on
	last := r.last
	r.mu.Unlock()
	if !changed {
		return
	}
	if on && last != nil {
		r.notify(MethodStatus, last)
		return
	}
	if !on {
		r.notify(MethodStatus, nil)
	}
}

func (r *statusReporter) outcome(o coverage.AnalysisOutcome) {
	var next *StatusParams
	switch o := o.(type) {
	case coverage.ResultOutcome:
		if o.Result == nil || o.Editor == nil {
			return
		}
		next = &StatusParams{
			URI:        pathToURI(o.Editor.Path()),
			Percentage: o.Result.Percentage,
			Uncovered:  len(o.Result.UncoveredRanges),
		}
	default:
		if !coverage.IsContextLoss(o) {
			return
		}
	}

	r.mu.Lock()
	r.last = next
	on := r.enabled
	r.mu.Unlock()
	if !on {
		return
	}
	if next == nil {
		r.notify(MethodStatus, nil)
		return
	}
	r.notify(MethodStatus, next)
}
