// Copyright © 2024 The ELPS authors

package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricOutcomes       = "typecov.outcomes.total"
	metricUpdates        = "typecov.updates.total"
	metricMessages       = "typecov.messages.total"
	metricInvalidations  = "typecov.invalidations.total"
	metricAnalysis       = "typecov.analysis.duration.seconds"
	metricAnalysisErrors = "typecov.analysis.errors.total"

	attrKind     = "kind"
	attrEnabled  = "enabled"
	attrReason   = "reason"
	attrProvider = "provider"
)

var analysisBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// ReconcilerMetrics counts what the diagnostics reconciler receives and
// emits. A nil *ReconcilerMetrics records nothing.
type ReconcilerMetrics struct {
	outcomes      metric.Int64Counter
	updates       metric.Int64Counter
	messages      metric.Int64Counter
	invalidations metric.Int64Counter
}

// NewReconcilerMetrics creates the reconciler instruments on mt.
func NewReconcilerMetrics(mt metric.Meter) (*ReconcilerMetrics, error) {
	var m ReconcilerMetrics
	var err error
	if m.outcomes, err = counter(mt, metricOutcomes, "Analysis outcomes received", "{outcome}"); err != nil {
		return nil, err
	}
	if m.updates, err = counter(mt, metricUpdates, "Diagnostic updates published", "{update}"); err != nil {
		return nil, err
	}
	if m.messages, err = counter(mt, metricMessages, "Diagnostic messages published", "{message}"); err != nil {
		return nil, err
	}
	if m.invalidations, err = counter(mt, metricInvalidations, "Invalidations published", "{invalidation}"); err != nil {
		return nil, err
	}
	return &m, nil
}

func counter(mt metric.Meter, name, desc, unit string) (metric.Int64Counter, error) {
	c, err := mt.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return c, nil
}

// RecordOutcome counts an incoming outcome. enabled is false when the
// outcome arrived while publishing was disabled.
func (m *ReconcilerMetrics) RecordOutcome(ctx context.Context, kind string, enabled bool) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.Bool(attrEnabled, enabled),
	))
}

// RecordUpdate counts one published update carrying n messages.
func (m *ReconcilerMetrics) RecordUpdate(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.updates.Add(ctx, 1)
	m.messages.Add(ctx, int64(n))
}

// RecordInvalidation counts one published invalidation.
func (m *ReconcilerMetrics) RecordInvalidation(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.invalidations.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// AnalysisMetrics times coverage provider calls. A nil *AnalysisMetrics
// records nothing.
type AnalysisMetrics struct {
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewAnalysisMetrics creates the provider instruments on mt.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	d, err := mt.Float64Histogram(metricAnalysis,
		metric.WithDescription("Coverage provider call duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAnalysis, err)
	}
	e, err := counter(mt, metricAnalysisErrors, "Coverage provider failures", "{error}")
	if err != nil {
		return nil, err
	}
	return &AnalysisMetrics{duration: d, errors: e}, nil
}

// RecordAnalysis records one provider call.
func (m *AnalysisMetrics) RecordAnalysis(ctx context.Context, provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrProvider, provider))
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
