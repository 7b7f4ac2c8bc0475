// Copyright © 2024 The ELPS authors

// Package activeeditor turns editor focus and buffer events into the
// coverage.AnalysisOutcome stream consumed by the diagnostics reconciler.
package activeeditor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/observability"
	"github.com/luthersystems/typecov/rx"
)

// DefaultDebounce delays re-analysis after an edit.
const DefaultDebounce = 300 * time.Millisecond

const tracerName = "github.com/luthersystems/typecov/activeeditor"

// Service tracks the active editor and runs its coverage provider.
//
// Outcomes are emitted in the order the events that caused them were
// accepted. Analysis results are dropped when the editor they were
// computed for is no longer active or a newer analysis has started.
type Service struct {
	registry *ProviderRegistry
	debounce time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.AnalysisMetrics

	outcomes *rx.Subject[coverage.AnalysisOutcome]
	serial   rx.Serializer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	active   coverage.Editor
	seq      uint64
	inflight context.CancelFunc
	timer    *time.Timer
	pending  []coverage.AnalysisOutcome
	closed   bool
}

// Option configures a Service.
type Option func(*Service)

// WithDebounce sets the delay between an edit and its re-analysis.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) { s.debounce = d }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer sets the tracer used for provider calls.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMetrics records provider call durations and failures.
func WithMetrics(m *observability.AnalysisMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService returns a service with no active editor.
func NewService(registry *ProviderRegistry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		outcomes: rx.NewSubject[coverage.AnalysisOutcome](),
	}
	for _, o := range opts {
		o(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Outcomes is the hot outcome stream.
func (s *Service) Outcomes() rx.Observable[coverage.AnalysisOutcome] {
	return s.outcomes
}

// Active returns the active editor, or nil.
func (s *Service) Active() coverage.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive moves focus to e. A nil editor means focus moved to something
// that is not a text editor. Focusing the already active document is a
// no-op.
func (s *Service) SetActive(e coverage.Editor) {
	s.mu.Lock()
	if s.closed || sameEditor(s.active, e) {
		s.mu.Unlock()
		return
	}
	s.activateLocked(e)
	s.mu.Unlock()
	s.flush()
}

// Edited reports a buffer change. Only edits to the active editor count.
func (s *Service) Edited(e coverage.Editor) {
	s.mu.Lock()
	if s.closed || !samePath(s.active, e) {
		s.mu.Unlock()
		return
	}
	s.active = e
	s.pending = append(s.pending, coverage.Edit{Editor: e})
	s.analyzeLocked(e, s.debounce)
	s.mu.Unlock()
	s.flush()
}

// Saved reports a save of e. Saving the active editor re-analyzes it at
// once.
func (s *Service) Saved(e coverage.Editor) {
	s.mu.Lock()
	if s.closed || !samePath(s.active, e) {
		s.mu.Unlock()
		return
	}
	s.active = e
	s.pending = append(s.pending, coverage.Save{Editor: e})
	s.analyzeLocked(e, 0)
	s.mu.Unlock()
	s.flush()
}

// Closed reports that e's document was closed. Closing the active editor
// loses focus.
func (s *Service) Closed(e coverage.Editor) {
	s.mu.Lock()
	if s.closed || !samePath(s.active, e) {
		s.mu.Unlock()
		return
	}
	s.activateLocked(nil)
	s.mu.Unlock()
	s.flush()
}

// Close cancels in-flight analyses and pending debounces, waits for them
// to return and completes the outcome stream.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.outcomes.Complete()
}

func (s *Service) activateLocked(e coverage.Editor) {
	s.stopLocked()
	s.active = e
	s.pending = append(s.pending, coverage.PaneChange{})
	if e == nil {
		s.pending = append(s.pending, coverage.NotTextEditor{})
		return
	}
	p := s.registry.Find(e.Grammar())
	if p == nil {
		s.pending = append(s.pending, coverage.NoProvider{Grammar: e.Grammar()})
		return
	}
	s.analyzeLocked(e, 0)
}

// stopLocked supersedes whatever analysis is scheduled or running.
func (s *Service) stopLocked() {
	s.seq++
	if s.timer != nil {
		if s.timer.Stop() {
			s.wg.Done()
		}
		s.timer = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}

func (s *Service) analyzeLocked(e coverage.Editor, delay time.Duration) {
	s.stopLocked()
	p := s.registry.Find(e.Grammar())
	if p == nil {
		s.pending = append(s.pending, coverage.NoProvider{Grammar: e.Grammar()})
		return
	}
	seq := s.seq
	ctx, cancel := context.WithCancel(s.ctx)
	s.inflight = cancel
	s.wg.Add(1)
	if delay <= 0 {
		go s.analyze(ctx, seq, p, e)
		return
	}
	s.timer = time.AfterFunc(delay, func() { s.analyze(ctx, seq, p, e) })
}

func (s *Service) analyze(ctx context.Context, seq uint64, p coverage.Provider, e coverage.Editor) {
	defer s.wg.Done()
	if ctx.Err() != nil {
		return
	}

	ctx, span := s.tracer.Start(ctx, "coverage.analyze", trace.WithAttributes(
		attribute.String("provider", p.DisplayName()),
		attribute.String("file.path", e.Path()),
		attribute.String("grammar", e.Grammar()),
	))
	start := time.Now()
	result, err := p.Coverage(ctx, e)
	s.metrics.RecordAnalysis(ctx, p.DisplayName(), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if result != nil {
		span.SetAttributes(
			attribute.Float64("coverage.percentage", result.Percentage),
			attribute.Int("coverage.uncovered", len(result.UncoveredRanges)),
		)
	}
	span.End()

	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "dropping stale coverage result", "path", e.Path())
		return
	}
	s.inflight = nil
	s.timer = nil
	if err != nil {
		s.logger.WarnContext(ctx, "coverage provider failed", "provider", p.DisplayName(), "path", e.Path(), "error", err)
		s.pending = append(s.pending, coverage.ProviderError{Provider: p, Editor: e, Err: err})
	} else {
		s.pending = append(s.pending, coverage.ResultOutcome{Provider: p, Editor: e, Result: result})
	}
	s.mu.Unlock()
	s.flush()
}

// flush emits pending outcomes in order. Concurrent and re-entrant calls
// fold into the running drain.
func (s *Service) flush() {
	s.serial.Do(func() {
		for {
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				return
			}
			for _, o := range batch {
				s.outcomes.Next(o)
			}
		}
	})
}

func samePath(a, b coverage.Editor) bool {
	return a != nil && b != nil && a.Path() == b.Path()
}

func sameEditor(a, b coverage.Editor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Path() == b.Path() && a.Grammar() == b.Grammar()
}
