// Copyright © 2024 The ELPS authors

package coverage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/observability"
	"github.com/luthersystems/typecov/rx"
)

// DiagnosticProvider reconciles an AnalysisOutcome stream and an enabled
// stream into diagnostic updates and invalidations.
//
// While the toggle is on:
//   - a ResultOutcome with a result publishes one update for its file;
//   - a ResultOutcome without a result publishes nothing;
//   - NotTextEditor, NoProvider, ProviderError and PaneChange publish one
//     invalidate-all;
//   - Edit and Save publish nothing, so diagnostics stay visible until the
//     next result or context change.
//
// Switching the toggle from on to off publishes one invalidate-all. While
// it is off nothing is published. The toggle starts off.
//
// Both output streams are hot. The provider subscribes to its inputs when
// the first output subscriber arrives and releases them, resetting the
// toggle, when the last one leaves. Input events are processed one at a
// time in arrival order regardless of the producing goroutine.
type DiagnosticProvider struct {
	results rx.Observable[AnalysisOutcome]
	enabled rx.Observable[bool]

	updates       *rx.Subject[diagnostic.ProviderUpdate]
	invalidations *rx.Subject[diagnostic.InvalidationMessage]

	serial rx.Serializer
	state  reconciler

	mu       sync.Mutex
	refs     int
	inputs   *rx.CompositeSubscription
	disposed bool

	logger  *slog.Logger
	metrics *observability.ReconcilerMetrics
}

var _ diagnostic.ObservableProvider = (*DiagnosticProvider)(nil)

// Option configures a DiagnosticProvider.
type Option func(*DiagnosticProvider)

// WithLogger sets the logger used for debug traces and recovered panics.
func WithLogger(l *slog.Logger) Option {
	return func(p *DiagnosticProvider) { p.logger = l }
}

// WithMetrics records outcome, update and invalidation counts.
func WithMetrics(m *observability.ReconcilerMetrics) Option {
	return func(p *DiagnosticProvider) { p.metrics = m }
}

// NewDiagnosticProvider builds a provider over results and enabled. No
// input is consumed until Updates or Invalidations is subscribed.
func NewDiagnosticProvider(results rx.Observable[AnalysisOutcome], enabled rx.Observable[bool], opts ...Option) *DiagnosticProvider {
	p := &DiagnosticProvider{
		results:       results,
		enabled:       enabled,
		updates:       rx.NewSubject[diagnostic.ProviderUpdate](),
		invalidations: rx.NewSubject[diagnostic.InvalidationMessage](),
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}

	onPanic := func(r any) {
		p.logger.Error("diagnostics subscriber panicked", "panic", r)
	}
	p.updates.SetPanicHandler(onPanic)
	p.invalidations.SetPanicHandler(onPanic)
	p.serial.OnPanic = func(r any) {
		p.logger.Error("coverage reconciler panicked", "panic", r)
	}

	p.state = reconciler{
		update: func(u diagnostic.ProviderUpdate, n int) {
			p.metrics.RecordUpdate(context.Background(), n)
			p.updates.Next(u)
		},
		invalidate: func(reason string) {
			p.metrics.RecordInvalidation(context.Background(), reason)
			p.invalidations.Next(diagnostic.InvalidateAll())
		},
		logger: p.logger,
	}
	return p
}

// Updates implements diagnostic.ObservableProvider.
func (p *DiagnosticProvider) Updates() rx.Observable[diagnostic.ProviderUpdate] {
	return refCounted[diagnostic.ProviderUpdate](p, p.updates)
}

// Invalidations implements diagnostic.ObservableProvider.
func (p *DiagnosticProvider) Invalidations() rx.Observable[diagnostic.InvalidationMessage] {
	return refCounted[diagnostic.InvalidationMessage](p, p.invalidations)
}

// Dispose releases the input subscriptions and drops every output
// subscriber. It is idempotent.
func (p *DiagnosticProvider) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	p.refs = 0
	p.disconnectLocked()
	p.mu.Unlock()

	p.updates.Complete()
	p.invalidations.Complete()
}

func refCounted[T any](p *DiagnosticProvider, s *rx.Subject[T]) rx.Observable[T] {
	return rx.ObservableFunc[T](func(fn func(T)) rx.Subscription {
		sub := s.Subscribe(fn)
		if !p.retain() {
			sub.Unsubscribe()
			return rx.SubscriptionFunc(nil)
		}
		return rx.SubscriptionFunc(func() {
			sub.Unsubscribe()
			p.release()
		})
	})
}

func (p *DiagnosticProvider) retain() bool {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return false
	}
	p.refs++
	var inputs *rx.CompositeSubscription
	if p.refs == 1 {
		inputs = rx.NewCompositeSubscription()
		p.inputs = inputs
	}
	p.mu.Unlock()

	// Inputs may emit while being subscribed, and subscribers reached from
	// those emissions may retain or release, so p.mu must not be held.
	if inputs != nil {
		p.connect(inputs)
	}
	return true
}

func (p *DiagnosticProvider) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed || p.refs == 0 {
		return
	}
	p.refs--
	if p.refs == 0 {
		p.disconnectLocked()
	}
}

// connect subscribes both inputs into inputs. A release racing with it
// disposes inputs, which drops the late subscriptions.
func (p *DiagnosticProvider) connect(inputs *rx.CompositeSubscription) {
	inputs.Add(p.enabled.Subscribe(func(on bool) {
		p.serial.Do(func() {
			if !inputs.Disposed() {
				p.state.setEnabled(on)
			}
		})
	}))
	inputs.Add(p.results.Subscribe(func(o AnalysisOutcome) {
		p.serial.Do(func() {
			if inputs.Disposed() {
				return
			}
			p.metrics.RecordOutcome(context.Background(), o.Kind().String(), p.state.enabled)
			p.state.handle(o)
		})
	}))
}

func (p *DiagnosticProvider) disconnectLocked() {
	if p.inputs == nil {
		return
	}
	p.inputs.Unsubscribe()
	p.inputs = nil
	// The gate belongs to the subscription; a new one starts closed.
	p.serial.Do(func() { p.state.enabled = false })
}

// reconciler holds the toggle state and applies the processing rules. It
// is only touched from the provider's serializer.
type reconciler struct {
	enabled    bool
	update     func(u diagnostic.ProviderUpdate, messages int)
	invalidate func(reason string)
	logger     *slog.Logger
}

var _ OutcomeVisitor = (*reconciler)(nil)

func (r *reconciler) setEnabled(on bool) {
	if on == r.enabled {
		return
	}
	r.enabled = on
	if !on {
		r.invalidate("disabled")
	}
}

func (r *reconciler) handle(o AnalysisOutcome) {
	if !r.enabled || o == nil {
		return
	}
	o.Accept(r)
}

func (r *reconciler) VisitResult(o ResultOutcome) {
	if o.Result == nil {
		return
	}
	if o.Editor == nil {
		r.logger.Warn("dropping coverage result without an editor")
		return
	}
	u := UpdateForResult(o.Editor, o.Result)
	r.update(u, len(o.Result.UncoveredRanges))
}

func (r *reconciler) VisitNotTextEditor(NotTextEditor) {
	r.invalidate(KindNotTextEditor.String())
}

func (r *reconciler) VisitNoProvider(NoProvider) {
	r.invalidate(KindNoProvider.String())
}

func (r *reconciler) VisitProviderError(o ProviderError) {
	r.logger.Debug("coverage provider failed", "error", o.Err)
	r.invalidate(KindProviderError.String())
}

func (r *reconciler) VisitPaneChange(PaneChange) {
	r.invalidate(KindPaneChange.String())
}

func (r *reconciler) VisitEdit(Edit) {}

func (r *reconciler) VisitSave(Save) {}
