// Copyright © 2024 The ELPS authors

package coverage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/typecov/diagnostic"
	"github.com/luthersystems/typecov/rx"
)

type harness struct {
	results  *rx.Subject[AnalysisOutcome]
	enabled  *rx.Subject[bool]
	provider *DiagnosticProvider

	mu            sync.Mutex
	updates       []diagnostic.ProviderUpdate
	invalidations []diagnostic.InvalidationMessage
	subs          *rx.CompositeSubscription
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		results: rx.NewSubject[AnalysisOutcome](),
		enabled: rx.NewSubject[bool](),
	}
	h.provider = NewDiagnosticProvider(h.results, h.enabled)
	h.subs = rx.NewCompositeSubscription(
		h.provider.Updates().Subscribe(func(u diagnostic.ProviderUpdate) {
			h.mu.Lock()
			h.updates = append(h.updates, u)
			h.mu.Unlock()
		}),
		h.provider.Invalidations().Subscribe(func(m diagnostic.InvalidationMessage) {
			h.mu.Lock()
			h.invalidations = append(h.invalidations, m)
			h.mu.Unlock()
		}),
	)
	t.Cleanup(h.provider.Dispose)
	return h
}

func (h *harness) gotUpdates() []diagnostic.ProviderUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.updates
}

func (h *harness) gotInvalidations() []diagnostic.InvalidationMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalidations
}

type stubProvider struct{}

func (stubProvider) Coverage(_ context.Context, _ Editor) (*Result, error) { return nil, nil }
func (stubProvider) Priority() int                                         { return 1 }
func (stubProvider) GrammarScopes() []string                               { return []string{"text.test"} }
func (stubProvider) DisplayName() string                                   { return "stub" }

var fooEditor = FileEditor{FilePath: "foo", GrammarName: "text.test"}

func resultFor(pct float64, ranges ...Range) ResultOutcome {
	return ResultOutcome{
		Provider: stubProvider{},
		Editor:   fooEditor,
		Result:   &Result{Percentage: pct, UncoveredRanges: ranges},
	}
}

func allVariants() []AnalysisOutcome {
	return []AnalysisOutcome{
		resultFor(90, diagnostic.NewRange(1, 2, 3, 4)),
		ResultOutcome{Provider: stubProvider{}, Editor: fooEditor},
		NotTextEditor{},
		NoProvider{Grammar: "text.plain"},
		ProviderError{Provider: stubProvider{}, Editor: fooEditor, Err: errors.New("boom")},
		PaneChange{},
		Edit{Editor: fooEditor},
		Save{Editor: fooEditor},
	}
}

func TestScenarioResultWhileEnabled(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	h.results.Next(resultFor(90, diagnostic.NewRange(1, 2, 3, 4)))

	want := []diagnostic.ProviderUpdate{{
		FilePathToMessages: map[string][]diagnostic.FileMessage{
			"foo": {{
				Scope:        diagnostic.ScopeFile,
				ProviderName: "Type Coverage",
				Type:         diagnostic.TypeWarning,
				FilePath:     "foo",
				Range:        diagnostic.NewRange(1, 2, 3, 4),
				Text:         "Not covered by the type system",
			}},
		},
	}}
	assert.Equal(t, want, h.gotUpdates())
	assert.Empty(t, h.gotInvalidations())
}

func TestScenarioResultBeforeEnable(t *testing.T) {
	h := newHarness(t)
	h.results.Next(resultFor(90, diagnostic.NewRange(1, 2, 3, 4)))
	assert.Empty(t, h.gotUpdates())
	assert.Empty(t, h.gotInvalidations())
}

func TestScenarioDisableThenResult(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	h.enabled.Next(false)
	h.results.Next(resultFor(90, diagnostic.NewRange(1, 2, 3, 4)))

	assert.Empty(t, h.gotUpdates())
	assert.Equal(t, []diagnostic.InvalidationMessage{diagnostic.InvalidateAll()}, h.gotInvalidations())
}

func TestScenarioEditAndSaveKeepDiagnostics(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	h.results.Next(Edit{Editor: fooEditor})
	h.results.Next(Save{Editor: fooEditor})

	assert.Empty(t, h.gotUpdates())
	assert.Empty(t, h.gotInvalidations())
}

func TestScenarioPaneChange(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	h.results.Next(PaneChange{})

	assert.Empty(t, h.gotUpdates())
	assert.Equal(t, []diagnostic.InvalidationMessage{{Scope: diagnostic.ScopeAll}}, h.gotInvalidations())
}

func TestClosedGateSuppressesEveryVariant(t *testing.T) {
	for _, o := range allVariants() {
		t.Run(o.Kind().String(), func(t *testing.T) {
			h := newHarness(t)
			h.results.Next(o)

			h.enabled.Next(true)
			h.enabled.Next(false)
			h.results.Next(o)

			assert.Empty(t, h.gotUpdates())
			// Only the disable itself invalidates.
			assert.Len(t, h.gotInvalidations(), 1)
		})
	}
}

func TestContextLossInvalidatesOnce(t *testing.T) {
	outcomes := []AnalysisOutcome{
		NotTextEditor{},
		NoProvider{Grammar: "text.plain"},
		ProviderError{Provider: stubProvider{}, Editor: fooEditor, Err: errors.New("boom")},
		PaneChange{},
	}
	for _, o := range outcomes {
		t.Run(o.Kind().String(), func(t *testing.T) {
			require.True(t, IsContextLoss(o))
			h := newHarness(t)
			h.enabled.Next(true)
			h.results.Next(o)

			assert.Empty(t, h.gotUpdates())
			assert.Equal(t, []diagnostic.InvalidationMessage{diagnostic.InvalidateAll()}, h.gotInvalidations())
		})
	}
}

func TestEmptyRangesPublishEmptyUpdate(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	h.results.Next(resultFor(100))

	updates := h.gotUpdates()
	require.Len(t, updates, 1)
	msgs, ok := updates[0].FilePathToMessages["foo"]
	require.True(t, ok, "update should carry the file path")
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
	assert.Empty(t, h.gotInvalidations())
}

func TestNilResultPublishesNothing(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	h.results.Next(ResultOutcome{Provider: stubProvider{}, Editor: fooEditor})

	assert.Empty(t, h.gotUpdates())
	assert.Empty(t, h.gotInvalidations())
}

func TestResultWithoutEditorIsDropped(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	assert.NotPanics(t, func() {
		h.results.Next(ResultOutcome{Provider: stubProvider{}, Result: &Result{Percentage: 50}})
	})
	assert.Empty(t, h.gotUpdates())
}

func TestToggleTransitions(t *testing.T) {
	h := newHarness(t)

	h.enabled.Next(false)
	assert.Empty(t, h.gotInvalidations(), "initial false is not a transition")

	h.enabled.Next(true)
	h.enabled.Next(true)
	assert.Empty(t, h.gotInvalidations(), "enabling never invalidates")

	h.enabled.Next(false)
	h.enabled.Next(false)
	assert.Len(t, h.gotInvalidations(), 1, "repeated false is a no-op")

	h.enabled.Next(true)
	h.enabled.Next(false)
	assert.Len(t, h.gotInvalidations(), 2)
}

func TestUpdatesFollowRangeOrder(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	ranges := []Range{
		diagnostic.NewRange(9, 0, 9, 4),
		diagnostic.NewRange(1, 0, 1, 8),
		diagnostic.NewRange(4, 2, 6, 1),
	}
	h.results.Next(resultFor(40, ranges...))

	updates := h.gotUpdates()
	require.Len(t, updates, 1)
	msgs := updates[0].FilePathToMessages["foo"]
	require.Len(t, msgs, len(ranges))
	for i, m := range msgs {
		assert.Equal(t, ranges[i], m.Range)
	}
}

func TestInputsFollowSubscribers(t *testing.T) {
	results := rx.NewSubject[AnalysisOutcome]()
	enabled := rx.NewSubject[bool]()
	p := NewDiagnosticProvider(results, enabled)
	defer p.Dispose()

	assert.False(t, results.Observed())
	assert.False(t, enabled.Observed())

	var updates int
	us := p.Updates().Subscribe(func(diagnostic.ProviderUpdate) { updates++ })
	is := p.Invalidations().Subscribe(func(diagnostic.InvalidationMessage) {})
	assert.True(t, results.Observed())
	assert.True(t, enabled.Observed())

	enabled.Next(true)
	us.Unsubscribe()
	assert.True(t, results.Observed(), "one output subscriber remains")
	is.Unsubscribe()
	assert.False(t, results.Observed())
	assert.False(t, enabled.Observed())

	// A new subscription starts with the gate closed.
	us = p.Updates().Subscribe(func(diagnostic.ProviderUpdate) { updates++ })
	defer us.Unsubscribe()
	results.Next(resultFor(10, diagnostic.NewRange(0, 0, 0, 1)))
	assert.Equal(t, 0, updates)
	enabled.Next(true)
	results.Next(resultFor(10, diagnostic.NewRange(0, 0, 0, 1)))
	assert.Equal(t, 1, updates)
}

func TestDisposeReleasesInputs(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)
	require.True(t, h.results.Observed())

	h.provider.Dispose()
	h.provider.Dispose()
	assert.False(t, h.results.Observed())
	assert.False(t, h.enabled.Observed())

	h.results.Next(PaneChange{})
	assert.Empty(t, h.gotInvalidations())

	// Subscribing after Dispose is inert.
	sub := h.provider.Updates().Subscribe(func(diagnostic.ProviderUpdate) {})
	sub.Unsubscribe()
	assert.False(t, h.results.Observed())
}

func TestSubscriberPanicDoesNotStopDelivery(t *testing.T) {
	results := rx.NewSubject[AnalysisOutcome]()
	enabled := rx.NewSubject[bool]()
	p := NewDiagnosticProvider(results, enabled)
	defer p.Dispose()

	var got int
	s1 := p.Updates().Subscribe(func(diagnostic.ProviderUpdate) { panic("subscriber bug") })
	s2 := p.Updates().Subscribe(func(diagnostic.ProviderUpdate) { got++ })
	defer s1.Unsubscribe()
	defer s2.Unsubscribe()

	enabled.Next(true)
	results.Next(resultFor(50, diagnostic.NewRange(0, 0, 0, 1)))
	results.Next(resultFor(50, diagnostic.NewRange(0, 0, 0, 1)))
	assert.Equal(t, 2, got)
}

func TestReentrantInputIsSerialized(t *testing.T) {
	results := rx.NewSubject[AnalysisOutcome]()
	enabled := rx.NewSubject[bool]()
	p := NewDiagnosticProvider(results, enabled)
	defer p.Dispose()

	var order []string
	us := p.Updates().Subscribe(func(diagnostic.ProviderUpdate) {
		order = append(order, "update")
		// Disabling from inside a delivery runs after this update returns.
		enabled.Next(false)
		order = append(order, "update-return")
	})
	is := p.Invalidations().Subscribe(func(diagnostic.InvalidationMessage) {
		order = append(order, "invalidate")
	})
	defer us.Unsubscribe()
	defer is.Unsubscribe()

	enabled.Next(true)
	results.Next(resultFor(50, diagnostic.NewRange(0, 0, 0, 1)))
	assert.Equal(t, []string{"update", "update-return", "invalidate"}, order)
}

func TestConcurrentProducers(t *testing.T) {
	h := newHarness(t)
	h.enabled.Next(true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				h.results.Next(resultFor(50, diagnostic.NewRange(j, 0, j, 1)))
			}
		}()
	}
	wg.Wait()
	assert.Len(t, h.gotUpdates(), 500)
	assert.Empty(t, h.gotInvalidations())
}

func TestInputsEmittingOnSubscribe(t *testing.T) {
	enabled := rx.ObservableFunc[bool](func(fn func(bool)) rx.Subscription {
		fn(true)
		return rx.SubscriptionFunc(nil)
	})
	results := rx.ObservableFunc[AnalysisOutcome](func(fn func(AnalysisOutcome)) rx.Subscription {
		fn(resultFor(50, diagnostic.NewRange(0, 0, 0, 3)))
		return rx.SubscriptionFunc(nil)
	})
	p := NewDiagnosticProvider(results, enabled)
	t.Cleanup(p.Dispose)

	var (
		mu      sync.Mutex
		updates int
		nested  rx.Subscription
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sub := p.Updates().Subscribe(func(diagnostic.ProviderUpdate) {
			mu.Lock()
			updates++
			mu.Unlock()
			// Subscribing from inside a delivery made during connect.
			s := p.Invalidations().Subscribe(func(diagnostic.InvalidationMessage) {})
			mu.Lock()
			nested = s
			mu.Unlock()
		})
		mu.Lock()
		n := nested
		mu.Unlock()
		if assert.NotNil(t, n) {
			n.Unsubscribe()
		}
		sub.Unsubscribe()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribing from a delivery made during connect did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, updates)
	assert.False(t, p.state.enabled)
}
