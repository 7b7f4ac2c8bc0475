// Copyright © 2024 The ELPS authors

package rx

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// PanicHandler receives the value recovered from a panicking subscriber or
// serialized function.
type PanicHandler func(recovered any)

func logPanic(recovered any) {
	slog.Default().Error("rx: recovered panic in subscriber", "panic", recovered)
}

// Subject is a hot, multicast Observable. Values passed to Next are
// delivered synchronously, in subscription order, to the subscribers
// registered when Next is called; late subscribers miss earlier values.
//
// A panic in one subscriber is recovered and reported to the subject's
// PanicHandler; the remaining subscribers still receive the value.
type Subject[T any] struct {
	mu        sync.Mutex
	observers []*observer[T]
	completed bool
	onPanic   PanicHandler
}

type observer[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// NewSubject returns an empty subject. Subscriber panics are logged with the
// default slog logger.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{onPanic: logPanic}
}

// SetPanicHandler replaces the handler used for subscriber panics.
func (s *Subject[T]) SetPanicHandler(h PanicHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		h = logPanic
	}
	s.onPanic = h
}

// Subscribe implements Observable.
func (s *Subject[T]) Subscribe(fn func(T)) Subscription {
	o := &observer[T]{fn: fn}
	o.active.Store(true)

	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return SubscriptionFunc(nil)
	}
	s.observers = append(s.observers, o)
	s.mu.Unlock()

	return SubscriptionFunc(func() {
		o.active.Store(false)
		s.remove(o)
	})
}

func (s *Subject[T]) remove(o *observer[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = slices.DeleteFunc(s.observers, func(x *observer[T]) bool { return x == o })
}

// Next delivers v to every current subscriber. Next on a completed subject
// is a no-op.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	observers := slices.Clone(s.observers)
	onPanic := s.onPanic
	s.mu.Unlock()

	for _, o := range observers {
		// A subscriber may have been released by an earlier one in this
		// same delivery.
		if !o.active.Load() {
			continue
		}
		deliver(o.fn, v, onPanic)
	}
}

func deliver[T any](fn func(T), v T, onPanic PanicHandler) {
	defer func() {
		if r := recover(); r != nil {
			onPanic(r)
		}
	}()
	fn(v)
}

// Complete drops all subscribers. Later calls to Next and Subscribe have no
// effect.
func (s *Subject[T]) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.observers {
		o.active.Store(false)
	}
	s.observers = nil
	s.completed = true
}

// Observed reports whether the subject has at least one subscriber.
func (s *Subject[T]) Observed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers) > 0
}
