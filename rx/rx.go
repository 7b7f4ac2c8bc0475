// Copyright © 2024 The ELPS authors

// Package rx provides small synchronous push streams. A Subject multicasts
// values to the subscribers registered at the time of emission, a
// Subscription releases a registration, and a Serializer runs event handlers
// one at a time so that state shared between several input streams is never
// touched concurrently.
package rx

import "sync"

// Observable is a push-based sequence of values.
type Observable[T any] interface {
	// Subscribe registers fn to receive every value emitted after the call
	// returns. The returned Subscription stops delivery.
	Subscribe(fn func(T)) Subscription
}

// ObservableFunc adapts a subscribe function to the Observable interface.
type ObservableFunc[T any] func(fn func(T)) Subscription

// Subscribe calls f(fn).
func (f ObservableFunc[T]) Subscribe(fn func(T)) Subscription {
	return f(fn)
}

// Subscription is a handle on a registration. Unsubscribe is idempotent and
// safe to call from any goroutine, including from inside a delivery.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc returns a Subscription that runs fn the first time it is
// unsubscribed.
func SubscriptionFunc(fn func()) Subscription {
	return &funcSubscription{fn: fn}
}

type funcSubscription struct {
	once sync.Once
	fn   func()
}

func (s *funcSubscription) Unsubscribe() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}

// CompositeSubscription groups subscriptions so they are released together.
// Subscriptions added after the composite has been released are released
// immediately.
type CompositeSubscription struct {
	mu       sync.Mutex
	subs     []Subscription
	disposed bool
}

// NewCompositeSubscription returns a composite holding subs.
func NewCompositeSubscription(subs ...Subscription) *CompositeSubscription {
	c := &CompositeSubscription{}
	for _, s := range subs {
		c.Add(s)
	}
	return c
}

// Add registers s with the composite.
func (c *CompositeSubscription) Add(s Subscription) {
	if s == nil {
		return
	}
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		s.Unsubscribe()
		return
	}
	c.subs = append(c.subs, s)
	c.mu.Unlock()
}

// Unsubscribe releases every held subscription in reverse order of addition.
func (c *CompositeSubscription) Unsubscribe() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Unsubscribe()
	}
}

// Disposed reports whether Unsubscribe has been called.
func (c *CompositeSubscription) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Map returns an Observable emitting fn(v) for every v emitted by src.
func Map[T, U any](src Observable[T], fn func(T) U) Observable[U] {
	return ObservableFunc[U](func(next func(U)) Subscription {
		return src.Subscribe(func(v T) { next(fn(v)) })
	})
}

// Filter returns an Observable emitting the values of src for which keep
// returns true.
func Filter[T any](src Observable[T], keep func(T) bool) Observable[T] {
	return ObservableFunc[T](func(next func(T)) Subscription {
		return src.Subscribe(func(v T) {
			if keep(v) {
				next(v)
			}
		})
	})
}
