// Copyright © 2024 The ELPS authors

package activeeditor

import (
	"sync"

	"github.com/luthersystems/typecov/coverage"
	"github.com/luthersystems/typecov/rx"
)

// ProviderRegistry holds the coverage providers available to a Service.
type ProviderRegistry struct {
	mu      sync.RWMutex
	entries []*registration
}

type registration struct {
	provider coverage.Provider
}

// NewProviderRegistry returns an empty registry.
func NewProviderRegistry(providers ...coverage.Provider) *ProviderRegistry {
	r := &ProviderRegistry{}
	for _, p := range providers {
		r.Add(p)
	}
	return r
}

// Add registers p. Unsubscribing the returned handle removes it again.
func (r *ProviderRegistry) Add(p coverage.Provider) rx.Subscription {
	reg := &registration{provider: p}
	r.mu.Lock()
	r.entries = append(r.entries, reg)
	r.mu.Unlock()
	return rx.SubscriptionFunc(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.entries {
			if e == reg {
				r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
				return
			}
		}
	})
}

// Find returns the highest priority provider claiming grammar, or nil. On
// equal priority the earliest registration wins.
func (r *ProviderRegistry) Find(grammar string) coverage.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best coverage.Provider
	for _, e := range r.entries {
		if !coverage.Handles(e.provider, grammar) {
			continue
		}
		if best == nil || e.provider.Priority() > best.Priority() {
			best = e.provider
		}
	}
	return best
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
