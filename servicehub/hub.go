// Copyright © 2024 The ELPS authors

// Package servicehub is a registry of named, versioned services. A consumer
// asks for a version range and receives the newest provided service that is
// compatible with it.
package servicehub

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/luthersystems/typecov/rx"
)

var (
	// ErrNoService is returned when no compatible service is provided.
	ErrNoService = errors.New("servicehub: no compatible service")
	// ErrBadVersion is returned for versions that are not semantic versions.
	ErrBadVersion = errors.New("servicehub: invalid version")
)

// Hub holds provided services. The zero value is ready to use.
type Hub struct {
	mu       sync.RWMutex
	services map[string][]*entry
}

type entry struct {
	version string
	service any
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{}
}

// Provide registers service under name at version ("1.2.3" or "v1.2.3").
// Unsubscribing the returned handle withdraws it.
func (h *Hub) Provide(name, version string, service any) (rx.Subscription, error) {
	v, err := canonical(version)
	if err != nil {
		return nil, err
	}
	e := &entry{version: v, service: service}
	h.mu.Lock()
	if h.services == nil {
		h.services = make(map[string][]*entry)
	}
	h.services[name] = append(h.services[name], e)
	h.mu.Unlock()

	return rx.SubscriptionFunc(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.services[name]
		for i, x := range list {
			if x == e {
				h.services[name] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(h.services[name]) == 0 {
			delete(h.services, name)
		}
	}), nil
}

// Consume returns the newest service named name whose version has the same
// major version as want and is not older than it. Below 1.0 the minor
// version must match as well. want may be a full version or a "^1.2" style
// range.
func (h *Hub) Consume(name, want string) (any, error) {
	if len(want) > 0 && want[0] == '^' {
		want = want[1:]
	}
	w, err := canonical(want)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	var best *entry
	for _, e := range h.services[name] {
		if !compatible(e.version, w) {
			continue
		}
		// Later registrations win ties.
		if best == nil || semver.Compare(e.version, best.version) >= 0 {
			best = e
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNoService, name, want)
	}
	return best.service, nil
}

func compatible(have, want string) bool {
	if semver.Major(have) != semver.Major(want) || semver.Compare(have, want) < 0 {
		return false
	}
	return semver.Major(want) != "v0" || semver.MajorMinor(have) == semver.MajorMinor(want)
}

// ConsumeAs is Consume with a type assertion to T.
func ConsumeAs[T any](h *Hub, name, want string) (T, error) {
	var zero T
	svc, err := h.Consume(name, want)
	if err != nil {
		return zero, err
	}
	t, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrNoService, name, svc)
	}
	return t, nil
}

func canonical(version string) (string, error) {
	v := version
	if len(v) == 0 || v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrBadVersion, version)
	}
	return semver.Canonical(v), nil
}
