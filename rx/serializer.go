// Copyright © 2024 The ELPS authors

package rx

import "sync"

// Serializer runs functions one at a time in submission order.
//
// The goroutine whose Do call finds the serializer idle becomes the drainer
// and runs queued functions until the queue is empty. A function submitted
// while another one is running, from another goroutine or re-entrantly
// from inside the running function, is queued and Do returns immediately;
// the drainer runs it after the current function returns. When the caller
// is the only producer, Do therefore behaves synchronously.
type Serializer struct {
	mu      sync.Mutex
	queue   []func()
	running bool

	// OnPanic receives values recovered from panicking functions. The
	// default logs them with the default slog logger.
	OnPanic PanicHandler
}

// Do submits fn.
func (s *Serializer) Do(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.run(next)
		s.mu.Lock()
	}
	s.running = false
	s.mu.Unlock()
}

func (s *Serializer) run(fn func()) {
	onPanic := s.OnPanic
	if onPanic == nil {
		onPanic = logPanic
	}
	defer func() {
		if r := recover(); r != nil {
			onPanic(r)
		}
	}()
	fn()
}
