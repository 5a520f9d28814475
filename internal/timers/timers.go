// Package timers provides a resettable one-shot timer with the invariant
// that at most one arm is ever live: Reset cancels the previous arm before
// scheduling the next, and Stop cancels synchronously. A callback from a
// superseded arm never runs, even if it had already fired into the runtime
// timer queue.
package timers

import (
	"sync"
	"time"
)

// Single is a one-shot timer for a single purpose (heartbeat, pong timeout,
// reconnect delay, debounce window). The zero value is ready to use.
type Single struct {
	mu  sync.Mutex
	gen uint64
	t   *time.Timer
}

// Reset arms the timer to call fn after d, cancelling any previous arm.
// fn runs on its own goroutine, outside any Single lock.
func (s *Single) Reset(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen
	if s.t != nil {
		s.t.Stop()
	}
	s.t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			// A Reset or Stop superseded this arm after it fired.
			s.mu.Unlock()
			return
		}
		s.t = nil
		s.mu.Unlock()
		fn()
	})
}

// Stop cancels any pending arm. A callback that has fired into the runtime
// queue but not yet run is suppressed. Safe to call when not armed.
func (s *Single) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
}

// Active reports whether an arm is currently pending.
func (s *Single) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t != nil
}
