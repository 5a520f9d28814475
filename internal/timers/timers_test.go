package timers

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSingle_Fires(t *testing.T) {
	var s Single
	done := make(chan struct{})
	s.Reset(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if s.Active() {
		t.Error("Active after fire: want false")
	}
}

func TestSingle_ResetReplacesPreviousArm(t *testing.T) {
	var s Single
	var fired atomic.Int32

	// Re-arm rapidly; only the final arm may run its callback.
	for i := 0; i < 10; i++ {
		s.Reset(20*time.Millisecond, func() { fired.Add(1) })
	}

	time.Sleep(100 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Errorf("fired %d times, want exactly 1", n)
	}
}

func TestSingle_StopSuppressesCallback(t *testing.T) {
	var s Single
	var fired atomic.Int32

	s.Reset(10*time.Millisecond, func() { fired.Add(1) })
	s.Stop()

	time.Sleep(50 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("fired %d times after Stop, want 0", n)
	}
	if s.Active() {
		t.Error("Active after Stop: want false")
	}
}

func TestSingle_StopIdempotent(t *testing.T) {
	var s Single
	s.Stop()
	s.Stop()

	s.Reset(5*time.Millisecond, func() {})
	s.Stop()
	s.Stop()
}

func TestSingle_ReusableAfterStop(t *testing.T) {
	var s Single
	done := make(chan struct{})

	s.Reset(time.Hour, func() { t.Error("stale arm ran") })
	s.Stop()
	s.Reset(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire after re-arm")
	}
}
