package rotation

import (
	"sync/atomic"
	"testing"
	"time"
)

const window = 25 * time.Millisecond

// settle waits comfortably past the debounce window.
func settle() { time.Sleep(4 * window) }

func TestDebouncer_StableValueCommits(t *testing.T) {
	d := New(5, window, nil)

	d.Observe(120) // well above threshold
	settle()

	if !d.IsRotating() {
		t.Error("IsRotating = false after stable above-threshold reading")
	}

	d.Observe(0)
	settle()

	if d.IsRotating() {
		t.Error("IsRotating = true after stable below-threshold reading")
	}
}

func TestDebouncer_ThresholdIsExclusive(t *testing.T) {
	d := New(5, window, nil)

	d.Observe(5) // exactly at threshold: not rotating
	settle()
	if d.IsRotating() {
		t.Error("reading equal to threshold must not count as rotating")
	}

	d.Observe(5.01)
	settle()
	if !d.IsRotating() {
		t.Error("reading just above threshold must count as rotating")
	}
}

func TestDebouncer_FlipsWithinWindowDoNotCommit(t *testing.T) {
	d := New(5, window, nil)

	// Rapid flips, all inside one window: the debounced state never moves.
	for i := 0; i < 8; i++ {
		d.Observe(100)
		d.Observe(0)
		time.Sleep(window / 10)
	}

	if d.IsRotating() {
		t.Error("IsRotating flipped despite no value holding for the window")
	}

	// The last observed value (0) eventually settles to not-rotating.
	settle()
	if d.IsRotating() {
		t.Error("IsRotating = true after the flapping settled on 0")
	}
}

func TestDebouncer_ReArmReplacesTimer(t *testing.T) {
	var changes atomic.Int32
	d := New(5, window, func(bool) { changes.Add(1) })

	// One flip to rotating, re-armed several times by repeated identical
	// transitions through below-threshold noise.
	d.Observe(100)
	time.Sleep(window / 5)
	d.Observe(0)
	time.Sleep(window / 5)
	d.Observe(100)
	settle()

	if !d.IsRotating() {
		t.Fatal("IsRotating = false, want true")
	}
	if n := changes.Load(); n != 1 {
		t.Errorf("onChange ran %d times, want 1", n)
	}
}

func TestDebouncer_RepeatedSameSideReadingsDoNotReArm(t *testing.T) {
	d := New(5, window, nil)

	d.Observe(100)
	// Keep feeding above-threshold readings faster than the window; since
	// the raw state does not change, they must not push the commit out.
	for i := 0; i < 6; i++ {
		time.Sleep(window / 4)
		d.Observe(80 + float64(i))
	}

	if !d.IsRotating() {
		t.Error("IsRotating = false; same-side readings re-armed the window")
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := New(5, window, nil)
	d.Observe(100)
	d.Stop()
	settle()

	if d.IsRotating() {
		t.Error("IsRotating = true after Stop cancelled the pending window")
	}
}
