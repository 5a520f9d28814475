package rotation

import (
	"sync"
	"time"

	"github.com/wellsteer/wellsteer/internal/timers"
)

// Debouncer converts instantaneous rotary-speed readings into a stable
// rotating/sliding boolean. The raw state is rotarySpeed > threshold; a raw
// flip only becomes the debounced state after it holds for the full window.
// Flips within the window re-arm the single pending timer — they never stack.
//
// Safe for concurrent use.
type Debouncer struct {
	threshold float64
	window    time.Duration
	onChange  func(bool)

	mu       sync.Mutex
	raw      bool
	rotating bool
	seeded   bool

	timer timers.Single
}

// New returns a Debouncer. onChange is called (without the internal lock
// held) each time the debounced state commits to a new value; it may be nil.
func New(threshold float64, window time.Duration, onChange func(bool)) *Debouncer {
	return &Debouncer{
		threshold: threshold,
		window:    window,
		onChange:  onChange,
	}
}

// Observe feeds the latest rotary-speed reading.
func (d *Debouncer) Observe(rotarySpeed float64) {
	raw := rotarySpeed > d.threshold

	d.mu.Lock()
	if d.seeded && raw == d.raw {
		d.mu.Unlock()
		return
	}
	d.seeded = true
	d.raw = raw
	d.mu.Unlock()

	// Each raw flip re-arms the one pending window; only a value that holds
	// for the full window commits.
	d.timer.Reset(d.window, func() { d.commit(raw) })
}

// IsRotating returns the current debounced state.
func (d *Debouncer) IsRotating() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotating
}

// Stop cancels any pending debounce window. The current state is kept.
func (d *Debouncer) Stop() {
	d.timer.Stop()
}

func (d *Debouncer) commit(raw bool) {
	d.mu.Lock()
	if d.rotating == raw {
		d.mu.Unlock()
		return
	}
	d.rotating = raw
	cb := d.onChange
	d.mu.Unlock()

	if cb != nil {
		cb(raw)
	}
}
