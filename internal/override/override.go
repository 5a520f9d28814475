package override

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/metrics"
)

// Field names accepted by Set/Clear. They match the snapshot JSON keys.
const (
	FieldMotorYield   = "motor_yield"
	FieldDoglegNeeded = "dogleg_needed"
	FieldSlideSeen    = "slide_seen"
	FieldSlideAhead   = "slide_ahead"
	FieldProjectedInc = "projected_inc"
	FieldProjectedAz  = "projected_az"
	FieldBuildRate    = "build_rate"
	FieldTurnRate     = "turn_rate"
	FieldAboveBelow   = "above_below"
	FieldLeftRight    = "left_right"
	FieldIsRotating   = "is_rotating"
)

// Fields lists every overridable snapshot field.
var Fields = []string{
	FieldMotorYield,
	FieldDoglegNeeded,
	FieldSlideSeen,
	FieldSlideAhead,
	FieldProjectedInc,
	FieldProjectedAz,
	FieldBuildRate,
	FieldTurnRate,
	FieldAboveBelow,
	FieldLeftRight,
	FieldIsRotating,
}

var known = func() map[string]bool {
	m := make(map[string]bool, len(Fields))
	for _, f := range Fields {
		m[f] = true
	}
	return m
}()

// ErrUnknownField is returned by Set and Clear for a field name that is not
// part of the snapshot.
var ErrUnknownField = errors.New("override: unknown field")

// Store holds operator-supplied values that pin snapshot fields.
// A present value always wins over the computed one; clearing a field
// restores computed behavior on the next recomputation.
type Store struct {
	mu       sync.RWMutex
	limits   map[string]config.Range
	values   map[string]float64
	rotating *bool
	onChange func()
}

// NewStore creates an empty Store. limits carries the optional per-field
// [min,max] clamps from configuration and may be nil.
func NewStore(limits map[string]config.Range) *Store {
	return &Store{
		limits: limits,
		values: make(map[string]float64),
	}
}

// OnChange registers fn to run after every successful Set or Clear.
// It is invoked outside the store lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Set pins field to value, clamped into the configured range when one
// exists. It returns the value actually stored.
func (s *Store) Set(field string, value float64) (float64, error) {
	if !known[field] {
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if field == FieldIsRotating {
		return 0, fmt.Errorf("override: %s takes a boolean value", field)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("override: %s: value must be finite", field)
	}

	s.mu.Lock()
	if r, ok := s.limits[field]; ok {
		if r.Min != nil && value < *r.Min {
			value = *r.Min
		}
		if r.Max != nil && value > *r.Max {
			value = *r.Max
		}
	}
	s.values[field] = value
	metrics.ActiveOverrides.Set(float64(s.countLocked()))
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return value, nil
}

// SetRotating pins the rotation flag. No range applies.
func (s *Store) SetRotating(value bool) {
	s.mu.Lock()
	s.rotating = &value
	metrics.ActiveOverrides.Set(float64(s.countLocked()))
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Rotating returns the pinned rotation flag, if one is set.
func (s *Store) Rotating() (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rotating == nil {
		return false, false
	}
	return *s.rotating, true
}

// Clear removes the override for field. Clearing a field that is not set is
// not an error and does not fire the change callback.
func (s *Store) Clear(field string) error {
	if !known[field] {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	s.mu.Lock()
	var present bool
	if field == FieldIsRotating {
		present = s.rotating != nil
		s.rotating = nil
	} else {
		_, present = s.values[field]
		delete(s.values, field)
	}
	metrics.ActiveOverrides.Set(float64(s.countLocked()))
	fn := s.onChange
	s.mu.Unlock()

	if present && fn != nil {
		fn()
	}
	return nil
}

// Get returns the override for field, if one is set.
func (s *Store) Get(field string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[field]
	return v, ok
}

// Values returns a copy of all set overrides. Numeric fields carry float64
// values; is_rotating carries a bool.
func (s *Store) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values)+1)
	for f, v := range s.values {
		out[f] = v
	}
	if s.rotating != nil {
		out[FieldIsRotating] = *s.rotating
	}
	return out
}

// countLocked is the number of set overrides. Caller holds s.mu.
func (s *Store) countLocked() int {
	n := len(s.values)
	if s.rotating != nil {
		n++
	}
	return n
}
