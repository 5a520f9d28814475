package override

import (
	"errors"
	"math"
	"testing"

	"github.com/wellsteer/wellsteer/internal/config"
)

func limits(field string, min, max float64) map[string]config.Range {
	return map[string]config.Range{
		field: {Min: &min, Max: &max},
	}
}

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore(nil)

	got, err := s.Set(FieldMotorYield, 12.5)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got != 12.5 {
		t.Errorf("Set returned %v, want 12.5", got)
	}

	v, ok := s.Get(FieldMotorYield)
	if !ok || v != 12.5 {
		t.Errorf("Get = (%v, %v), want (12.5, true)", v, ok)
	}
	if _, ok := s.Get(FieldTurnRate); ok {
		t.Error("Get on an unset field reported a value")
	}
}

func TestStore_SetClampsIntoLimits(t *testing.T) {
	s := NewStore(limits(FieldDoglegNeeded, 0.5, 5.0))

	tests := []struct {
		in, want float64
	}{
		{0.1, 0.5},  // below min
		{9.0, 5.0},  // above max
		{3.2, 3.2},  // inside
		{0.5, 0.5},  // at min
		{5.0, 5.0},  // at max
	}
	for _, tt := range tests {
		got, err := s.Set(FieldDoglegNeeded, tt.in)
		if err != nil {
			t.Fatalf("Set(%v): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Set(%v) stored %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStore_UnconstrainedFieldPassesThrough(t *testing.T) {
	s := NewStore(limits(FieldDoglegNeeded, 0.5, 5.0))
	got, err := s.Set(FieldLeftRight, -250)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got != -250 {
		t.Errorf("unconstrained field clamped: got %v, want -250", got)
	}
}

func TestStore_RejectsUnknownAndNonFinite(t *testing.T) {
	s := NewStore(nil)

	if _, err := s.Set("gamma_ray", 1); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Set(unknown field) err = %v, want ErrUnknownField", err)
	}
	if _, err := s.Set(FieldIsRotating, 1); err == nil || errors.Is(err, ErrUnknownField) {
		t.Errorf("numeric Set(is_rotating) err = %v, want a boolean-only error", err)
	}
	if err := s.Clear("bogus"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Clear(unknown field) err = %v, want ErrUnknownField", err)
	}
	if _, err := s.Set(FieldBuildRate, math.NaN()); err == nil {
		t.Error("Set(NaN) succeeded")
	}
	if _, err := s.Set(FieldBuildRate, math.Inf(1)); err == nil {
		t.Error("Set(+Inf) succeeded")
	}
	if _, ok := s.Get(FieldBuildRate); ok {
		t.Error("rejected Set left a value behind")
	}
}

func TestStore_ClearRestoresComputed(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Set(FieldProjectedAz, 183.4); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Clear(FieldProjectedAz); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Get(FieldProjectedAz); ok {
		t.Error("value survived Clear")
	}
	// Clearing again is a no-op.
	if err := s.Clear(FieldProjectedAz); err != nil {
		t.Errorf("Clear on unset field: %v", err)
	}
}

func TestStore_RotatingOverride(t *testing.T) {
	s := NewStore(nil)
	calls := 0
	s.OnChange(func() { calls++ })

	if _, ok := s.Rotating(); ok {
		t.Error("Rotating reported a value on an empty store")
	}

	s.SetRotating(false)
	if v, ok := s.Rotating(); !ok || v != false {
		t.Errorf("Rotating = (%v, %v), want (false, true)", v, ok)
	}
	if v, ok := s.Values()[FieldIsRotating]; !ok || v != false {
		t.Errorf("Values()[is_rotating] = (%v, %v), want (false, true)", v, ok)
	}

	if err := s.Clear(FieldIsRotating); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := s.Rotating(); ok {
		t.Error("rotation flag survived Clear")
	}
	if calls != 2 {
		t.Errorf("onChange fired %d times, want 2", calls)
	}
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore(nil)
	calls := 0
	s.OnChange(func() { calls++ })

	s.Set(FieldSlideAhead, 4)   //nolint:errcheck
	s.Clear(FieldSlideAhead)    //nolint:errcheck
	s.Clear(FieldSlideAhead)    //nolint:errcheck // already clear, must not fire
	s.Set("nope", 1)            //nolint:errcheck // rejected, must not fire

	if calls != 2 {
		t.Errorf("onChange fired %d times, want 2", calls)
	}
}

func TestStore_ValuesReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	s.Set(FieldSlideSeen, 6.0)  //nolint:errcheck
	s.Set(FieldAboveBelow, -12) //nolint:errcheck

	vals := s.Values()
	if len(vals) != 2 || vals[FieldSlideSeen] != 6.0 || vals[FieldAboveBelow] != -12.0 {
		t.Fatalf("Values() = %v", vals)
	}

	vals[FieldSlideSeen] = 999
	if v, _ := s.Get(FieldSlideSeen); v != 6.0 {
		t.Error("mutating the returned map changed the store")
	}
}
