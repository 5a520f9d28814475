package curve

import "math"

// The engine never lets a NaN or infinity escape into a steering value.
// Every formula routes its inputs through finite() and its output through
// orFallback(), so the fallback policy lives here and in Fallbacks rather
// than scattered through the call sites.

// finite reports whether every argument is a finite number.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// orFallback returns v when it is finite, fallback otherwise.
func orFallback(v, fallback float64) float64 {
	if !finite(v) {
		return fallback
	}
	return v
}

// clampACosArg clamps x into the acos domain [-1, 1]. Floating-point noise in
// the spherical law of cosines routinely produces 1.0000000000000002.
func clampACosArg(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// radians converts degrees to radians.
func radians(deg float64) float64 { return deg * math.Pi / 180 }

// degrees converts radians to degrees.
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// NormalizeAzimuth maps az into [0, 360). Non-finite input returns 0.
// The function is idempotent: NormalizeAzimuth(NormalizeAzimuth(x)) ==
// NormalizeAzimuth(x) for all finite x.
func NormalizeAzimuth(az float64) float64 {
	if !finite(az) {
		return 0
	}
	az = math.Mod(az, 360)
	if az < 0 {
		az += 360
	}
	return az
}

// NormalizeDelta maps an azimuth difference into (-180, 180], the
// shortest-path turn between two headings.
func NormalizeDelta(diff float64) float64 {
	if !finite(diff) {
		return 0
	}
	diff = math.Mod(diff, 360)
	if diff > 180 {
		diff -= 360
	}
	if diff <= -180 {
		diff += 360
	}
	return diff
}
