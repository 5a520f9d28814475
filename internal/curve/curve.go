package curve

import "math"

// nearVerticalInc is the inclination below which the azimuth term of a nudge
// projection is forced to zero. Azimuth is numerically meaningless in a
// near-vertical hole and the formula divides by sin(inclination).
const nearVerticalInc = 0.1

// Fallbacks names the defaults returned when a steering value cannot be
// derived from the available inputs. The magnitudes intentionally differ per
// field; they come from nominal motor specs, not from one shared constant.
type Fallbacks struct {
	MotorYield float64
	Dogleg     float64
	BuildRate  float64
	TurnRate   float64
}

// DefaultFallbacks are the values used when none are configured.
var DefaultFallbacks = Fallbacks{
	MotorYield: 2.5,
	Dogleg:     3.2,
	BuildRate:  2.5,
	TurnRate:   1.8,
}

// Engine computes derived steering values. All methods are pure and total:
// out-of-domain or non-finite inputs produce the documented fallback, never
// a panic or a NaN result.
type Engine struct {
	fb Fallbacks

	// minDistance is the smallest usable survey separation in feet.
	minDistance float64
}

// New returns an Engine with the given fallback table. A zero minDistance is
// replaced with 1.0.
func New(fb Fallbacks, minDistance float64) *Engine {
	if minDistance <= 0 {
		minDistance = 1.0
	}
	return &Engine{fb: fb, minDistance: minDistance}
}

// Fallbacks returns the engine's fallback table.
func (e *Engine) Fallbacks() Fallbacks { return e.fb }

// MotorYield derives the motor yield in degrees per 100 ft.
//
// Preferred form: inclination change across a survey pair separated by at
// least minDistance. Legacy form: bend geometry scaled by how much of the
// slide the bend acts over. When neither input set is usable the configured
// fallback is returned.
func (e *Engine) MotorYield(currInc, prevInc, mdDiff, slideDistance, bendAngle, bitToBend float64) float64 {
	if finite(currInc, prevInc, mdDiff) && math.Abs(mdDiff) >= e.minDistance {
		return orFallback(math.Abs(currInc-prevInc)/math.Abs(mdDiff)*100, e.fb.MotorYield)
	}
	if finite(slideDistance, bendAngle, bitToBend) && slideDistance > 0 {
		effectiveBend := bendAngle * (slideDistance / (slideDistance + bitToBend))
		return orFallback(effectiveBend/slideDistance*100, e.fb.MotorYield)
	}
	return e.fb.MotorYield
}

// DoglegSeverity computes wellbore curvature between two orientations in
// degrees per 100 ft using the spherical law of cosines. Returns 0 when
// courseLength is not positive or any input is non-finite.
func DoglegSeverity(inc1, azi1, inc2, azi2, courseLength float64) float64 {
	if !finite(inc1, azi1, inc2, azi2, courseLength) || courseLength <= 0 {
		return 0
	}
	i1, i2 := radians(inc1), radians(inc2)
	cosBeta := math.Cos(i1)*math.Cos(i2) + math.Sin(i1)*math.Sin(i2)*math.Cos(radians(azi1-azi2))
	beta := degrees(math.Acos(clampACosArg(cosBeta)))
	return orFallback(beta/courseLength*100, 0)
}

// DoglegNeeded is the curvature required to swing from the current
// orientation onto the target orientation over distance feet. Same geometry
// as DoglegSeverity; returns 0 on invalid distance. No display clamp is
// applied here — bounding the value for presentation is the UI's business.
func DoglegNeeded(currentInc, currentAz, targetInc, targetAz, distance float64) float64 {
	return DoglegSeverity(currentInc, currentAz, targetInc, targetAz, distance)
}

// SlideSeen is the curvature already realized by the current slide, in
// degrees. Zero while rotating — rotary drilling holds angle.
func SlideSeen(motorYield, slideDistance float64, isRotating bool) float64 {
	if isRotating || !finite(motorYield, slideDistance) {
		return 0
	}
	return orFallback(motorYield*slideDistance/100, 0)
}

// SlideAhead is the curvature still to come from the current slide: the
// portion of the slide's dogleg that the bit has not yet drilled through,
// weighted by the bit-to-bend distance.
func SlideAhead(motorYield, slideDistance, bitToBend float64, isRotating bool) float64 {
	if isRotating || !finite(motorYield, slideDistance, bitToBend) {
		return 0
	}
	total := slideDistance + bitToBend
	if total <= 0 {
		return 0
	}
	return orFallback(motorYield*slideDistance/100*(bitToBend/total), 0)
}

// ProjectInclination extrapolates inclination distance feet ahead at the
// given build rate (degrees per 100 ft).
func ProjectInclination(currentInc, buildRate, distance float64) float64 {
	if !finite(currentInc, buildRate, distance) {
		return orFallback(currentInc, 0)
	}
	return currentInc + buildRate*distance/100
}

// ProjectAzimuth extrapolates azimuth distance feet ahead at the given turn
// rate, normalized into [0, 360).
func ProjectAzimuth(currentAz, turnRate, distance float64) float64 {
	if !finite(currentAz, turnRate, distance) {
		return NormalizeAzimuth(currentAz)
	}
	return NormalizeAzimuth(currentAz + turnRate*distance/100)
}

// Projection is the result of a nudge projection.
type Projection struct {
	Inc float64
	Az  float64
}

// NudgeProjection predicts the orientation after sliding slideDistance feet
// with the toolface held at toolFace degrees.
//
// A gravity toolface is measured from the high side of the hole; it is
// converted to an azimuth-referenced angle before use. Below nearVerticalInc
// the azimuth change is forced to zero: the formula divides by
// sin(inclination) and a near-vertical hole has no meaningful azimuth.
func NudgeProjection(currentInc, currentAz, toolFace, motorYield, slideDistance float64, isGravityToolface bool) Projection {
	if !finite(currentInc, currentAz, toolFace, motorYield, slideDistance) {
		return Projection{Inc: orFallback(currentInc, 0), Az: NormalizeAzimuth(currentAz)}
	}

	if isGravityToolface {
		toolFace = NormalizeAzimuth(toolFace - currentAz)
	}
	tf := radians(toolFace)

	doglegAngle := motorYield * slideDistance / 100 // degrees
	incChange := math.Cos(tf) * doglegAngle

	var azChange float64
	if currentInc >= nearVerticalInc {
		azChange = degrees(math.Sin(tf) * radians(doglegAngle) / math.Sin(radians(currentInc)))
	}

	return Projection{
		Inc: orFallback(currentInc+incChange, currentInc),
		Az:  NormalizeAzimuth(currentAz + azChange),
	}
}

// AboveBelow is the vertical offset from the target line in feet.
// Positive means the bit is shallower than target.
func AboveBelow(actualTVD, targetTVD float64) float64 {
	if !finite(actualTVD, targetTVD) {
		return 0
	}
	return targetTVD - actualTVD
}

// LeftRight is the lateral offset from the target line in feet,
// right-positive when heading roughly along the target azimuth. When the
// actual heading points more than 90 degrees away from target, the sign
// flips — what was right of the line is now left of it.
func LeftRight(actualVS, actualAzimuth, targetVS, targetAzimuth float64) float64 {
	if !finite(actualVS, actualAzimuth, targetVS, targetAzimuth) {
		return 0
	}
	offset := actualVS - targetVS
	if math.Abs(NormalizeDelta(actualAzimuth-targetAzimuth)) < 90 {
		return offset
	}
	return -offset
}
