// Package curve derives steering values for a directional-drilling assembly:
// motor yield, dogleg severity, slide-seen/slide-ahead, inclination and
// azimuth projections, and target-line offsets.
//
// Every function is pure and total. Non-finite or out-of-domain inputs
// produce a documented fallback value — computation never panics and never
// returns NaN. The fallback table is explicit (Fallbacks) so the policy is
// configurable and testable in one place.
package curve
