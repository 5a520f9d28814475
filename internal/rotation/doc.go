// Package rotation debounces rotary-speed telemetry into a stable
// rotating/sliding boolean for the steering coordinator. The raw comparison
// against the threshold is unfiltered; the only smoothing is the debounce
// window itself.
package rotation
