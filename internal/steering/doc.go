// Package steering coordinates the derived-value pipeline. A Coordinator
// owns the latest telemetry sample, the debounced rotation state, the survey
// aggregate, the target line and the manual overrides, and rebuilds the full
// steering snapshot whenever any of them changes. Snapshots are replaced as
// whole values and fanned out to subscribers.
package steering
