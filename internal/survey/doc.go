// Package survey stores and deduplicates directional survey stations and
// derives moving-average build/turn rates from the most recent survey pairs.
//
// Records arrive from an external input path and are sanitized at the
// boundary: non-finite numerics become 0, missing ids are generated, missing
// timestamps default to now, missing QC results default to pass. After
// insertion a record is immutable except by whole-record Update.
package survey
