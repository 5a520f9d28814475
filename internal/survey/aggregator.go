package survey

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wellsteer/wellsteer/internal/metrics"
)

// Near-duplicate bounds: a new survey this close in both time and depth to
// an existing one is the same physical station re-sent by the tool.
const (
	dupTimeWindow  = 5000 * time.Millisecond
	dupDepthWindow = 0.5 // feet
)

// Aggregator stores the survey history for one well and derives
// moving-average build/turn rates from the most recent stations.
//
// Safe for concurrent use. The collection is free of exact-id duplicates and
// of near-duplicates within dupTimeWindow and dupDepthWindow.
type Aggregator struct {
	minDistance float64
	avgCount    int
	fbBuild     float64
	fbTurn      float64

	mu      sync.RWMutex
	records []Record

	now func() time.Time // injectable for deterministic tests

	// onChange is invoked (outside the lock) after every mutation; the
	// steering coordinator uses it to trigger recomputation.
	onChange func()
}

// NewAggregator returns an empty Aggregator.
// fallbackBuild/fallbackTurn are returned by Rates when no valid survey pair
// exists. avgCount below 2 is raised to 2.
func NewAggregator(minDistance float64, avgCount int, fallbackBuild, fallbackTurn float64) *Aggregator {
	if minDistance <= 0 {
		minDistance = 1.0
	}
	if avgCount < 2 {
		avgCount = 2
	}
	return &Aggregator{
		minDistance: minDistance,
		avgCount:    avgCount,
		fbBuild:     fallbackBuild,
		fbTurn:      fallbackTurn,
		now:         time.Now,
	}
}

// OnChange registers the mutation callback. Must be called before the
// aggregator is shared.
func (a *Aggregator) OnChange(fn func()) { a.onChange = fn }

// Add sanitizes rec and inserts it. Returns false without inserting when an
// existing record has the same id, or sits within the near-duplicate window
// in both time and depth.
func (a *Aggregator) Add(rec Record) bool {
	a.mu.Lock()
	rec = sanitize(rec, a.now())

	for _, existing := range a.records {
		if existing.ID == rec.ID {
			a.mu.Unlock()
			metrics.SurveysRejected.WithLabelValues("duplicate_id").Inc()
			slog.Debug("survey: rejected duplicate id", "id", rec.ID)
			return false
		}
		if isNearDuplicate(existing, rec) {
			a.mu.Unlock()
			metrics.SurveysRejected.WithLabelValues("near_duplicate").Inc()
			slog.Debug("survey: rejected near-duplicate",
				"id", rec.ID, "existing", existing.ID,
				"depth", rec.MeasuredDepth)
			return false
		}
	}

	a.records = append(a.records, rec)
	a.mu.Unlock()

	a.notify()
	return true
}

// Update sanitizes rec and replaces the record with the same id in place,
// preserving its position. If no such record exists the record is inserted
// (upsert semantics).
func (a *Aggregator) Update(rec Record) {
	a.mu.Lock()
	rec = sanitize(rec, a.now())

	for i, existing := range a.records {
		if existing.ID == rec.ID {
			a.records[i] = rec
			a.mu.Unlock()
			a.notify()
			return
		}
	}
	a.records = append(a.records, rec)
	a.mu.Unlock()

	a.notify()
}

// Delete removes the record with the given id. Absent ids are a no-op.
func (a *Aggregator) Delete(id string) {
	a.mu.Lock()
	for i, existing := range a.records {
		if existing.ID == id {
			a.records = append(a.records[:i], a.records[i+1:]...)
			a.mu.Unlock()
			a.notify()
			return
		}
	}
	a.mu.Unlock()
}

// All returns a copy of the full collection in insertion order.
func (a *Aggregator) All() []Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// Count returns the number of stored records.
func (a *Aggregator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Latest returns the record with the greatest valid timestamp. Records with
// unusable timestamps stay in the collection but never win here.
func (a *Aggregator) Latest() (Record, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var best Record
	found := false
	for _, r := range a.records {
		if !r.hasValidTimestamp() {
			continue
		}
		if !found || r.Timestamp.After(best.Timestamp) {
			best = r
			found = true
		}
	}
	return best, found
}

// Recent returns up to the configured moving-average count of records with
// valid timestamps, newest first.
func (a *Aggregator) Recent() []Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.recentLocked()
}

func (a *Aggregator) recentLocked() []Record {
	valid := make([]Record, 0, len(a.records))
	for _, r := range a.records {
		if r.hasValidTimestamp() {
			valid = append(valid, r)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Timestamp.After(valid[j].Timestamp)
	})
	if len(valid) > a.avgCount {
		valid = valid[:a.avgCount]
	}
	return valid
}

// Rates derives the moving-average build and turn rates (degrees per 100 ft)
// from consecutive pairs within Recent. Pairs separated by less than the
// minimum distance are skipped; with zero valid pairs the configured
// fallbacks are returned.
func (a *Aggregator) Rates() (buildRate, turnRate float64) {
	a.mu.RLock()
	recent := a.recentLocked()
	a.mu.RUnlock()

	var buildSum, turnSum float64
	pairs := 0

	for i := 0; i+1 < len(recent); i++ {
		cur, prev := recent[i], recent[i+1]
		mdDiff := cur.MeasuredDepth - prev.MeasuredDepth
		if !finitePair(cur, prev) || math.Abs(mdDiff) < a.minDistance {
			continue
		}
		buildSum += (cur.Inclination - prev.Inclination) / mdDiff * 100
		turnSum += shortestTurn(cur.Azimuth-prev.Azimuth) / mdDiff * 100
		pairs++
	}

	if pairs == 0 {
		return a.fbBuild, a.fbTurn
	}
	return buildSum / float64(pairs), turnSum / float64(pairs)
}

func (a *Aggregator) notify() {
	if a.onChange != nil {
		a.onChange()
	}
}

// isNearDuplicate reports whether two records describe the same physical
// station: close in time AND close in depth.
func isNearDuplicate(existing, rec Record) bool {
	dt := existing.Timestamp.Sub(rec.Timestamp)
	if dt < 0 {
		dt = -dt
	}
	return dt < dupTimeWindow && math.Abs(existing.MeasuredDepth-rec.MeasuredDepth) < dupDepthWindow
}

// shortestTurn normalizes an azimuth change onto the shortest path: crossing
// north reads as a small turn, not a 350-degree swing.
func shortestTurn(diff float64) float64 {
	if diff > 180 {
		diff -= 360
	} else if diff < -180 {
		diff += 360
	}
	return diff
}

func finitePair(cur, prev Record) bool {
	for _, v := range []float64{
		cur.Inclination, cur.Azimuth, cur.MeasuredDepth,
		prev.Inclination, prev.Azimuth, prev.MeasuredDepth,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
