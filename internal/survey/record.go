package survey

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// QC result values.
const (
	QCPass = "pass"
	QCFail = "fail"
)

// Record is one directional survey station. Records are immutable once
// inserted; Update replaces the whole record.
type Record struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	MeasuredDepth float64   `json:"measured_depth"`
	Inclination   float64   `json:"inclination"`
	Azimuth       float64   `json:"azimuth"`
	ToolFace      float64   `json:"tool_face"`
	MagneticField float64   `json:"magnetic_field"`
	GravityField  float64   `json:"gravity_field"`
	Dip           float64   `json:"dip"`
	Temperature   float64   `json:"temperature"`
	QC            string    `json:"qc"`
	WellID        string    `json:"well_id"`
}

// hasValidTimestamp reports whether the record's timestamp is usable for
// latest-survey derivation. Invalid timestamps keep the record in the
// collection but exclude it from Latest.
func (r Record) hasValidTimestamp() bool {
	return !r.Timestamp.IsZero() && r.Timestamp.Unix() > 0
}

// sanitize fills missing fields with safe defaults and zeroes any non-finite
// numeric field. Called on every insert and update; input path data is not
// trusted.
func sanitize(r Record, now time.Time) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if r.QC == "" {
		r.QC = QCPass
	}
	r.MeasuredDepth = finiteOrZero(r.MeasuredDepth)
	r.Inclination = finiteOrZero(r.Inclination)
	r.Azimuth = finiteOrZero(r.Azimuth)
	r.ToolFace = finiteOrZero(r.ToolFace)
	r.MagneticField = finiteOrZero(r.MagneticField)
	r.GravityField = finiteOrZero(r.GravityField)
	r.Dip = finiteOrZero(r.Dip)
	r.Temperature = finiteOrZero(r.Temperature)
	return r
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
