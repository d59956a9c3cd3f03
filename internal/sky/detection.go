package sky

import "math"

// Detection is a single observation of a point source. Detections are
// created by the upstream measurement stage and are immutable once
// built, except for ObjectID which the association step sets exactly
// once when the detection is matched (or seeds a new object).
//
// PsFlux and PsFluxErr are NaN when no flux measurement is available;
// that is a distinct state from a measured flux of zero.
type Detection struct {
	ID          int64
	Pos         Point
	TSUnixNanos int64

	PsFlux    float64
	PsFluxErr float64

	// ObjectID is the owning object, zero until matched.
	ObjectID int64
}

// NewDetection builds a fluxless Detection. Flux fields start as NaN
// ("not measured") rather than zero.
func NewDetection(id int64, pos Point, tsUnixNanos int64) Detection {
	return Detection{
		ID:          id,
		Pos:         pos,
		TSUnixNanos: tsUnixNanos,
		PsFlux:      math.NaN(),
		PsFluxErr:   math.NaN(),
	}
}

// HasFlux reports whether the detection carries a flux measurement.
func (d Detection) HasFlux() bool { return !math.IsNaN(d.PsFlux) }
