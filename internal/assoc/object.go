package assoc

import (
	"fmt"
	"math"

	"github.com/banshee-data/transient.report/internal/sky"
)

// Object is one accumulated sky object: an identity, the ordered set of
// detections attributed to it, and summary statistics derived from that
// set. Detections are kept in arrival order, which is not necessarily
// time order.
//
// The identifier is the identifier of the first detection. That is a
// deliberate design choice, not an accident: upstream assigns globally
// unique detection ids, so the seed detection's id is free to reuse and
// keeps object ids stable across reprocessing.
type Object struct {
	id         int64
	detections []sky.Detection

	// Summary position and per-coordinate scatter, recomputed by
	// Update. RA and Dec are averaged independently as planar
	// coordinates; adequate for the sub-degree fields this engine
	// operates on.
	Pos       sky.Point
	RARMSDeg  float64
	DecRMSDeg float64

	// Flux summary over detections that carry a measurement; NaN when
	// none do.
	PsFluxMean float64
	PsFluxRMS  float64

	// TileID is the spatial-tile annotation, set lazily before
	// persistence. Zero means unassigned (valid tile ids are >= 8).
	TileID int64

	stale bool

	// restoredCount is non-zero only for objects reloaded from the
	// store without their detection sets.
	restoredCount int
}

// NewObject creates an Object seeded with the given detections, in
// order. It fails with ErrEmptyInput on an empty sequence. Statistics
// are computed immediately, so a fresh object is never stale.
func NewObject(initial []sky.Detection) (*Object, error) {
	if len(initial) == 0 {
		return nil, fmt.Errorf("%w: object needs at least one detection", ErrEmptyInput)
	}
	o := &Object{
		id:         initial[0].ID,
		detections: append([]sky.Detection(nil), initial...),
	}
	o.Update()
	return o, nil
}

// Restore rebuilds an Object from persisted summary values, without its
// detection set. nDetections records how many detections backed the
// summary at store time.
func Restore(id int64, pos sky.Point, raRMSDeg, decRMSDeg, psFluxMean, psFluxRMS float64, nDetections int, tileID int64) *Object {
	return &Object{
		id:            id,
		Pos:           pos,
		RARMSDeg:      raRMSDeg,
		DecRMSDeg:     decRMSDeg,
		PsFluxMean:    psFluxMean,
		PsFluxRMS:     psFluxRMS,
		TileID:        tileID,
		restoredCount: nDetections,
	}
}

// ID returns the object's permanent identifier.
func (o *Object) ID() int64 { return o.id }

// Stale reports whether the detection set has changed since statistics
// were last recomputed.
func (o *Object) Stale() bool { return o.stale }

// NDetections returns the number of detections backing the object's
// statistics, counting persisted detections not yet loaded.
func (o *Object) NDetections() int {
	return o.restoredCount + len(o.detections)
}

// Hydrate attaches the persisted detection set to a restored object.
// The set must be exactly the detections that backed the stored summary,
// in arrival order, and must be supplied before any new detection is
// appended. The summary itself is left untouched; it was computed from
// this same set.
func (o *Object) Hydrate(dets []sky.Detection) error {
	if o.restoredCount == 0 {
		return fmt.Errorf("hydrate object %d: not restored from storage", o.id)
	}
	if len(o.detections) > 0 {
		return fmt.Errorf("hydrate object %d: detections already appended", o.id)
	}
	if len(dets) != o.restoredCount {
		return fmt.Errorf("hydrate object %d: got %d detections, summary covers %d", o.id, len(dets), o.restoredCount)
	}
	if dets[0].ID != o.id {
		return fmt.Errorf("hydrate object %d: first detection id %d does not seed this object", o.id, dets[0].ID)
	}
	o.detections = append([]sky.Detection(nil), dets...)
	o.restoredCount = 0
	return nil
}

// Detections returns a copy of the detection set in arrival order.
func (o *Object) Detections() []sky.Detection {
	return append([]sky.Detection(nil), o.detections...)
}

// AppendDetection adds a detection to the object and marks it stale.
// No recomputation happens until Update, so repeated appends within a
// cycle are batched.
func (o *Object) AppendDetection(d sky.Detection) {
	o.detections = append(o.detections, d)
	o.stale = true
}

// Update recomputes the summary position, its scatter, and the flux
// statistics from the full detection set, then clears the stale flag.
// With exactly one detection the scatter fields are NaN, not zero.
//
// A restored object whose detection set has not been hydrated cannot be
// recomputed: the persisted summary stays authoritative and the object
// stays stale until Hydrate supplies the set, so persistence rejects it
// instead of overwriting the catalogue with a partial recomputation.
func (o *Object) Update() {
	if o.restoredCount > 0 {
		return
	}
	ras := make([]float64, len(o.detections))
	decs := make([]float64, len(o.detections))
	fluxes := make([]float64, len(o.detections))
	for i, d := range o.detections {
		ras[i] = d.Pos.RADeg
		decs[i] = d.Pos.DecDeg
		fluxes[i] = d.PsFlux
	}

	raSum := summarizeOrNaN(ras)
	decSum := summarizeOrNaN(decs)
	fluxSum := summarizeOrNaN(fluxes)

	o.Pos = sky.Point{RADeg: raSum.Mean, DecDeg: decSum.Mean}
	o.RARMSDeg = raSum.StdDev
	o.DecRMSDeg = decSum.StdDev
	o.PsFluxMean = fluxSum.Mean
	o.PsFluxRMS = fluxSum.StdDev
	o.stale = false
}

// LastObservedUnixNanos returns the latest detection timestamp, or zero
// for a restored object with no loaded detections.
func (o *Object) LastObservedUnixNanos() int64 {
	var last int64 = math.MinInt64
	if len(o.detections) == 0 {
		return 0
	}
	for _, d := range o.detections {
		if d.TSUnixNanos > last {
			last = d.TSUnixNanos
		}
	}
	return last
}
