package forced

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/transient.report/internal/assoc"
)

// Config holds the task's tunables.
type Config struct {
	// Centroid selects the pixel-position strategy for output records.
	Centroid CentroidMode
	// ExposureIDBits is the number of high bits of a record id taken by
	// the exposure id; the rest is a per-exposure sequence counter.
	ExposureIDBits uint
}

// Task measures and merges forced sources at object positions on a
// direct and a difference image.
type Task struct {
	cfg   Config
	meas  Measurer
	calib Calibrator
}

// NewTask validates the configuration and builds a Task.
func NewTask(cfg Config, meas Measurer, calib Calibrator) (*Task, error) {
	if _, err := ParseCentroidMode(string(cfg.Centroid)); err != nil {
		return nil, err
	}
	if cfg.ExposureIDBits < 1 || cfg.ExposureIDBits > 62 {
		return nil, fmt.Errorf("forced: exposure id bits %d out of range [1, 62]", cfg.ExposureIDBits)
	}
	if meas == nil || calib == nil {
		return nil, fmt.Errorf("forced: measurer and calibrator are required")
	}
	return &Task{cfg: cfg, meas: meas, calib: calib}, nil
}

// Run measures every object on both images, calibrates the fluxes, and
// joins the two measurement sets positionally into one Record per
// object. Records whose pixel position falls outside the direct image
// footprint are dropped, unless the object id appears in updatedIDs:
// an object touched this cycle may legitimately sit at the image edge
// and must not be lost.
//
// Record ids are deterministic: the difference image's exposure id in
// the high ExposureIDBits bits, a sequence counter below. Re-running
// against the same inputs reproduces the same ids, so a retried cycle
// overwrites rather than duplicates.
func (t *Task) Run(objects []*assoc.Object, updatedIDs []int64, direct, diff Image) ([]Record, error) {
	updated := make(map[int64]bool, len(updatedIDs))
	for _, id := range updatedIDs {
		updated[id] = true
	}

	seqBits := 63 - t.cfg.ExposureIDBits
	idBase := diff.ExposureID() << seqBits

	records := make([]Record, 0, len(objects))
	for seq, obj := range objects {
		diffMeas, diffErr := t.measureOne(obj, diff)
		directMeas, directErr := t.measureOne(obj, direct)
		if diffErr != nil {
			return nil, diffErr
		}
		if directErr != nil {
			return nil, directErr
		}

		rec := Record{
			ObjectID:          obj.ID(),
			RecordID:          idBase | int64(seq),
			Pos:               obj.Pos,
			ExposureID:        diff.ExposureID(),
			MidpointUnixNanos: direct.MidpointUnixNanos(),
			Filter:            diff.Filter(),
			PsFlux:            math.NaN(),
			PsFluxErr:         math.NaN(),
			TotFlux:           math.NaN(),
			TotFluxErr:        math.NaN(),
		}

		switch t.cfg.Centroid {
		case CentroidFromPeak:
			rec.X, rec.Y = diffMeas.Centroid.X, diffMeas.Centroid.Y
		default: // CentroidFromCoord
			pix := diff.SkyToPixel(obj.Pos)
			rec.X, rec.Y = pix.X, pix.Y
		}

		if !math.IsNaN(diffMeas.InstFlux) {
			rec.PsFlux, rec.PsFluxErr = t.calib.ToPhysical(diffMeas.InstFlux, diffMeas.InstFluxErr, diff)
		}
		if !math.IsNaN(directMeas.InstFlux) {
			rec.TotFlux, rec.TotFluxErr = t.calib.ToPhysical(directMeas.InstFlux, directMeas.InstFluxErr, direct)
		}

		if !direct.Contains(PixelPoint{X: rec.X, Y: rec.Y}) && !updated[obj.ID()] {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// measureOne runs the measurer, converting a measurement failure into a
// missing-flux measurement rather than an error.
func (t *Task) measureOne(obj *assoc.Object, img Image) (Measurement, error) {
	m, err := t.meas.Measure(obj.Pos, img)
	if err != nil {
		if errors.Is(err, ErrMeasurementFailed) {
			return Measurement{
				InstFlux:    math.NaN(),
				InstFluxErr: math.NaN(),
				Centroid:    img.SkyToPixel(obj.Pos),
			}, nil
		}
		return Measurement{}, fmt.Errorf("measure object %d: %w", obj.ID(), err)
	}
	return m, nil
}
