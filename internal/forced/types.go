package forced

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/transient.report/internal/sky"
)

// ErrMeasurementFailed is returned by a Measurer when no flux could be
// extracted at the requested position. It is not fatal to a processing
// cycle: the record is produced with missing (NaN) flux.
var ErrMeasurementFailed = errors.New("forced: measurement failed")

// PixelPoint is a position in image pixel coordinates.
type PixelPoint struct {
	X float64
	Y float64
}

// Image is the coordinate/metadata boundary to one exposure image.
// Implementations wrap whatever WCS machinery the caller uses; the
// engine never touches pixels itself.
type Image interface {
	SkyToPixel(p sky.Point) PixelPoint
	PixelToSky(p PixelPoint) sky.Point
	Contains(p PixelPoint) bool

	ExposureID() int64
	MidpointUnixNanos() int64
	Filter() string
}

// Measurement is one raw (instrumental) flux measurement.
type Measurement struct {
	InstFlux    float64
	InstFluxErr float64
	Centroid    PixelPoint
}

// Measurer extracts an instrumental flux at a fixed sky position on an
// image. External collaborator; the engine treats it as opaque.
type Measurer interface {
	Measure(p sky.Point, img Image) (Measurement, error)
}

// Calibrator converts an instrumental flux to physical units for a
// given image. Pure and deterministic given its inputs.
type Calibrator interface {
	ToPhysical(instFlux, instFluxErr float64, img Image) (flux, fluxErr float64)
}

// ScaleCalibrator is the standard zero-point calibrator: physical flux
// is instFlux/Flux0, with the zero-point uncertainty propagated into
// the error.
type ScaleCalibrator struct {
	Flux0    float64
	Flux0Err float64
}

func (c ScaleCalibrator) ToPhysical(instFlux, instFluxErr float64, _ Image) (float64, float64) {
	flux := instFlux / c.Flux0
	fluxErr := math.Sqrt(
		(instFluxErr/c.Flux0)*(instFluxErr/c.Flux0) +
			(instFlux*c.Flux0Err/(c.Flux0*c.Flux0))*(instFlux*c.Flux0Err/(c.Flux0*c.Flux0)))
	return flux, fluxErr
}

// CentroidMode selects how a record's pixel position is derived. The
// set is closed and known at compile time; new modes are added here,
// not registered at runtime.
type CentroidMode string

const (
	// CentroidFromCoord transforms the object's reference sky position
	// through the difference image's WCS.
	CentroidFromCoord CentroidMode = "coord"
	// CentroidFromPeak uses the centroid fitted by the measurement.
	CentroidFromPeak CentroidMode = "peak"
)

// ParseCentroidMode validates a configured mode string.
func ParseCentroidMode(s string) (CentroidMode, error) {
	switch CentroidMode(s) {
	case CentroidFromCoord, CentroidFromPeak:
		return CentroidMode(s), nil
	}
	return "", fmt.Errorf("forced: unknown centroid mode %q", s)
}

// Record is one immutable output row, keyed by (ObjectID, RecordID).
// PsFlux is measured on the difference image, TotFlux on the direct
// image; either pair is NaN when its measurement failed.
type Record struct {
	ObjectID int64
	RecordID int64

	Pos sky.Point
	X   float64
	Y   float64

	PsFlux     float64
	PsFluxErr  float64
	TotFlux    float64
	TotFluxErr float64

	ExposureID        int64
	MidpointUnixNanos int64
	Filter            string
}
