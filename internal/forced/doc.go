// Package forced produces the per-cycle downstream output of the
// association engine: one calibrated record per object, with flux
// measured at the object's position on both the direct and the
// difference image of an exposure.
//
// Measurement and calibration are external collaborators consumed
// through the Measurer and Calibrator interfaces; this package only
// joins their outputs positionally into immutable Records and trims
// records outside the exposure footprint (unless the object was touched
// in the same cycle and may legitimately sit at the image edge).
package forced
