package assoc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary holds batch summary statistics over one numeric attribute of
// an object's detection set. StdDev is the population standard
// deviation (no Bessel correction); it is NaN when only one sample is
// present, signalling that the object has too little data to report
// dispersion. NaN is deliberate and distinct from zero scatter.
type Summary struct {
	Mean   float64
	StdDev float64
	N      int
}

// Summarize computes mean and population standard deviation over the
// samples, ignoring NaN entries (missing measurements). With no valid
// samples it fails with ErrInsufficientData; callers are expected to
// have guarded for at least one detection already.
func Summarize(samples []float64) (Summary, error) {
	valid := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !math.IsNaN(s) {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return Summary{}, fmt.Errorf("%w: no valid samples", ErrInsufficientData)
	}

	mean := stat.Mean(valid, nil)
	sd := math.NaN()
	if len(valid) > 1 {
		sd = stat.PopStdDev(valid, nil)
	}
	return Summary{Mean: mean, StdDev: sd, N: len(valid)}, nil
}

// summarizeOrNaN is Summarize for optional attributes: an empty sample
// set yields NaN statistics instead of an error.
func summarizeOrNaN(samples []float64) Summary {
	s, err := Summarize(samples)
	if err != nil {
		return Summary{Mean: math.NaN(), StdDev: math.NaN()}
	}
	return s
}
