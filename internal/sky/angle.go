package sky

import "math"

// Angle is an angular separation or bearing stored in radians.
// Use the constructors instead of raw float conversion so the unit is
// always explicit at the call site.
type Angle float64

const (
	degToRad    = math.Pi / 180
	arcsecToRad = degToRad / 3600
)

// Degrees returns the Angle for d degrees.
func Degrees(d float64) Angle { return Angle(d * degToRad) }

// Arcseconds returns the Angle for s arcseconds.
func Arcseconds(s float64) Angle { return Angle(s * arcsecToRad) }

// Radians returns the Angle for r radians.
func Radians(r float64) Angle { return Angle(r) }

// Degrees reports the angle in degrees.
func (a Angle) Degrees() float64 { return float64(a) / degToRad }

// Arcseconds reports the angle in arcseconds.
func (a Angle) Arcseconds() float64 { return float64(a) / arcsecToRad }

// Radians reports the angle in radians.
func (a Angle) Radians() float64 { return float64(a) }
