package sky

import (
	"fmt"
	"math"
)

// Point is a position on the celestial sphere. RA and Dec are stored in
// degrees; RA is normalised to [0, 360) and Dec must lie in [-90, 90].
// Points are immutable values.
type Point struct {
	RADeg  float64
	DecDeg float64
}

// NewPoint builds a Point from right ascension and declination in
// degrees. RA is wrapped into [0, 360); a declination outside [-90, 90]
// is an error rather than being clamped.
func NewPoint(raDeg, decDeg float64) (Point, error) {
	if math.IsNaN(raDeg) || math.IsNaN(decDeg) {
		return Point{}, fmt.Errorf("sky: point coordinates must be finite, got ra=%v dec=%v", raDeg, decDeg)
	}
	if decDeg < -90 || decDeg > 90 {
		return Point{}, fmt.Errorf("sky: declination %v out of range [-90, 90]", decDeg)
	}
	return Point{RADeg: normalizeRA(raDeg), DecDeg: decDeg}, nil
}

// MustPoint is NewPoint for statically known coordinates; it panics on a
// bad declination. Intended for tests and literals.
func MustPoint(raDeg, decDeg float64) Point {
	p, err := NewPoint(raDeg, decDeg)
	if err != nil {
		panic(err)
	}
	return p
}

func normalizeRA(raDeg float64) float64 {
	ra := math.Mod(raDeg, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

// Vector returns the unit 3-vector for the point, with x toward
// (RA=0, Dec=0) and z toward the north celestial pole.
func (p Point) Vector() [3]float64 {
	ra := p.RADeg * degToRad
	dec := p.DecDeg * degToRad
	cosDec := math.Cos(dec)
	return [3]float64{
		cosDec * math.Cos(ra),
		cosDec * math.Sin(ra),
		math.Sin(dec),
	}
}

// Separation returns the great-circle angular distance between two
// points. Uses the Vincenty form, which is numerically stable at both
// small and antipodal separations.
func Separation(a, b Point) Angle {
	ra1, dec1 := a.RADeg*degToRad, a.DecDeg*degToRad
	ra2, dec2 := b.RADeg*degToRad, b.DecDeg*degToRad
	dra := ra2 - ra1

	sinDec1, cosDec1 := math.Sincos(dec1)
	sinDec2, cosDec2 := math.Sincos(dec2)
	sinDra, cosDra := math.Sincos(dra)

	num := math.Hypot(cosDec2*sinDra, cosDec1*sinDec2-sinDec1*cosDec2*cosDra)
	den := sinDec1*sinDec2 + cosDec1*cosDec2*cosDra
	return Angle(math.Atan2(num, den))
}

// Bearing returns the initial bearing (position angle, east of north)
// of the great circle from a toward b.
func Bearing(a, b Point) Angle {
	ra1, dec1 := a.RADeg*degToRad, a.DecDeg*degToRad
	ra2, dec2 := b.RADeg*degToRad, b.DecDeg*degToRad
	dra := ra2 - ra1

	y := math.Sin(dra) * math.Cos(dec2)
	x := math.Cos(dec1)*math.Sin(dec2) - math.Sin(dec1)*math.Cos(dec2)*math.Cos(dra)
	pa := math.Atan2(y, x)
	if pa < 0 {
		pa += 2 * math.Pi
	}
	return Angle(pa)
}

// Offset returns the point reached by travelling dist along the great
// circle departing at the given bearing (east of north).
func (p Point) Offset(bearing, dist Angle) Point {
	dec1 := p.DecDeg * degToRad
	ra1 := p.RADeg * degToRad
	d := dist.Radians()
	pa := bearing.Radians()

	sinDec1, cosDec1 := math.Sincos(dec1)
	sinD, cosD := math.Sincos(d)

	sinDec2 := sinDec1*cosD + cosDec1*sinD*math.Cos(pa)
	// Clamp against rounding before asin.
	if sinDec2 > 1 {
		sinDec2 = 1
	} else if sinDec2 < -1 {
		sinDec2 = -1
	}
	dec2 := math.Asin(sinDec2)
	ra2 := ra1 + math.Atan2(math.Sin(pa)*sinD*cosDec1, cosD-sinDec1*sinDec2)

	return Point{RADeg: normalizeRA(ra2 / degToRad), DecDeg: dec2 / degToRad}
}
