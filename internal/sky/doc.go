// Package sky provides the celestial-sphere value types shared by the
// association engine: positions, angles, and single-epoch detections.
//
// Responsibilities: angular distance and bearing between points,
// offset-by-bearing-and-distance, unit-vector conversion.
// Key types: Point, Angle, Detection.
//
// Everything in this package is a pure value; no SQL or index code is
// allowed here.
package sky
