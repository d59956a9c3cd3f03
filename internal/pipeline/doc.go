// Package pipeline drives the per-exposure association cycle: score
// incoming detections against the live object collection, apply the
// matches, refresh statistics and the spatial index, and persist the
// touched objects. An optional forced-measurement stage runs after
// association when imagery is supplied.
package pipeline
