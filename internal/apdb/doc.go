// Package apdb is the persistence boundary of the association engine:
// an sqlite-backed store for accumulated objects, their detections, and
// forced-measurement records.
//
// Objects are keyed by id and by spatial tile id; tile-range scans
// bound region queries. Schema is managed with golang-migrate over
// embedded SQL files. The store guarantees round-trip fidelity of all
// object attributes including the tile id when StoreObjects is asked to
// update it.
package apdb
