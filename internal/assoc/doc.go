// Package assoc owns the in-memory association core: accumulated sky
// objects, the working collection with its spatial index, and the
// score/match cycle that attaches newly arrived detections to objects
// or spawns new ones.
//
// Responsibilities: nearest-candidate scoring under a tolerance radius,
// deterministic matching with lowest-id tie-breaking, per-object summary
// statistics, and the two validity flags (statistics, index) callers
// must track between mutation and use.
// Key types: Object, Collection, ScoreResult.
//
// A Collection has a single logical owner at a time; one score/match/
// rebuild sequence runs to completion before the next. No SQL/database
// code is allowed in this package.
package assoc
