// Package htm implements the hierarchical triangular mesh (HTM)
// spatial tiling used to annotate objects before storage and to bound
// tile-range scans.
//
// The sphere is split into eight octahedral base triangles (ids 8-15);
// each level of refinement splits a triangle into four children by edge
// midpoints, appending two id bits. Ids at depth d therefore lie in
// [8*4^d, 16*4^d). The mapping from a position to an id is pure and
// deterministic: the same bit-pattern input always yields the same id,
// across calls and across process restarts.
//
// Points closer together than the tiling's angular resolution at the
// configured depth may or may not share a tile. That is an accepted
// boundary-quantisation effect of any fixed tiling, not a bug; callers
// querying by tile range must treat tile membership as a partition key,
// never as a precision-bearing coordinate.
package htm
