package htm

import (
	"fmt"
	"math"

	"github.com/banshee-data/transient.report/internal/sky"
)

// DefaultDepth matches the depth used by the persistent store's tile
// column. At depth 7 a trixel spans roughly 0.35 degrees on a side.
const DefaultDepth = 7

// MaxDepth keeps ids well inside int64 (an id at depth d uses 4+2d
// bits).
const MaxDepth = 24

// edgeEpsilon tolerates points exactly on a trixel edge or vertex; the
// first triangle in id order containing the point wins, which keeps the
// mapping deterministic.
const edgeEpsilon = 1e-15

type vec3 [3]float64

func (a vec3) cross(b vec3) vec3 {
	return vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (a vec3) dot(b vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func (a vec3) add(b vec3) vec3 { return vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

func (a vec3) normalize() vec3 {
	n := math.Sqrt(a.dot(a))
	return vec3{a[0] / n, a[1] / n, a[2] / n}
}

func midpoint(a, b vec3) vec3 { return a.add(b).normalize() }

type triangle struct{ v0, v1, v2 vec3 }

// contains reports whether p lies inside the spherical triangle, edges
// included (within edgeEpsilon).
func (t triangle) contains(p vec3) bool {
	return t.v0.cross(t.v1).dot(p) >= -edgeEpsilon &&
		t.v1.cross(t.v2).dot(p) >= -edgeEpsilon &&
		t.v2.cross(t.v0).dot(p) >= -edgeEpsilon
}

func (t triangle) children() [4]triangle {
	w0 := midpoint(t.v1, t.v2)
	w1 := midpoint(t.v0, t.v2)
	w2 := midpoint(t.v0, t.v1)
	return [4]triangle{
		{t.v0, w2, w1},
		{t.v1, w0, w2},
		{t.v2, w1, w0},
		{w0, w1, w2},
	}
}

// boundingCone returns the center and half-angle of a cone containing
// the whole triangle (the farthest interior point from the centroid of
// a spherical triangle is a vertex).
func (t triangle) boundingCone() (center vec3, radius float64) {
	center = t.v0.add(t.v1).add(t.v2).normalize()
	radius = angleBetween(center, t.v0)
	if a := angleBetween(center, t.v1); a > radius {
		radius = a
	}
	if a := angleBetween(center, t.v2); a > radius {
		radius = a
	}
	return center, radius
}

func angleBetween(a, b vec3) float64 {
	// Cross/dot form is stable for both small and large angles.
	c := a.cross(b)
	return math.Atan2(math.Sqrt(c.dot(c)), a.dot(b))
}

// The eight octahedral base triangles in id order 8..15. Vertex order
// fixes the child numbering and therefore the id assignment; it follows
// the standard HTM convention so ids agree with other HTM
// implementations at the same depth.
var baseTriangles = [8]triangle{
	{vec3{1, 0, 0}, vec3{0, 0, -1}, vec3{0, 1, 0}},   // S0 = 8
	{vec3{0, 1, 0}, vec3{0, 0, -1}, vec3{-1, 0, 0}},  // S1 = 9
	{vec3{-1, 0, 0}, vec3{0, 0, -1}, vec3{0, -1, 0}}, // S2 = 10
	{vec3{0, -1, 0}, vec3{0, 0, -1}, vec3{1, 0, 0}},  // S3 = 11
	{vec3{1, 0, 0}, vec3{0, 0, 1}, vec3{0, -1, 0}},   // N0 = 12
	{vec3{0, -1, 0}, vec3{0, 0, 1}, vec3{-1, 0, 0}},  // N1 = 13
	{vec3{-1, 0, 0}, vec3{0, 0, 1}, vec3{0, 1, 0}},   // N2 = 14
	{vec3{0, 1, 0}, vec3{0, 0, 1}, vec3{1, 0, 0}},    // N3 = 15
}

// Indexer maps sky positions to fixed-depth HTM tile ids.
type Indexer struct {
	depth int
}

// NewIndexer returns an Indexer at the given subdivision depth.
func NewIndexer(depth int) (*Indexer, error) {
	if depth < 0 || depth > MaxDepth {
		return nil, fmt.Errorf("htm: depth %d out of range [0, %d]", depth, MaxDepth)
	}
	return &Indexer{depth: depth}, nil
}

// Depth returns the configured subdivision depth.
func (ix *Indexer) Depth() int { return ix.depth }

// FirstID and LimitID bound the valid id interval [FirstID, LimitID)
// at the configured depth.
func (ix *Indexer) FirstID() int64 { return 8 << (2 * uint(ix.depth)) }
func (ix *Indexer) LimitID() int64 { return 16 << (2 * uint(ix.depth)) }

// Index returns the tile id containing p.
func (ix *Indexer) Index(p sky.Point) int64 {
	v := vec3(p.Vector())

	var id int64
	var tri triangle
	for i, t := range baseTriangles {
		if t.contains(v) {
			id = int64(8 + i)
			tri = t
			break
		}
	}

	for level := 0; level < ix.depth; level++ {
		children := tri.children()
		for ci, child := range children {
			if child.contains(v) {
				id = id<<2 | int64(ci)
				tri = child
				break
			}
		}
	}
	return id
}

// Range is a half-open interval [Start, End) of tile ids.
type Range struct {
	Start int64
	End   int64
}

// Ranges returns ordered, merged id ranges covering every tile that
// intersects the circle of the given radius around center. The cover
// overapproximates: it may include tiles that do not actually intersect
// the circle, but never omits one that does.
func (ix *Indexer) Ranges(center sky.Point, radius sky.Angle) []Range {
	c := vec3(center.Vector())
	theta := radius.Radians()

	var ranges []Range
	for i, t := range baseTriangles {
		ranges = ix.visit(ranges, int64(8+i), t, 0, c, theta)
	}
	return mergeRanges(ranges)
}

func (ix *Indexer) visit(ranges []Range, id int64, tri triangle, level int, c vec3, theta float64) []Range {
	bc, br := tri.boundingCone()
	d := angleBetween(bc, c)

	// Small slack keeps the cover overapproximate in the face of
	// rounding in the cone geometry.
	const slack = 1e-12
	if d > theta+br+slack {
		return ranges // cone and circle cannot intersect
	}

	remaining := uint(ix.depth - level)
	if d+br <= theta || level == ix.depth {
		// Fully inside the circle, or a leaf partially covered:
		// emit the whole id subtree.
		return append(ranges, Range{Start: id << (2 * remaining), End: (id + 1) << (2 * remaining)})
	}

	for ci, child := range tri.children() {
		ranges = ix.visit(ranges, id<<2|int64(ci), child, level+1, c, theta)
	}
	return ranges
}

// mergeRanges coalesces adjacent and overlapping ranges. Input ranges
// arrive in id order because the tree is walked in id order.
func mergeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	merged := ranges[:1]
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
