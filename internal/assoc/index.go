package assoc

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// The spatial index is a k-d tree over unit 3-vectors of the object
// positions. Distances inside the tree are squared Euclidean chord
// lengths; chordAngle converts back to a great-circle angle.

// treePoint is one indexed object position.
type treePoint struct {
	v   [3]float64
	id  int64 // object id
	idx int   // position in collection iteration order
}

func (p treePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(treePoint)
	return p.v[d] - q.v[d]
}

func (p treePoint) Dims() int { return 3 }

func (p treePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(treePoint)
	var sum float64
	for i := range p.v {
		d := p.v[i] - q.v[i]
		sum += d * d
	}
	return sum
}

// treePoints implements kdtree.Interface over a slice of treePoint.
type treePoints []treePoint

func (p treePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p treePoints) Len() int                      { return len(p) }
func (p treePoints) Pivot(d kdtree.Dim) int        { return plane{treePoints: p, Dim: d}.Pivot() }
func (p treePoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// plane is the sort-slicing helper kdtree construction requires.
type plane struct {
	treePoints
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.treePoints[i].v[p.Dim] < p.treePoints[j].v[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.treePoints = p.treePoints[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.treePoints[i], p.treePoints[j] = p.treePoints[j], p.treePoints[i]
}

// chordAngle converts a squared chord length between unit vectors to
// the subtended great-circle angle in radians.
func chordAngle(chordSq float64) float64 {
	half := math.Sqrt(chordSq) / 2
	if half > 1 {
		half = 1
	}
	return 2 * math.Asin(half)
}

// chordSqFromAngle is the inverse of chordAngle.
func chordSqFromAngle(theta float64) float64 {
	s := 2 * math.Sin(theta/2)
	return s * s
}
