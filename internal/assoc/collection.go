package assoc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/transient.report/internal/sky"
)

// relative slack used to treat two candidate distances as equal when
// tie-breaking; floating noise from the tree traversal is far below
// this.
const tieEpsilon = 1e-9

// Collection is the in-memory working set of Objects plus a spatial
// index over their current positions. It owns matching and insertion.
//
// Two independent freshness flags are maintained. StatisticsValid is
// false while any member object is stale; matching uses positions only,
// so a false value does not block matching, but it must be true before
// persistence. IndexValid is false whenever the position set has
// changed since the index was last rebuilt; scoring against a stale
// index is a caller protocol error (ErrStaleIndex), never a silent
// inaccuracy.
//
// The index is a pure function of the current position set: it is
// rebuilt on demand, never mutated incrementally. Rebuild is O(n log n),
// acceptable because processing cycles are bounded by exposure cadence.
type Collection struct {
	objects []*Object
	byID    map[int64]int

	tree *kdtree.Tree

	indexValid bool
	statsValid bool
}

// NewCollection builds a Collection from an initial set of objects and
// leaves it fully valid: statistics current and index built.
func NewCollection(objects []*Object) (*Collection, error) {
	c := &Collection{
		byID:       make(map[int64]int, len(objects)),
		statsValid: true,
	}
	for _, o := range objects {
		if err := c.Append(o); err != nil {
			return nil, err
		}
	}
	c.UpdateAll()
	c.RebuildIndex()
	return c, nil
}

// Len returns the number of live objects.
func (c *Collection) Len() int { return len(c.objects) }

// IDs returns the object identifiers in collection iteration order.
func (c *Collection) IDs() []int64 {
	ids := make([]int64, len(c.objects))
	for i, o := range c.objects {
		ids[i] = o.ID()
	}
	return ids
}

// At returns the object at position i in iteration order.
func (c *Collection) At(i int) *Object { return c.objects[i] }

// Object returns the object with the given identifier.
func (c *Collection) Object(id int64) (*Object, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return c.objects[i], true
}

// IndexValid reports whether the spatial index reflects the current
// position set.
func (c *Collection) IndexValid() bool { return c.indexValid }

// StatisticsValid reports whether every member object's statistics are
// current.
func (c *Collection) StatisticsValid() bool { return c.statsValid }

// Append inserts an object. It fails with ErrDuplicateID if the
// identifier is already a member, without mutating the collection. The
// spatial index is invalidated; statistics validity drops only if the
// new object is itself stale.
func (c *Collection) Append(o *Object) error {
	if _, exists := c.byID[o.ID()]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, o.ID())
	}
	c.byID[o.ID()] = len(c.objects)
	c.objects = append(c.objects, o)
	c.indexValid = false
	if o.Stale() {
		c.statsValid = false
	}
	return nil
}

// UpdateAll recomputes statistics on every stale object. The collection
// is marked statistics-valid only if no object remains stale afterwards;
// a restored object awaiting hydration refuses recomputation and keeps
// the flag down. The spatial index is not touched: callers batch
// appends, then pay the rebuild cost once.
func (c *Collection) UpdateAll() {
	valid := true
	for _, o := range c.objects {
		if o.Stale() {
			o.Update()
		}
		if o.Stale() {
			valid = false
		}
	}
	c.statsValid = valid
}

// RebuildIndex reconstructs the spatial index from the current object
// positions and marks it valid. It must be called after any append or
// position change and before Score or Match.
func (c *Collection) RebuildIndex() {
	if len(c.objects) == 0 {
		c.tree = nil
		c.indexValid = true
		return
	}
	pts := make(treePoints, len(c.objects))
	for i, o := range c.objects {
		pts[i] = treePoint{v: o.Pos.Vector(), id: o.ID(), idx: i}
	}
	c.tree = kdtree.New(pts, false)
	c.indexValid = true
}

// ScoreResult holds the per-detection outcome of Score, parallel to the
// input detection order. A NaN score means no candidate object lay
// within tolerance; the corresponding id and index are -1.
type ScoreResult struct {
	Scores        []float64 // angular distance in radians, or NaN
	ObjectIDs     []int64
	ObjectIndices []int
}

// Score finds, for each detection, the nearest current object by
// great-circle angular distance. Distances within tolerance are
// recorded as scores; otherwise the score is NaN, meaning "no candidate
// within tolerance". Among candidates equidistant within floating
// tolerance the lowest object identifier wins, making the result
// deterministic for a fixed index. Score does not mutate the
// collection.
//
// Fails with ErrStaleIndex if the index has not been rebuilt since the
// last mutation. Complexity is O(m log n) for m detections against n
// objects.
func (c *Collection) Score(detections []sky.Detection, tolerance sky.Angle) (*ScoreResult, error) {
	if !c.indexValid {
		return nil, ErrStaleIndex
	}

	res := &ScoreResult{
		Scores:        make([]float64, len(detections)),
		ObjectIDs:     make([]int64, len(detections)),
		ObjectIndices: make([]int, len(detections)),
	}
	for i := range detections {
		res.Scores[i] = math.NaN()
		res.ObjectIDs[i] = -1
		res.ObjectIndices[i] = -1
	}
	if c.tree == nil {
		return res, nil
	}

	tolChordSq := chordSqFromAngle(tolerance.Radians())
	for i, det := range detections {
		q := treePoint{v: det.Pos.Vector()}
		nearest, chordSq := c.tree.Nearest(q)
		if nearest == nil {
			continue
		}
		if chordSq > tolChordSq {
			continue
		}

		best := c.nearestByID(q, chordSq)
		res.Scores[i] = chordAngle(best.Distance(q))
		res.ObjectIDs[i] = best.id
		res.ObjectIndices[i] = best.idx
	}
	return res, nil
}

// nearestByID returns the lowest-id point among those whose distance to
// q equals chordSq within floating tolerance.
func (c *Collection) nearestByID(q treePoint, chordSq float64) treePoint {
	bound := chordSq*(1+tieEpsilon) + 1e-30
	keeper := kdtree.NewDistKeeper(bound)
	c.tree.NearestSet(keeper, q)

	var best treePoint
	found := false
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue // bound sentinel
		}
		tp := cd.Comparable.(treePoint)
		if !found || tp.id < best.id {
			best = tp
			found = true
		}
	}
	return best
}

// Match consumes a ScoreResult and applies it in detection input order:
// a finite score appends the detection to the matched object, a NaN
// score seeds a brand-new object from that single detection and appends
// it to the collection (invalidating the index as a side effect). No
// detection is ever dropped. Each detection's ObjectID back-reference
// is set here, exactly once.
//
// Multiple detections matching the same object are applied
// sequentially, each append seeing its predecessors. The returned slice
// lists, per input detection, the touched object's position in
// collection iteration order. After Match the caller must call
// RebuildIndex (and UpdateAll) before the next Score/Match cycle if any
// objects were created or updated.
//
// All input validation happens before the first mutation: a duplicate
// seed id anywhere in the input fails the whole call with the
// collection unchanged.
func (c *Collection) Match(detections []sky.Detection, scores *ScoreResult) ([]int, error) {
	if scores == nil || len(scores.Scores) != len(detections) {
		return nil, fmt.Errorf("%w: score result does not cover detection set", ErrEmptyInput)
	}

	// Unscored detections seed new objects under their own id; check the
	// whole batch for collisions up front so a failure mutates nothing.
	seedIDs := make(map[int64]struct{})
	for i := range detections {
		if !math.IsNaN(scores.Scores[i]) {
			continue
		}
		id := detections[i].ID
		if _, exists := c.byID[id]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		if _, dup := seedIDs[id]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		seedIDs[id] = struct{}{}
	}

	touched := make([]int, 0, len(detections))
	for i := range detections {
		if !math.IsNaN(scores.Scores[i]) {
			idx := scores.ObjectIndices[i]
			obj := c.objects[idx]
			detections[i].ObjectID = obj.ID()
			obj.AppendDetection(detections[i])
			c.statsValid = false
			touched = append(touched, idx)
			continue
		}

		detections[i].ObjectID = detections[i].ID
		obj, err := NewObject([]sky.Detection{detections[i]})
		if err != nil {
			return nil, err
		}
		if err := c.Append(obj); err != nil {
			return nil, err
		}
		touched = append(touched, len(c.objects)-1)
	}
	return touched, nil
}
