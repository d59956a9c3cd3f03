package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/transient.report/internal/apdb"
	"github.com/banshee-data/transient.report/internal/assoc"
	"github.com/banshee-data/transient.report/internal/forced"
	"github.com/banshee-data/transient.report/internal/htm"
	"github.com/banshee-data/transient.report/internal/monitoring"
	"github.com/banshee-data/transient.report/internal/sky"
)

// Processor owns one association working set and runs complete cycles
// against it. It is not safe for concurrent use; callers serialize
// cycles, which matches the one-exposure-at-a-time cadence of the
// upstream data flow.
type Processor struct {
	collection *assoc.Collection
	indexer    *htm.Indexer
	db         *apdb.DB // nil disables persistence

	tolerance sky.Angle

	forcedTask  *forced.Task // nil disables the forced stage
	storeForced bool
}

// NewProcessor builds a Processor over an existing collection. db may
// be nil for in-memory-only operation (tests, dry runs).
func NewProcessor(collection *assoc.Collection, indexer *htm.Indexer, db *apdb.DB, tolerance sky.Angle) (*Processor, error) {
	if collection == nil {
		return nil, errors.New("pipeline: nil collection")
	}
	if indexer == nil {
		return nil, errors.New("pipeline: nil indexer")
	}
	if tolerance.Radians() <= 0 {
		return nil, fmt.Errorf("pipeline: tolerance must be positive, got %v", tolerance)
	}
	return &Processor{
		collection: collection,
		indexer:    indexer,
		db:         db,
		tolerance:  tolerance,
	}, nil
}

// SetForcedTask enables the forced-measurement stage. When persist is
// true and a database is configured, the produced records are stored at
// the end of each cycle.
func (p *Processor) SetForcedTask(t *forced.Task, persist bool) {
	p.forcedTask = t
	p.storeForced = persist
}

// Collection returns the live working set.
func (p *Processor) Collection() *assoc.Collection { return p.collection }

// CycleResult summarises one association cycle.
type CycleResult struct {
	RunID   string
	Matched int // detections appended to an existing object
	Created int // detections that seeded a new object
	Records int // forced records produced (0 when the stage is off)

	TouchedIDs []int64 // objects created or updated this cycle
}

// RunCycle scores and matches one exposure's worth of detections,
// refreshes statistics and the spatial index, and persists the touched
// objects and all input detections. When a forced task is configured
// and both images are non-nil, forced measurement runs over the full
// working set after association.
//
// Detections are mutated in place: each gets its owning object id.
func (p *Processor) RunCycle(detections []sky.Detection, direct, diff forced.Image) (*CycleResult, error) {
	res := &CycleResult{RunID: uuid.NewString()}
	if len(detections) == 0 {
		return res, nil
	}
	start := time.Now()

	// A prior cycle (or external append) may have left the working set
	// stale; bring it current before scoring.
	if !p.collection.StatisticsValid() {
		p.collection.UpdateAll()
		p.collection.RebuildIndex()
	} else if !p.collection.IndexValid() {
		p.collection.RebuildIndex()
	}

	scores, err := p.collection.Score(detections, p.tolerance)
	if err != nil {
		return nil, fmt.Errorf("score cycle %s: %w", res.RunID, err)
	}

	touched, err := p.collection.Match(detections, scores)
	if err != nil {
		return nil, fmt.Errorf("match cycle %s: %w", res.RunID, err)
	}
	for i := range scores.Scores {
		if math.IsNaN(scores.Scores[i]) {
			res.Created++
		} else {
			res.Matched++
		}
	}

	p.collection.UpdateAll()
	p.collection.RebuildIndex()

	// Deduplicate touched indices preserving first-touch order.
	seen := make(map[int]bool, len(touched))
	touchedObjs := make([]*assoc.Object, 0, len(touched))
	for _, idx := range touched {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		obj := p.collection.At(idx)
		touchedObjs = append(touchedObjs, obj)
		res.TouchedIDs = append(res.TouchedIDs, obj.ID())
	}

	if p.db != nil {
		if err := p.db.StoreObjects(touchedObjs, true, p.indexer); err != nil {
			return nil, fmt.Errorf("store objects cycle %s: %w", res.RunID, err)
		}
		objectIDs := make([]int64, len(detections))
		for i := range detections {
			objectIDs[i] = detections[i].ObjectID
		}
		if err := p.db.StoreDetections(detections, objectIDs); err != nil {
			return nil, fmt.Errorf("store detections cycle %s: %w", res.RunID, err)
		}
	}

	if p.forcedTask != nil && direct != nil && diff != nil {
		all := make([]*assoc.Object, p.collection.Len())
		for i := range all {
			all[i] = p.collection.At(i)
		}
		records, err := p.forcedTask.Run(all, res.TouchedIDs, direct, diff)
		if err != nil {
			return nil, fmt.Errorf("forced stage cycle %s: %w", res.RunID, err)
		}
		res.Records = len(records)
		if p.db != nil && p.storeForced {
			if err := p.db.StoreForcedRecords(records); err != nil {
				return nil, fmt.Errorf("store forced records cycle %s: %w", res.RunID, err)
			}
		}
	}

	monitoring.Logf("cycle %s: %d detections (%d matched, %d created), %d objects touched, %d forced records in %v",
		res.RunID, len(detections), res.Matched, res.Created, len(res.TouchedIDs), res.Records, time.Since(start))
	return res, nil
}
