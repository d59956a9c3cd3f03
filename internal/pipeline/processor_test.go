package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/transient.report/internal/apdb"
	"github.com/banshee-data/transient.report/internal/assoc"
	"github.com/banshee-data/transient.report/internal/forced"
	"github.com/banshee-data/transient.report/internal/htm"
	"github.com/banshee-data/transient.report/internal/sky"
)

func newTestProcessor(t *testing.T, db *apdb.DB) *Processor {
	t.Helper()
	coll, err := assoc.NewCollection(nil)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	indexer, err := htm.NewIndexer(htm.DefaultDepth)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	p, err := NewProcessor(coll, indexer, db, sky.Arcseconds(1.0))
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

func TestNewProcessorValidation(t *testing.T) {
	coll, _ := assoc.NewCollection(nil)
	idx, err := htm.NewIndexer(htm.DefaultDepth)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}

	if _, err := NewProcessor(nil, idx, nil, sky.Arcseconds(1)); err == nil {
		t.Error("expected error for nil collection")
	}
	if _, err := NewProcessor(coll, nil, nil, sky.Arcseconds(1)); err == nil {
		t.Error("expected error for nil indexer")
	}
	if _, err := NewProcessor(coll, idx, nil, sky.Arcseconds(0)); err == nil {
		t.Error("expected error for zero tolerance")
	}
}

func TestRunCycleEmptyInput(t *testing.T) {
	p := newTestProcessor(t, nil)
	res, err := p.RunCycle(nil, nil, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Matched != 0 || res.Created != 0 || len(res.TouchedIDs) != 0 {
		t.Errorf("expected no-op result, got %+v", res)
	}
}

func TestRunCycleCreatesThenMatches(t *testing.T) {
	p := newTestProcessor(t, nil)

	// First cycle: empty collection, every detection seeds a new object.
	first := []sky.Detection{
		sky.NewDetection(100, sky.MustPoint(10.0, -5.0), 1000),
		sky.NewDetection(101, sky.MustPoint(20.0, 15.0), 1000),
	}
	res, err := p.RunCycle(first, nil, nil)
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if res.Created != 2 || res.Matched != 0 {
		t.Errorf("first cycle: created=%d matched=%d, want 2/0", res.Created, res.Matched)
	}
	if p.Collection().Len() != 2 {
		t.Fatalf("collection size = %d, want 2", p.Collection().Len())
	}

	// Second cycle: one detection within tolerance of object 100, one
	// far away.
	near := sky.MustPoint(10.0, -5.0).Offset(sky.Degrees(90), sky.Arcseconds(0.3))
	second := []sky.Detection{
		sky.NewDetection(200, near, 2000),
		sky.NewDetection(201, sky.MustPoint(250.0, 40.0), 2000),
	}
	res, err = p.RunCycle(second, nil, nil)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if res.Matched != 1 || res.Created != 1 {
		t.Errorf("second cycle: matched=%d created=%d, want 1/1", res.Matched, res.Created)
	}
	if second[0].ObjectID != 100 {
		t.Errorf("matched detection got object id %d, want 100", second[0].ObjectID)
	}
	if second[1].ObjectID != 201 {
		t.Errorf("new detection got object id %d, want 201", second[1].ObjectID)
	}

	// The matched object's statistics must reflect both detections.
	obj, ok := p.Collection().Object(100)
	if !ok {
		t.Fatal("object 100 missing")
	}
	if obj.NDetections() != 2 {
		t.Errorf("object 100 has %d detections, want 2", obj.NDetections())
	}
	if !p.Collection().StatisticsValid() || !p.Collection().IndexValid() {
		t.Error("collection left stale after cycle")
	}
}

func TestRunCyclePersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "apdb.sqlite")
	db, err := apdb.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	p := newTestProcessor(t, db)
	dets := []sky.Detection{
		sky.NewDetection(1, sky.MustPoint(0.1, 0.1), 1000),
		sky.NewDetection(2, sky.MustPoint(180.0, -30.0), 1000),
	}
	if _, err := p.RunCycle(dets, nil, nil); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	// The full sky covers every stored object.
	indexer, err := htm.NewIndexer(htm.DefaultDepth)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	loaded, err := db.LoadObjects(indexer.Ranges(sky.MustPoint(0, 0), sky.Degrees(180)))
	if err != nil {
		t.Fatalf("LoadObjects: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d objects, want 2", len(loaded))
	}
	for _, o := range loaded {
		if o.TileID == 0 {
			t.Errorf("object %d stored without a tile id", o.ID())
		}
	}

	stored, err := db.LoadDetections([]int64{1, 2})
	if err != nil {
		t.Fatalf("LoadDetections: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("loaded %d detections, want 2", len(stored))
	}
}

// flatImage is a tangent-plane stand-in with one degree per 100 pixels
// and a finite footprint.
type flatImage struct {
	exposureID int64
	width      float64
	height     float64
}

func (f flatImage) SkyToPixel(p sky.Point) forced.PixelPoint {
	return forced.PixelPoint{X: p.RADeg * 100, Y: (p.DecDeg + 90) * 100}
}

func (f flatImage) PixelToSky(p forced.PixelPoint) sky.Point {
	return sky.MustPoint(p.X/100, p.Y/100-90)
}

func (f flatImage) Contains(p forced.PixelPoint) bool {
	return p.X >= 0 && p.X < f.width && p.Y >= 0 && p.Y < f.height
}

func (f flatImage) ExposureID() int64        { return f.exposureID }
func (f flatImage) MidpointUnixNanos() int64 { return 5000 }
func (f flatImage) Filter() string           { return "g" }

type constMeasurer struct{ flux float64 }

func (m constMeasurer) Measure(p sky.Point, img forced.Image) (forced.Measurement, error) {
	return forced.Measurement{
		InstFlux:    m.flux,
		InstFluxErr: 1.0,
		Centroid:    img.SkyToPixel(p),
	}, nil
}

func TestRunCycleForcedStage(t *testing.T) {
	p := newTestProcessor(t, nil)
	task, err := forced.NewTask(forced.Config{
		Centroid:       forced.CentroidFromCoord,
		ExposureIDBits: 10,
	}, constMeasurer{flux: 500}, forced.ScaleCalibrator{Flux0: 100, Flux0Err: 0})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	p.SetForcedTask(task, false)

	img := flatImage{exposureID: 7, width: 100 * 360, height: 100 * 180}
	dets := []sky.Detection{
		sky.NewDetection(1, sky.MustPoint(1.0, 1.0), 1000),
		sky.NewDetection(2, sky.MustPoint(2.0, 2.0), 1000),
	}
	res, err := p.RunCycle(dets, img, img)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Records != 2 {
		t.Errorf("forced records = %d, want 2", res.Records)
	}
}

func TestRunCycleForcedStageSkippedWithoutImages(t *testing.T) {
	p := newTestProcessor(t, nil)
	task, err := forced.NewTask(forced.Config{
		Centroid:       forced.CentroidFromCoord,
		ExposureIDBits: 10,
	}, constMeasurer{flux: 500}, forced.ScaleCalibrator{Flux0: 100})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	p.SetForcedTask(task, false)

	dets := []sky.Detection{sky.NewDetection(1, sky.MustPoint(1.0, 1.0), 1000)}
	res, err := p.RunCycle(dets, nil, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Records != 0 {
		t.Errorf("forced records = %d, want 0", res.Records)
	}
}

func TestRunCycleDetectionConservation(t *testing.T) {
	p := newTestProcessor(t, nil)

	dets := make([]sky.Detection, 0, 10)
	for i := 0; i < 10; i++ {
		dets = append(dets, sky.NewDetection(int64(i+1), sky.MustPoint(float64(i)*5, float64(i)), int64(i)))
	}
	res, err := p.RunCycle(dets, nil, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Matched+res.Created != len(dets) {
		t.Errorf("matched+created = %d, want %d", res.Matched+res.Created, len(dets))
	}

	total := 0
	for i := 0; i < p.Collection().Len(); i++ {
		total += p.Collection().At(i).NDetections()
	}
	if total != len(dets) {
		t.Errorf("total detections across objects = %d, want %d", total, len(dets))
	}
}
