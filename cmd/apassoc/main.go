// Command apassoc runs the association pipeline over a file of
// detections, one exposure at a time, persisting objects and
// detections to a local database.
//
// The input is JSON Lines, one detection per line:
//
//	{"id": 1, "ra_deg": 10.5, "dec_deg": -3.2, "ts_unix_nanos": 1700000000000000000,
//	 "exposure_id": 42, "ps_flux": 120.5, "ps_flux_err": 3.1}
//
// ps_flux and ps_flux_err are optional. Detections are grouped by
// exposure_id and processed in ascending exposure order.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"

	"github.com/banshee-data/transient.report/internal/apdb"
	"github.com/banshee-data/transient.report/internal/assoc"
	"github.com/banshee-data/transient.report/internal/config"
	"github.com/banshee-data/transient.report/internal/htm"
	"github.com/banshee-data/transient.report/internal/pipeline"
	"github.com/banshee-data/transient.report/internal/sky"
	"github.com/banshee-data/transient.report/internal/version"
)

var (
	dbPath     = flag.String("db", "apdb.sqlite", "Path to the association database")
	configPath = flag.String("config", "", "Optional tuning config JSON file")
	detPath    = flag.String("detections", "", "Detections JSONL file (required)")
	listen     = flag.String("listen", "", "Optional admin HTTP listen address")
)

type jsonDetection struct {
	ID          int64    `json:"id"`
	RADeg       float64  `json:"ra_deg"`
	DecDeg      float64  `json:"dec_deg"`
	TSUnixNanos int64    `json:"ts_unix_nanos"`
	ExposureID  int64    `json:"exposure_id"`
	PsFlux      *float64 `json:"ps_flux,omitempty"`
	PsFluxErr   *float64 `json:"ps_flux_err,omitempty"`
}

// readDetections parses the JSONL input into per-exposure batches,
// keyed and later processed in ascending exposure id order.
func readDetections(path string) (map[int64][]sky.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detections file: %w", err)
	}
	defer f.Close()

	batches := make(map[int64][]sky.Detection)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var jd jsonDetection
		if err := json.Unmarshal(raw, &jd); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pos, err := sky.NewPoint(jd.RADeg, jd.DecDeg)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d := sky.NewDetection(jd.ID, pos, jd.TSUnixNanos)
		if jd.PsFlux != nil {
			d.PsFlux = *jd.PsFlux
		}
		if jd.PsFluxErr != nil {
			d.PsFluxErr = *jd.PsFluxErr
		}
		batches[jd.ExposureID] = append(batches[jd.ExposureID], d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read detections file: %w", err)
	}
	return batches, nil
}

// boundingCircle returns a center and radius covering every detection,
// padded by the association tolerance so edge objects are loaded too.
func boundingCircle(batches map[int64][]sky.Detection, pad sky.Angle) (sky.Point, sky.Angle) {
	var center sky.Point
	first := true
	for _, dets := range batches {
		for _, d := range dets {
			if first {
				center = d.Pos
				first = false
			}
		}
	}
	var radius sky.Angle
	for _, dets := range batches {
		for _, d := range dets {
			if sep := sky.Separation(center, d.Pos); sep > radius {
				radius = sep
			}
		}
	}
	return center, radius + pad
}

func main() {
	flag.Parse()

	log.Printf("apassoc %s (%s)", version.Version, version.GitSHA)

	if *detPath == "" {
		log.Fatal("-detections is required")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	tolerance := sky.Arcseconds(cfg.GetToleranceArcsec())

	indexer, err := htm.NewIndexer(cfg.GetTileDepth())
	if err != nil {
		log.Fatalf("failed to build tile indexer: %v", err)
	}

	db, err := apdb.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	batches, err := readDetections(*detPath)
	if err != nil {
		log.Fatalf("failed to read detections: %v", err)
	}
	if len(batches) == 0 {
		log.Fatal("no detections in input")
	}

	// Bootstrap the working set from storage, scoped to the sky region
	// the input actually covers. Detection sets are loaded along with
	// the objects so matched detections extend each object's history
	// instead of replacing it.
	center, radius := boundingCircle(batches, tolerance)
	objects, err := db.LoadRegion(indexer.Ranges(center, radius))
	if err != nil {
		log.Fatalf("failed to load objects: %v", err)
	}
	collection, err := assoc.NewCollection(objects)
	if err != nil {
		log.Fatalf("failed to build collection: %v", err)
	}
	log.Printf("loaded %d objects covering %.3f deg around (%.4f, %.4f)",
		collection.Len(), radius.Degrees(), center.RADeg, center.DecDeg)

	proc, err := pipeline.NewProcessor(collection, indexer, db, tolerance)
	if err != nil {
		log.Fatalf("failed to build processor: %v", err)
	}

	if *listen != "" {
		mux := http.NewServeMux()
		db.AttachAdminRoutes(mux)
		go func() {
			log.Printf("admin server listening on %s", *listen)
			if err := http.ListenAndServe(*listen, mux); err != nil {
				log.Printf("admin server: %v", err)
			}
		}()
	}

	exposures := make([]int64, 0, len(batches))
	for id := range batches {
		exposures = append(exposures, id)
	}
	sort.Slice(exposures, func(i, j int) bool { return exposures[i] < exposures[j] })

	for _, expID := range exposures {
		res, err := proc.RunCycle(batches[expID], nil, nil)
		if err != nil {
			log.Fatalf("exposure %d: %v", expID, err)
		}
		log.Printf("exposure %d: run %s matched=%d created=%d", expID, res.RunID, res.Matched, res.Created)
	}
	log.Printf("done: %d objects live", collection.Len())
}
