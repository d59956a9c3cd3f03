package apdb

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/transient.report/internal/assoc"
	"github.com/banshee-data/transient.report/internal/forced"
	"github.com/banshee-data/transient.report/internal/htm"
	"github.com/banshee-data/transient.report/internal/sky"
)

// StoreObjects upserts the given objects. Objects must have current
// statistics; a stale object is a contract violation by the caller and
// is rejected before any row is written. When updateTileID is true the
// tile id is recomputed from each object's current position (and set on
// the object) before writing; otherwise whatever tile id the object
// carries is persisted untouched.
func (db *DB) StoreObjects(objects []*assoc.Object, updateTileID bool, indexer *htm.Indexer) error {
	for _, o := range objects {
		if o.Stale() {
			return fmt.Errorf("store objects: object %d has stale statistics", o.ID())
		}
	}
	if updateTileID && indexer == nil {
		return fmt.Errorf("store objects: tile update requested without an indexer")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin store objects tx: %w", err)
	}

	// ON CONFLICT DO UPDATE rather than INSERT OR REPLACE, so detection
	// rows referencing the object are never cascade-deleted.
	const query = `
		INSERT INTO dia_objects (
			dia_object_id, ra_deg, dec_deg, ra_rms_deg, dec_rms_deg,
			ps_flux_mean, ps_flux_rms, n_detections, tile_id,
			last_observed_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dia_object_id) DO UPDATE SET
			ra_deg = excluded.ra_deg,
			dec_deg = excluded.dec_deg,
			ra_rms_deg = excluded.ra_rms_deg,
			dec_rms_deg = excluded.dec_rms_deg,
			ps_flux_mean = excluded.ps_flux_mean,
			ps_flux_rms = excluded.ps_flux_rms,
			n_detections = excluded.n_detections,
			tile_id = excluded.tile_id,
			last_observed_unix_nanos = excluded.last_observed_unix_nanos
	`

	for _, o := range objects {
		if updateTileID {
			o.TileID = indexer.Index(o.Pos)
		}
		_, err := tx.Exec(query,
			o.ID(),
			o.Pos.RADeg,
			o.Pos.DecDeg,
			nullFloat64(o.RARMSDeg),
			nullFloat64(o.DecRMSDeg),
			nullFloat64(o.PsFluxMean),
			nullFloat64(o.PsFluxRMS),
			o.NDetections(),
			o.TileID,
			o.LastObservedUnixNanos(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert object %d: %w", o.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store objects tx: %w", err)
	}
	return nil
}

// LoadObjects returns the objects whose tile id falls in any of the
// given half-open ranges, ordered by id. Objects are restored from
// their persisted summaries; detection sets are loaded separately with
// LoadDetections.
func (db *DB) LoadObjects(ranges []htm.Range) ([]*assoc.Object, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	var query strings.Builder
	query.WriteString(`
		SELECT dia_object_id, ra_deg, dec_deg, ra_rms_deg, dec_rms_deg,
			ps_flux_mean, ps_flux_rms, n_detections, tile_id
		FROM dia_objects
		WHERE `)
	args := make([]interface{}, 0, 2*len(ranges))
	for i, r := range ranges {
		if i > 0 {
			query.WriteString(" OR ")
		}
		query.WriteString("(tile_id >= ? AND tile_id < ?)")
		args = append(args, r.Start, r.End)
	}
	query.WriteString(" ORDER BY dia_object_id ASC")

	rows, err := db.Query(query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query objects by tile range: %w", err)
	}
	defer rows.Close()

	var objects []*assoc.Object
	for rows.Next() {
		var (
			id, tileID        int64
			raDeg, decDeg     float64
			raRMS, decRMS     sql.NullFloat64
			fluxMean, fluxRMS sql.NullFloat64
			nDetections       int
		)
		if err := rows.Scan(&id, &raDeg, &decDeg, &raRMS, &decRMS,
			&fluxMean, &fluxRMS, &nDetections, &tileID); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		objects = append(objects, assoc.Restore(
			id,
			sky.Point{RADeg: raDeg, DecDeg: decDeg},
			nanFloat64(raRMS), nanFloat64(decRMS),
			nanFloat64(fluxMean), nanFloat64(fluxRMS),
			nDetections, tileID,
		))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return objects, nil
}

// LoadRegion loads the objects in the given tile ranges together with
// their detection sets, so appended detections recompute statistics
// over the full history rather than collapsing the persisted summary.
func (db *DB) LoadRegion(ranges []htm.Range) ([]*assoc.Object, error) {
	objects, err := db.LoadObjects(ranges)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(objects))
	for i, o := range objects {
		ids[i] = o.ID()
	}
	detections, err := db.LoadDetections(ids)
	if err != nil {
		return nil, err
	}
	grouped := make(map[int64][]sky.Detection, len(objects))
	for _, d := range detections {
		grouped[d.ObjectID] = append(grouped[d.ObjectID], d)
	}
	for _, o := range objects {
		dets := grouped[o.ID()]
		if len(dets) == 0 {
			continue
		}
		if err := o.Hydrate(dets); err != nil {
			return nil, fmt.Errorf("load region: %w", err)
		}
	}
	return objects, nil
}

// StoreDetections inserts the detections, each owned by the object id
// at the same position in objectIDs.
func (db *DB) StoreDetections(detections []sky.Detection, objectIDs []int64) error {
	if len(detections) != len(objectIDs) {
		return fmt.Errorf("store detections: %d detections but %d object ids", len(detections), len(objectIDs))
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin store detections tx: %w", err)
	}

	const query = `
		INSERT OR REPLACE INTO dia_detections (
			detection_id, dia_object_id, ra_deg, dec_deg,
			ts_unix_nanos, ps_flux, ps_flux_err
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, d := range detections {
		_, err := tx.Exec(query,
			d.ID,
			objectIDs[i],
			d.Pos.RADeg,
			d.Pos.DecDeg,
			d.TSUnixNanos,
			nullFloat64(d.PsFlux),
			nullFloat64(d.PsFluxErr),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert detection %d: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store detections tx: %w", err)
	}
	return nil
}

// LoadDetections returns all detections owned by the given object ids,
// in arrival (insertion) order.
func (db *DB) LoadDetections(objectIDs []int64) ([]sky.Detection, error) {
	if len(objectIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT detection_id, dia_object_id, ra_deg, dec_deg,
			ts_unix_nanos, ps_flux, ps_flux_err
		FROM dia_detections
		WHERE dia_object_id IN (` + placeholders(len(objectIDs)) + `)
		ORDER BY rowid ASC
	`
	args := make([]interface{}, len(objectIDs))
	for i, id := range objectIDs {
		args[i] = id
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var detections []sky.Detection
	for rows.Next() {
		var (
			d             sky.Detection
			flux, fluxErr sql.NullFloat64
		)
		if err := rows.Scan(&d.ID, &d.ObjectID, &d.Pos.RADeg, &d.Pos.DecDeg,
			&d.TSUnixNanos, &flux, &fluxErr); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		d.PsFlux = nanFloat64(flux)
		d.PsFluxErr = nanFloat64(fluxErr)
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return detections, nil
}

// StoreForcedRecords inserts the forced-measurement records for one
// processing cycle.
func (db *DB) StoreForcedRecords(records []forced.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin store forced records tx: %w", err)
	}

	const query = `
		INSERT OR REPLACE INTO forced_sources (
			record_id, dia_object_id, exposure_id, midpoint_unix_nanos,
			filter_name, ra_deg, dec_deg, x, y,
			ps_flux, ps_flux_err, tot_flux, tot_flux_err
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, r := range records {
		_, err := tx.Exec(query,
			r.RecordID, r.ObjectID, r.ExposureID, r.MidpointUnixNanos,
			r.Filter, r.Pos.RADeg, r.Pos.DecDeg, r.X, r.Y,
			nullFloat64(r.PsFlux), nullFloat64(r.PsFluxErr),
			nullFloat64(r.TotFlux), nullFloat64(r.TotFluxErr),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert forced record (%d, %d): %w", r.ObjectID, r.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit store forced records tx: %w", err)
	}
	return nil
}

// LoadForcedRecords returns the stored forced records for an exposure,
// ordered by object id.
func (db *DB) LoadForcedRecords(exposureID int64) ([]forced.Record, error) {
	const query = `
		SELECT record_id, dia_object_id, exposure_id, midpoint_unix_nanos,
			filter_name, ra_deg, dec_deg, x, y,
			ps_flux, ps_flux_err, tot_flux, tot_flux_err
		FROM forced_sources
		WHERE exposure_id = ?
		ORDER BY dia_object_id ASC
	`
	rows, err := db.Query(query, exposureID)
	if err != nil {
		return nil, fmt.Errorf("query forced records: %w", err)
	}
	defer rows.Close()

	var records []forced.Record
	for rows.Next() {
		var (
			r                              forced.Record
			filter                         sql.NullString
			psFlux, psFluxErr, totFlux, totFluxErr sql.NullFloat64
		)
		if err := rows.Scan(&r.RecordID, &r.ObjectID, &r.ExposureID,
			&r.MidpointUnixNanos, &filter, &r.Pos.RADeg, &r.Pos.DecDeg,
			&r.X, &r.Y, &psFlux, &psFluxErr, &totFlux, &totFluxErr); err != nil {
			return nil, fmt.Errorf("scan forced record: %w", err)
		}
		r.Filter = filter.String
		r.PsFlux = nanFloat64(psFlux)
		r.PsFluxErr = nanFloat64(psFluxErr)
		r.TotFlux = nanFloat64(totFlux)
		r.TotFluxErr = nanFloat64(totFluxErr)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forced records: %w", err)
	}
	return records, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Helper functions for nullable values: NaN means "not measured" in
// memory and NULL in the store.

func nullFloat64(f float64) interface{} {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func nanFloat64(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
