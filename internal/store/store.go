// Package store persists run results to sqlite: job outcomes, the final
// placement of every layer, and periodic per-node utilization snapshots.
// Grounded on the teacher's internal/infra/sqlite package shape — a DB
// wrapper around *sql.DB, a Migrations() function returning one
// CREATE TABLE IF NOT EXISTS statement per string, and one method per
// query — but the DB type and its Open constructor themselves are new:
// the teacher's sqlite package ships query methods for phases 3 and 4
// without a corresponding db.go, so there is no Open/DB to adapt, only
// the method shape to imitate.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite connection opened against path.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// applies Migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db := &DB{db: conn}
	for _, stmt := range Migrations() {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.db.Close() }

// Migrations returns the schema migration statements, one CREATE TABLE
// per string, executed in order.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS job_outcomes (
			job_id        TEXT PRIMARY KEY,
			n_layer       INTEGER NOT NULL,
			layers_placed INTEGER NOT NULL DEFAULT 0,
			fully_placed  INTEGER NOT NULL DEFAULT 0,
			gpu_type      TEXT NOT NULL,
			dispatched_at TEXT NOT NULL,
			completed_at  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_outcomes_completed ON job_outcomes(fully_placed, completed_at)`,

		`CREATE TABLE IF NOT EXISTS layer_placements (
			job_id     TEXT NOT NULL,
			layer      INTEGER NOT NULL,
			node_id    INTEGER NOT NULL,
			bid        REAL NOT NULL,
			claimed_at TEXT NOT NULL,
			PRIMARY KEY (job_id, layer)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_layer_placements_node ON layer_placements(node_id)`,

		`CREATE TABLE IF NOT EXISTS node_snapshots (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id      INTEGER NOT NULL,
			avail_cpu    REAL NOT NULL,
			avail_gpu    REAL NOT NULL,
			util_rate    REAL NOT NULL,
			snapshot_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_node_snapshots_node ON node_snapshots(node_id, snapshot_at)`,
	}
}

// RecordJobDispatched inserts a new job outcome row at dispatch time.
func (db *DB) RecordJobDispatched(jobID string, nLayer int, gpuType string, dispatchedAt time.Time) error {
	_, err := db.db.Exec(`
		INSERT INTO job_outcomes (job_id, n_layer, gpu_type, dispatched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_id) DO NOTHING
	`, jobID, nLayer, gpuType, dispatchedAt.Format(time.RFC3339))
	return err
}

// RecordLayerPlacement upserts one layer's final placement.
func (db *DB) RecordLayerPlacement(jobID string, layer, nodeID int, bid float64, claimedAt time.Time) error {
	_, err := db.db.Exec(`
		INSERT INTO layer_placements (job_id, layer, node_id, bid, claimed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id, layer) DO UPDATE SET
			node_id    = excluded.node_id,
			bid        = excluded.bid,
			claimed_at = excluded.claimed_at
	`, jobID, layer, nodeID, bid, claimedAt.Format(time.RFC3339))
	return err
}

// MarkJobComplete records a job's final placement count and completion
// time, setting fully_placed when layersPlaced equals the job's n_layer.
func (db *DB) MarkJobComplete(jobID string, layersPlaced int, completedAt time.Time) error {
	_, err := db.db.Exec(`
		UPDATE job_outcomes SET
			layers_placed = ?,
			fully_placed  = CASE WHEN ? >= n_layer THEN 1 ELSE 0 END,
			completed_at  = ?
		WHERE job_id = ?
	`, layersPlaced, layersPlaced, completedAt.Format(time.RFC3339), jobID)
	return err
}

// JobOutcome is one row of job_outcomes.
type JobOutcome struct {
	JobID        string
	NLayer       int
	LayersPlaced int
	FullyPlaced  bool
	GPUType      string
	DispatchedAt time.Time
	CompletedAt  *time.Time
}

// GetJobOutcome fetches a single job's recorded outcome.
func (db *DB) GetJobOutcome(jobID string) (JobOutcome, error) {
	var (
		out          JobOutcome
		fullyInt     int
		dispatchedAt string
		completedAt  sql.NullString
	)
	err := db.db.QueryRow(`
		SELECT job_id, n_layer, layers_placed, fully_placed, gpu_type, dispatched_at, completed_at
		FROM job_outcomes WHERE job_id = ?
	`, jobID).Scan(&out.JobID, &out.NLayer, &out.LayersPlaced, &fullyInt, &out.GPUType, &dispatchedAt, &completedAt)
	if err != nil {
		return JobOutcome{}, err
	}
	out.FullyPlaced = fullyInt != 0
	out.DispatchedAt, _ = time.Parse(time.RFC3339, dispatchedAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		out.CompletedAt = &t
	}
	return out, nil
}

// ListIncompleteJobs returns every job whose outcome row has not yet
// reached fully_placed.
func (db *DB) ListIncompleteJobs() ([]string, error) {
	rows, err := db.db.Query(`SELECT job_id FROM job_outcomes WHERE fully_placed = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordNodeSnapshot appends one point-in-time utilization reading for
// a node.
func (db *DB) RecordNodeSnapshot(nodeID int, availCPU, availGPU, utilRate float64) error {
	_, err := db.db.Exec(`
		INSERT INTO node_snapshots (node_id, avail_cpu, avail_gpu, util_rate)
		VALUES (?, ?, ?, ?)
	`, nodeID, availCPU, availGPU, utilRate)
	return err
}

// AvgUtilForNode returns the average util_rate recorded for nodeID
// since since.
func (db *DB) AvgUtilForNode(nodeID int, since time.Time) (float64, error) {
	var avg sql.NullFloat64
	err := db.db.QueryRow(`
		SELECT AVG(util_rate) FROM node_snapshots WHERE node_id = ? AND snapshot_at >= ?
	`, nodeID, since.Format(time.RFC3339)).Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}
