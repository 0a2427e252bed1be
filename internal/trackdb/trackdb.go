// Package trackdb persists tracking runs to SQLite. Each run stores its
// parameters and statistics as JSON plus one row per track point, so runs
// can be compared and re-rendered without re-tracking.
package trackdb

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/trajectory.report/internal/track"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the run/track store.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the database at path and applies any
// pending migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

// applyPragmas runs the SQLite PRAGMAs once, on whichever pooled connection
// executes them. journal_mode = WAL is stored in the database file and holds
// for every connection; synchronous and busy_timeout apply only to the
// connection that ran them.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("exec %q: %w", pragma, err)
		}
	}
	return nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID   string
	Created time.Time
	Stats   track.Stats
}

// TrackPoint is one stored detection within a persisted track.
type TrackPoint struct {
	DetectionIdx int
	Frame        int
	Pos          []float64
}

// InsertRun persists the tracker's current tracks, parameters and stats
// under a fresh run id.
func (db *DB) InsertRun(t *track.Tracker) (string, error) {
	runID := uuid.NewString()
	stats := t.Stats()
	paramsJSON, err := json.Marshal(t.Params())
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (run_id, created_unix_nanos, params_json, stats_json) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UnixNano(), string(paramsJSON), string(statsJSON),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO track_points (run_id, track_idx, point_seq, detection_idx, frame, pos_json) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()

	for trackIdx, tr := range t.Tracks() {
		for seq, detIdx := range tr {
			frame, pos := t.Detection(detIdx)
			posJSON, err := json.Marshal(pos)
			if err != nil {
				return "", fmt.Errorf("marshal position: %w", err)
			}
			if _, err := stmt.Exec(runID, trackIdx, seq, detIdx, frame, string(posJSON)); err != nil {
				return "", fmt.Errorf("insert point run=%s track=%d seq=%d: %w", runID, trackIdx, seq, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// ListRuns returns all stored runs, most recent first.
func (db *DB) ListRuns() ([]RunSummary, error) {
	rows, err := db.Query(
		`SELECT run_id, created_unix_nanos, stats_json FROM runs ORDER BY created_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var createdNanos int64
		var statsJSON string
		if err := rows.Scan(&r.RunID, &createdNanos, &statsJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(statsJSON), &r.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats for %s: %w", r.RunID, err)
		}
		r.Created = time.Unix(0, createdNanos)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadTracks returns the tracks of one run, in stored track order.
func (db *DB) LoadTracks(runID string) ([][]TrackPoint, error) {
	rows, err := db.Query(
		`SELECT track_idx, detection_idx, frame, pos_json FROM track_points
		 WHERE run_id = ? ORDER BY track_idx, point_seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tracks for %s: %w", runID, err)
	}
	defer rows.Close()

	var tracks [][]TrackPoint
	for rows.Next() {
		var trackIdx int
		var p TrackPoint
		var posJSON string
		if err := rows.Scan(&trackIdx, &p.DetectionIdx, &p.Frame, &posJSON); err != nil {
			return nil, fmt.Errorf("scan track point: %w", err)
		}
		if err := json.Unmarshal([]byte(posJSON), &p.Pos); err != nil {
			return nil, fmt.Errorf("unmarshal position: %w", err)
		}
		for len(tracks) <= trackIdx {
			tracks = append(tracks, nil)
		}
		tracks[trackIdx] = append(tracks[trackIdx], p)
	}
	return tracks, rows.Err()
}
