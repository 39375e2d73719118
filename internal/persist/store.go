// Package persist provides an optional SQLite-backed store for
// snapshot.Snapshot values, adapted from the teacher's versioned state
// store. Lives outside the core import graph: field, coherence, boundary,
// sinkhorn, socialphase, feature, contextkey, and personality never import
// this package.
package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/trustfield/internal/snapshot"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id        TEXT PRIMARY KEY,
	prior_snapshot_id  TEXT,
	version            INTEGER NOT NULL,
	created_at         INTEGER NOT NULL,
	last_active        INTEGER NOT NULL,
	total_interactions INTEGER NOT NULL,
	curiosity_drive    REAL NOT NULL,
	startle_sensitivity REAL NOT NULL,
	recovery_speed     REAL NOT NULL,
	contexts_json      TEXT NOT NULL,
	inserted_at        TEXT NOT NULL,
	FOREIGN KEY (prior_snapshot_id) REFERENCES snapshots(snapshot_id)
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	snapshot_id TEXT NOT NULL,
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(snapshot_id)
);
`

// #endregion schema

// #region store

// SnapshotStore manages versioned snapshot.Snapshot values in SQLite.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore opens a SQLite database and runs migrations.
func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// #endregion store

// #region write

// Put inserts a snapshot and marks it the active one, mirroring the
// teacher's atomic insert-then-repoint-active-pointer transaction.
func (s *SnapshotStore) Put(snap snapshot.Snapshot) error {
	contextsJSON, err := json.Marshal(snap.Contexts)
	if err != nil {
		return fmt.Errorf("marshal contexts: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var priorPtr interface{}
	if snap.PriorSnapshotID != "" {
		priorPtr = snap.PriorSnapshotID
	}

	_, err = tx.Exec(
		`INSERT INTO snapshots (snapshot_id, prior_snapshot_id, version, created_at, last_active, total_interactions, curiosity_drive, startle_sensitivity, recovery_speed, contexts_json, inserted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SnapshotID, priorPtr, snap.Version, snap.CreatedAt, snap.LastActive, snap.TotalInteractions,
		snap.Personality.CuriosityDrive, snap.Personality.StartleSensitivity, snap.Personality.RecoverySpeed,
		// Fixed-width fractional seconds so inserted_at sorts lexically by time.
		string(contextsJSON), time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_snapshot (id, snapshot_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET snapshot_id = excluded.snapshot_id`,
		snap.SnapshotID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	return tx.Commit()
}

// #endregion write

// #region read

// Get retrieves a specific snapshot by ID.
func (s *SnapshotStore) Get(id string) (snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	var priorID sql.NullString
	var contextsJSON string

	err := s.db.QueryRow(
		`SELECT snapshot_id, prior_snapshot_id, version, created_at, last_active, total_interactions, curiosity_drive, startle_sensitivity, recovery_speed, contexts_json
		 FROM snapshots WHERE snapshot_id = ?`, id,
	).Scan(&snap.SnapshotID, &priorID, &snap.Version, &snap.CreatedAt, &snap.LastActive, &snap.TotalInteractions,
		&snap.Personality.CuriosityDrive, &snap.Personality.StartleSensitivity, &snap.Personality.RecoverySpeed, &contextsJSON)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}

	if priorID.Valid {
		snap.PriorSnapshotID = priorID.String
	}
	if err := json.Unmarshal([]byte(contextsJSON), &snap.Contexts); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("unmarshal contexts: %w", err)
	}
	return snap, nil
}

// GetActive reads the currently active snapshot.
func (s *SnapshotStore) GetActive() (snapshot.Snapshot, error) {
	var id string
	err := s.db.QueryRow(`SELECT snapshot_id FROM active_snapshot WHERE id = 1`).Scan(&id)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("get active: %w", err)
	}
	return s.Get(id)
}

// ListRecent returns the most recently inserted snapshots, newest first.
func (s *SnapshotStore) ListRecent(limit int) ([]snapshot.Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT snapshot_id, prior_snapshot_id, version, created_at, last_active, total_interactions, curiosity_drive, startle_sensitivity, recovery_speed, contexts_json
		 FROM snapshots ORDER BY inserted_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []snapshot.Snapshot
	for rows.Next() {
		var snap snapshot.Snapshot
		var priorID sql.NullString
		var contextsJSON string
		if err := rows.Scan(&snap.SnapshotID, &priorID, &snap.Version, &snap.CreatedAt, &snap.LastActive, &snap.TotalInteractions,
			&snap.Personality.CuriosityDrive, &snap.Personality.StartleSensitivity, &snap.Personality.RecoverySpeed, &contextsJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if priorID.Valid {
			snap.PriorSnapshotID = priorID.String
		}
		if err := json.Unmarshal([]byte(contextsJSON), &snap.Contexts); err != nil {
			return nil, fmt.Errorf("unmarshal contexts: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// #endregion read
