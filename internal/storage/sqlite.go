// Package storage is the durable per-device cache behind the scheduling
// service and the sync worker: a SQLite database holding the appointment
// cache and the pending vital-sign readings.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// StorageError wraps any persistence failure. It is fatal for the operation
// that hit it and is never swallowed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store is an explicitly constructed, injected handle: opened at startup,
// closed at shutdown, no ambient global.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS appointments (
	id            TEXT PRIMARY KEY,
	patient_id    TEXT NOT NULL,
	patient_name  TEXT NOT NULL,
	clinic        TEXT NOT NULL,
	location      TEXT NOT NULL,
	start_ms      INTEGER NOT NULL,
	end_ms        INTEGER NOT NULL,
	status        TEXT NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	updated_ms    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_appointments_room  ON appointments (clinic, location, status);
CREATE INDEX IF NOT EXISTS idx_appointments_start ON appointments (start_ms);

CREATE TABLE IF NOT EXISTS vital_signs (
	id                   TEXT PRIMARY KEY,
	patient_id           TEXT NOT NULL,
	recorded_ms          INTEGER NOT NULL,
	heart_rate_bpm       INTEGER NOT NULL,
	body_temperature_c   REAL NOT NULL,
	blood_glucose_mmol_l REAL NOT NULL,
	synced               INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_vital_signs_unsynced ON vital_signs (synced) WHERE synced = 0;
CREATE INDEX IF NOT EXISTS idx_vital_signs_patient  ON vital_signs (patient_id, recorded_ms);
`

// Open opens (creating if needed) the cache at path, enables WAL mode and
// migrates the schema.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, storageErr("ping", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, storageErr("migrate", err)
	}

	log.Info("local store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return storageErr("close", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
