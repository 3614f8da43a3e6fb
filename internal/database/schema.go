package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS complaints (
	id           TEXT PRIMARY KEY,
	train_number TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	station_code TEXT NOT NULL DEFAULT '',
	image_urls   TEXT NOT NULL DEFAULT '[]',
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_complaints_train_created ON complaints(train_number, created_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
	id                     TEXT PRIMARY KEY,
	train_number           TEXT NOT NULL,
	threshold              INTEGER NOT NULL,
	window_minutes         INTEGER NOT NULL,
	unique_users_count     INTEGER NOT NULL,
	total_complaints_count INTEGER NOT NULL,
	station_code           TEXT NOT NULL DEFAULT '',
	next_stations          TEXT NOT NULL DEFAULT '[]',
	complaint_ids          TEXT NOT NULL DEFAULT '[]',
	complaint_summaries    TEXT NOT NULL DEFAULT '[]',
	image_urls             TEXT NOT NULL DEFAULT '[]',
	sms_phone              TEXT NOT NULL DEFAULT '',
	sms_provider           TEXT NOT NULL DEFAULT '',
	sms_message            TEXT NOT NULL DEFAULT '',
	sms_status             TEXT NOT NULL CHECK (sms_status IN ('sent', 'failed', 'skipped')),
	sms_response           TEXT,
	sms_error              TEXT NOT NULL DEFAULT '',
	created_at             INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_train_created ON alerts(train_number, created_at DESC);
`

// OpenDB opens the SQLite database at dbPath and migrates it. ":memory:" is
// accepted for tests.
func OpenDB(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating parent directories: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			logrus.Warnf("Could not enable WAL mode: %v", err)
		}
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := migrateSchema(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func migrateSchema(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&currentVersion)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if currentVersion > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported (max: %d); delete %s to start fresh",
			currentVersion, currentSchemaVersion, dbPath)
	}

	if currentVersion == currentSchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("migration v0→v1: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("clearing schema version: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	logrus.Infof("Migrated database %s to schema version %d", dbPath, currentSchemaVersion)
	return nil
}
