package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func Initialize(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Rate limit counters are written on every throttled request, so every
	// pooled connection waits for the writer lock instead of failing with
	// SQLITE_BUSY.
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	const maxPingAttempts = 5
	pingDelay := 200 * time.Millisecond
	var pingErr error
	for attempt := 1; attempt <= maxPingAttempts; attempt++ {
		pingErr = db.Ping()
		if pingErr == nil {
			break
		}
		if attempt < maxPingAttempts {
			time.Sleep(pingDelay)
			if pingDelay < 2*time.Second {
				pingDelay *= 2
			}
		}
	}
	if pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxPingAttempts, pingErr)
	}

	// WAL lets usage aggregates read while uploads are being recorded.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return db, nil
}

// DefaultSettings are the server defaults seeded on first start. Sizes are
// decimal megabytes; "unlimited" disables a cap explicitly.
var DefaultSettings = map[string]string{
	"daily_upload_mb_user":    "500",
	"daily_upload_mb_admin":   "5000",
	"storage_quota_mb_user":   "1000",
	"storage_quota_mb_admin":  "10000",
	"files_limit_user":        "1000",
	"files_limit_admin":       "unlimited",
	"short_links_limit_user":  "100",
	"short_links_limit_admin": "unlimited",
	"max_upload_mb":           "100",
	"max_files_per_upload":    "10",
	"allowed_mime_prefixes":   "",
	"disallowed_extensions":   ".exe,.bat,.cmd,.com,.scr,.msi",
}

// InitSchema creates all tables and indexes. Safe to call on every startup
// because every statement uses IF NOT EXISTS.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			original_filename TEXT NOT NULL,
			stored_filename TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL,
			FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS short_links (
			id TEXT PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			owner_id TEXT NOT NULL,
			target_url TEXT NOT NULL,
			password_hash TEXT,
			clicks INTEGER NOT NULL DEFAULT 0,
			expires_at_ms INTEGER,
			created_at_ms INTEGER NOT NULL,
			FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS rate_limit_counters (
			scope_key TEXT PRIMARY KEY,
			count INTEGER NOT NULL,
			window_start_ms INTEGER NOT NULL,
			expires_at_ms INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_files_owner_id ON files(owner_id);
		CREATE INDEX IF NOT EXISTS idx_files_owner_created ON files(owner_id, created_at_ms);
		CREATE INDEX IF NOT EXISTS idx_short_links_owner_id ON short_links(owner_id);
		CREATE INDEX IF NOT EXISTS idx_short_links_expires_at ON short_links(expires_at_ms);
		CREATE INDEX IF NOT EXISTS idx_rate_limit_counters_expires_at ON rate_limit_counters(expires_at_ms);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Per-user limit overrides. NULL (or 0) falls through to the role default.
	for _, column := range []string{"max_storage_mb", "max_upload_mb", "files_limit", "short_links_limit"} {
		if err := addColumnIfNotExists(db, "users", column, "INTEGER"); err != nil {
			return fmt.Errorf("failed to add %s column: %w", column, err)
		}
	}

	for k, v := range DefaultSettings {
		if _, err := db.Exec(`INSERT OR IGNORE INTO app_settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to seed default setting %s: %w", k, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, colDef string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, typ string
		var notnull int
		var dfltValue *string
		var pk int
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, colDef))
	return err
}
