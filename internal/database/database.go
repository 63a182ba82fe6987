package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DB is the bot's sqlite store: alerts, the shared watchlist, trade ideas, settings and persisted metrics.
type DB struct {
	conn *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		target TEXT NOT NULL,
		direction TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	);`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT UNIQUE NOT NULL,
		type TEXT CHECK(type IN ('crypto','stock')) NOT NULL DEFAULT 'stock'
	);`,
	`CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		entry TEXT NOT NULL,
		sl TEXT NOT NULL,
		tp TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	);`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_key TEXT NOT NULL DEFAULT '',
		label_value TEXT NOT NULL DEFAULT '',
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_key, label_value)
	);`,
}

// Open connects to the sqlite file at dbPath, creating parent directories and tables as needed.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY between the loops and command handlers
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	log.Debugf("Database initialized successfully at %s", dbPath)
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	// alerts tables created before pausing existed lack the column
	hasPaused, err := db.hasColumn(ctx, "alerts", "paused")
	if err != nil {
		return err
	}
	if !hasPaused {
		if _, err := db.conn.ExecContext(ctx, `ALTER TABLE alerts ADD COLUMN paused INTEGER NOT NULL DEFAULT 0;`); err != nil {
			return fmt.Errorf("failed to add paused column: %w", err)
		}
	}
	return nil
}

func (db *DB) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (db *DB) Close() error {
	if db != nil && db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
