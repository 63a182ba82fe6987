package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const (
	SettingAlertsChannel    = "alerts_channel"
	SettingWatchlistChannel = "watchlist_channel"
	SettingWatchlistMessage = "watchlist_message"
)

// GetSetting returns the stored value and whether the key exists.
func (db *DB) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?);`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM settings WHERE key = ?;`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// GetInt64Setting reads a numeric setting such as a chat or message id. Unparseable values read as absent.
func (db *DB) GetInt64Setting(ctx context.Context, key string) (int64, bool, error) {
	raw, ok, err := db.GetSetting(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return v, true, nil
}

func (db *DB) SetInt64Setting(ctx context.Context, key string, value int64) error {
	return db.SetSetting(ctx, key, strconv.FormatInt(value, 10))
}
