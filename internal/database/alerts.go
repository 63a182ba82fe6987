package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/types"
)

const alertColumns = `id, owner_id, symbol, target, direction, paused, created_at`

// InsertAlert saves an alert, replacing an identical owner+symbol+target+direction alert if one exists.
func (db *DB) InsertAlert(ctx context.Context, owner int64, symbol string, target decimal.Decimal, direction types.Direction) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin alert insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM alerts WHERE owner_id = ? AND symbol = ? AND target = ? AND direction = ?;`,
		owner, symbol, target.String(), string(direction))
	if err != nil {
		return 0, fmt.Errorf("failed to dedupe alert: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO alerts (owner_id, symbol, target, direction, paused) VALUES (?, ?, ?, ?, 0);`,
		owner, symbol, target.String(), string(direction))
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read alert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit alert: %w", err)
	}

	log.Debugf("Alert inserted: ID: %d, Owner: %d, Symbol: %s, Target: %s, Direction: %s", id, owner, symbol, target, direction)
	return id, nil
}

// ListActiveAlerts returns every alert that is not paused.
func (db *DB) ListActiveAlerts(ctx context.Context) ([]types.Alert, error) {
	return db.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE paused = 0 ORDER BY id;`)
}

// ListAllAlerts returns every alert, paused or not.
func (db *DB) ListAllAlerts(ctx context.Context) ([]types.Alert, error) {
	return db.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY id;`)
}

// GetAlertsByOwner returns the owner's alerts, newest first.
func (db *DB) GetAlertsByOwner(ctx context.Context, owner int64) ([]types.Alert, error) {
	alerts, err := db.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE owner_id = ? ORDER BY id DESC;`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for owner %d: %w", owner, err)
	}
	return alerts, nil
}

// DeleteAlerts removes the given alerts in a single statement. An empty id list does not touch the database.
func (db *DB) DeleteAlerts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM alerts WHERE id IN (%s);`, strings.Join(placeholders, ","))
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	return nil
}

// RemoveAlert deletes one of the owner's alerts and reports whether it existed.
func (db *DB) RemoveAlert(ctx context.Context, owner, alertID int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM alerts WHERE id = ? AND owner_id = ?;`, alertID, owner)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert: %w", err)
	}
	return affected(res)
}

// ClearAlerts deletes all of the owner's alerts and returns how many were removed.
func (db *DB) ClearAlerts(ctx context.Context, owner int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM alerts WHERE owner_id = ?;`, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to clear alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// SetAlertPaused pauses or resumes one of the owner's alerts and reports whether it existed.
func (db *DB) SetAlertPaused(ctx context.Context, owner, alertID int64, paused bool) (bool, error) {
	flag := 0
	if paused {
		flag = 1
	}
	res, err := db.conn.ExecContext(ctx, `UPDATE alerts SET paused = ? WHERE id = ? AND owner_id = ?;`, flag, alertID, owner)
	if err != nil {
		return false, fmt.Errorf("failed to update alert: %w", err)
	}
	return affected(res)
}

func (db *DB) queryAlerts(ctx context.Context, query string, args ...any) ([]types.Alert, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var (
			alert     types.Alert
			direction string
			paused    int
			createdAt int64
		)
		if err := rows.Scan(&alert.ID, &alert.Owner, &alert.Symbol, &alert.Target, &direction, &paused, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		alert.Direction = types.Direction(direction)
		alert.Paused = paused != 0
		alert.CreatedAt = time.Unix(createdAt, 0)
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
