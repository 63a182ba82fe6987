package database

import (
	"context"
	"fmt"

	"wicksy-telegram-bot/internal/types"
)

// AddWatch adds a symbol to the shared watchlist. It reports false when the symbol was already present.
func (db *DB) AddWatch(ctx context.Context, symbol string, assetType types.AssetType) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `INSERT OR IGNORE INTO watchlist (symbol, type) VALUES (?, ?);`, symbol, string(assetType))
	if err != nil {
		return false, fmt.Errorf("failed to insert watchlist symbol: %w", err)
	}
	return affected(res)
}

// RemoveWatch deletes a symbol from the watchlist ignoring case, so crypto ids and stock tickers both match.
func (db *DB) RemoveWatch(ctx context.Context, symbol string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = ? COLLATE NOCASE;`, symbol)
	if err != nil {
		return false, fmt.Errorf("failed to delete watchlist symbol: %w", err)
	}
	return affected(res)
}

func (db *DB) ClearWatchlist(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM watchlist;`); err != nil {
		return fmt.Errorf("failed to clear watchlist: %w", err)
	}
	return nil
}

func (db *DB) ListWatchlist(ctx context.Context) ([]types.WatchItem, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, symbol, type FROM watchlist ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []types.WatchItem
	for rows.Next() {
		var item types.WatchItem
		var assetType string
		if err := rows.Scan(&item.ID, &item.Symbol, &assetType); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		item.Type = types.AssetType(assetType)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watchlist: %w", err)
	}
	return items, nil
}
