package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/types"
)

const tradeColumns = `id, owner_id, symbol, entry, sl, tp, notes, created_at`

func (db *DB) InsertTrade(ctx context.Context, owner int64, symbol string, entry, stopLoss, takeProfit decimal.Decimal, notes string) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO trades (owner_id, symbol, entry, sl, tp, notes) VALUES (?, ?, ?, ?, ?, ?);`,
		owner, symbol, entry.String(), stopLoss.String(), takeProfit.String(), notes)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read trade id: %w", err)
	}
	log.Debugf("Trade inserted: ID: %d, Owner: %d, Symbol: %s, Entry: %s, SL: %s, TP: %s", id, owner, symbol, entry, stopLoss, takeProfit)
	return id, nil
}

// ListTrades returns every trade, oldest first.
func (db *DB) ListTrades(ctx context.Context) ([]types.Trade, error) {
	return db.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY id;`)
}

// GetTradesByOwner returns the owner's trades, newest first.
func (db *DB) GetTradesByOwner(ctx context.Context, owner int64) ([]types.Trade, error) {
	return db.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades WHERE owner_id = ? ORDER BY id DESC;`, owner)
}

func (db *DB) queryTrades(ctx context.Context, query string, args ...any) ([]types.Trade, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []types.Trade
	for rows.Next() {
		var (
			trade     types.Trade
			createdAt int64
		)
		if err := rows.Scan(&trade.ID, &trade.Owner, &trade.Symbol, &trade.Entry, &trade.StopLoss, &trade.TakeProfit, &trade.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		trade.CreatedAt = time.Unix(createdAt, 0)
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}
