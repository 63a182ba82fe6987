package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// ParseDirection accepts the direction words users type, case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "above", ">", ">=", "up":
		return DirectionAbove, true
	case "below", "<", "<=", "down":
		return DirectionBelow, true
	}
	return "", false
}

type Alert struct {
	ID        int64           `json:"id"`
	Owner     int64           `json:"owner"`
	Symbol    string          `json:"symbol"`
	Target    decimal.Decimal `json:"target"`
	Direction Direction       `json:"direction"`
	Paused    bool            `json:"paused"`
	CreatedAt time.Time       `json:"created_at"`
}

// Active reports whether the alert is visible to evaluation.
func (a Alert) Active() bool {
	return !a.Paused
}

// Triggered is the inclusive threshold test: above fires at price >= target, below at price <= target.
func (a Alert) Triggered(price decimal.Decimal) bool {
	switch a.Direction {
	case DirectionAbove:
		return price.GreaterThanOrEqual(a.Target)
	case DirectionBelow:
		return price.LessThanOrEqual(a.Target)
	default:
		return false
	}
}

type AssetType string

const (
	AssetCrypto AssetType = "crypto"
	AssetStock  AssetType = "stock"
)

type WatchItem struct {
	ID     int64     `json:"id"`
	Symbol string    `json:"symbol"`
	Type   AssetType `json:"type"`
}

// Trade is a posted trade idea: entry with stop-loss and take-profit levels.
type Trade struct {
	ID         int64           `json:"id"`
	Owner      int64           `json:"owner"`
	Symbol     string          `json:"symbol"`
	Entry      decimal.Decimal `json:"entry"`
	StopLoss   decimal.Decimal `json:"sl"`
	TakeProfit decimal.Decimal `json:"tp"`
	Notes      string          `json:"notes"`
	CreatedAt  time.Time       `json:"created_at"`
}
