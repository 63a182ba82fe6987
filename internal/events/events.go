package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"wicksy-telegram-bot/internal/types"
)

// AlertFired is published once per triggered alert, after delivery was attempted.
type AlertFired struct {
	AlertID   int64           `json:"alert_id"`
	Owner     int64           `json:"owner"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Target    decimal.Decimal `json:"target"`
	Direction types.Direction `json:"direction"`
	Delivered bool            `json:"delivered"`
	FiredAt   time.Time       `json:"fired_at"`
}

type Publisher interface {
	PublishAlertFired(ctx context.Context, e AlertFired) error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishAlertFired(context.Context, AlertFired) error { return nil }

// NATSPublisher publishes events as JSON on a single subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("wicksy-telegram-bot"))
	if err != nil {
		return nil, errors.Wrap(err, "connect to nats")
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) PublishAlertFired(_ context.Context, e AlertFired) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encode alert event")
	}
	return errors.Wrapf(p.conn.Publish(p.subject, data), "publish to %s", p.subject)
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}
