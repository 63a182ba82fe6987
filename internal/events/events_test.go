package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wicksy-telegram-bot/internal/types"
)

const natsURL = "nats://localhost:4222"

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, Nop{}.PublishAlertFired(context.Background(), AlertFired{AlertID: 1}))
}

func TestNATSPublisher(t *testing.T) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		t.Skipf("skipping test; nats not available: %v", err)
	}
	defer conn.Close()

	const subject = "wicksy.test.alerts"
	sub, err := conn.SubscribeSync(subject)
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	publisher, err := NewNATSPublisher(natsURL, subject)
	require.NoError(t, err)
	defer publisher.Close()

	event := AlertFired{
		AlertID:   7,
		Owner:     42,
		Symbol:    "bitcoin",
		Price:     decimal.NewFromInt(50000),
		Target:    decimal.NewFromInt(50000),
		Direction: types.DirectionAbove,
		Delivered: true,
		FiredAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, publisher.PublishAlertFired(context.Background(), event))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var got AlertFired
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, event.AlertID, got.AlertID)
	assert.Equal(t, event.Symbol, got.Symbol)
	assert.True(t, event.Price.Equal(got.Price))
	assert.Equal(t, types.DirectionAbove, got.Direction)
	assert.True(t, event.FiredAt.Equal(got.FiredAt))
}
