package alert

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/database"
	"wicksy-telegram-bot/internal/metrics"
	"wicksy-telegram-bot/internal/types"
	"wicksy-telegram-bot/lib/helpers"
	"wicksy-telegram-bot/lib/translation"
)

// ErrTierUnavailable is returned by a tier that has nowhere to send, e.g. no channel configured.
var ErrTierUnavailable = errors.New("notifier tier unavailable")

// Notification describes one triggered alert.
type Notification struct {
	AlertID   int64
	Owner     int64
	Symbol    string
	Price     decimal.Decimal
	Target    decimal.Decimal
	Direction types.Direction
	Change    decimal.NullDecimal
}

// Text is the MarkdownV2 body shared by every tier.
func (n Notification) Text() string {
	text := translation.Translate("📢 *Alert triggered*\n*%s* is *%s*, which is *%s %s*",
		helpers.EscapeMarkdownV2(n.Symbol),
		helpers.FormatUSD(n.Price, true),
		helpers.EscapeMarkdownV2(string(n.Direction)),
		helpers.FormatUSD(n.Target, true),
	)
	if n.Change.Valid {
		text += "\n" + translation.Translate("24h change: %s", helpers.EscapeMarkdownV2(helpers.FormatChange(n.Change)))
	}
	return text
}

func (n Notification) mentionText() string {
	return helpers.MentionUser(n.Owner, translation.Translate("Alert owner")) + "\n" + n.Text()
}

// Sender posts a MarkdownV2 message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Tier is one delivery strategy. Attempt returns ErrTierUnavailable when the tier cannot be tried at all.
type Tier interface {
	Name() string
	Attempt(ctx context.Context, n Notification) error
}

// SettingsStore persists the alerts channel.
type SettingsStore interface {
	GetInt64Setting(ctx context.Context, key string) (int64, bool, error)
	SetInt64Setting(ctx context.Context, key string, value int64) error
}

// Destination is the configured alerts channel, shared by the channel tier and the setchannel command.
type Destination struct {
	mu       sync.RWMutex
	chatID   int64
	set      bool
	settings SettingsStore
}

func NewDestination(settings SettingsStore) *Destination {
	return &Destination{settings: settings}
}

// Restore loads the channel saved by a previous run.
func (d *Destination) Restore(ctx context.Context) error {
	chatID, ok, err := d.settings.GetInt64Setting(ctx, database.SettingAlertsChannel)
	if err != nil {
		return errors.Wrap(err, "restore alerts channel")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.chatID, d.set = chatID, ok
	return nil
}

func (d *Destination) Channel() (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.chatID, d.set
}

// SetChannel persists chatID and makes it the live alerts channel.
func (d *Destination) SetChannel(ctx context.Context, chatID int64) error {
	if err := d.settings.SetInt64Setting(ctx, database.SettingAlertsChannel, chatID); err != nil {
		return errors.Wrap(err, "save alerts channel")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.chatID, d.set = chatID, true
	return nil
}

// ChannelTier posts to the configured alerts channel and mentions the owner.
type ChannelTier struct {
	Destination *Destination
	Sender      Sender
}

func (t ChannelTier) Name() string { return "channel" }

func (t ChannelTier) Attempt(ctx context.Context, n Notification) error {
	chatID, ok := t.Destination.Channel()
	if !ok {
		return ErrTierUnavailable
	}
	return t.Sender.SendText(ctx, chatID, n.mentionText())
}

// DirectTier messages the owner privately. A Telegram user id is also their private chat id.
type DirectTier struct {
	Sender Sender
}

func (t DirectTier) Name() string { return "direct" }

func (t DirectTier) Attempt(ctx context.Context, n Notification) error {
	return t.Sender.SendText(ctx, n.Owner, n.Text())
}

// GroupDirectory lists group chats the bot has seen, oldest first.
type GroupDirectory interface {
	GroupChats() []int64
}

// BroadcastTier posts to the group chats the bot knows about, oldest first, until one accepts.
type BroadcastTier struct {
	Groups GroupDirectory
	Sender Sender
}

func (t BroadcastTier) Name() string { return "broadcast" }

func (t BroadcastTier) Attempt(ctx context.Context, n Notification) error {
	groups := t.Groups.GroupChats()
	if len(groups) == 0 {
		return ErrTierUnavailable
	}

	var err error
	for _, chatID := range groups {
		if err = t.Sender.SendText(ctx, chatID, n.mentionText()); err == nil {
			return nil
		}
		log.Debugf("broadcast to chat %d failed: %v", chatID, err)
	}
	return err
}

// Notifier tries its tiers in order until one delivers.
type Notifier struct {
	tiers   []Tier
	metrics *metrics.BotMetrics
}

// NewNotifier builds a notifier; m may be nil.
func NewNotifier(m *metrics.BotMetrics, tiers ...Tier) *Notifier {
	return &Notifier{tiers: tiers, metrics: m}
}

// Deliver never fails: errors are logged and reported as delivered=false. A failing or panicking
// tier hands over to the next one.
func (n *Notifier) Deliver(ctx context.Context, note Notification) bool {
	logger := log.WithField("alert_id", note.AlertID).WithField("symbol", note.Symbol)
	for _, tier := range n.tiers {
		err := attempt(ctx, tier, note)
		switch {
		case err == nil:
			n.record(tier.Name(), metrics.OutcomeDelivered)
			logger.Debugf("✅ Alert delivered via %s", tier.Name())
			return true
		case errors.Is(err, ErrTierUnavailable):
			n.record(tier.Name(), metrics.OutcomeUnavailable)
		default:
			n.record(tier.Name(), metrics.OutcomeFailed)
			logger.Warnf("⚠️ Alert delivery via %s failed: %v", tier.Name(), err)
		}
	}

	logger.Errorf("❌ Alert for owner %d could not be delivered", note.Owner)
	return false
}

// attempt runs one tier, turning a panic into an error.
func attempt(ctx context.Context, tier Tier, note Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("🔥 Panic recovered in %s tier for alert %d: %v\n%s", tier.Name(), note.AlertID, r, debug.Stack())
			err = errors.Errorf("tier %s panicked: %v", tier.Name(), r)
		}
	}()
	return tier.Attempt(ctx, note)
}

func (n *Notifier) record(tier, outcome string) {
	if n.metrics != nil {
		n.metrics.RecordDelivery(tier, outcome)
	}
}
