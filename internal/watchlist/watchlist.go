package watchlist

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/database"
	"wicksy-telegram-bot/internal/metrics"
	"wicksy-telegram-bot/internal/price"
	"wicksy-telegram-bot/internal/types"
	"wicksy-telegram-bot/lib/helpers"
	"wicksy-telegram-bot/lib/translation"
)

// ErrUpdateInProgress is returned by Run when the previous update has not finished.
var ErrUpdateInProgress = errors.New("watchlist update already in progress")

type Store interface {
	ListWatchlist(ctx context.Context) ([]types.WatchItem, error)
	GetInt64Setting(ctx context.Context, key string) (int64, bool, error)
	SetInt64Setting(ctx context.Context, key string, value int64) error
	DeleteSetting(ctx context.Context, key string) error
}

type PriceSource interface {
	Get(ctx context.Context, symbol string) price.Quote
}

// Publisher posts and maintains the watchlist message in a chat.
type Publisher interface {
	PostText(ctx context.Context, chatID int64, text string) (messageID int, err error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Updater keeps one message in the watchlist channel showing the current prices.
type Updater struct {
	store     Store
	prices    PriceSource
	publisher Publisher
	metrics   *metrics.BotMetrics

	running sync.Mutex
}

// NewUpdater builds an updater; m may be nil.
func NewUpdater(store Store, prices PriceSource, publisher Publisher, m *metrics.BotMetrics) *Updater {
	return &Updater{store: store, prices: prices, publisher: publisher, metrics: m}
}

// Run renders the watchlist and upserts it in the configured channel. Without a channel or
// without items nothing is posted.
func (u *Updater) Run(ctx context.Context) (posted bool, err error) {
	if !u.running.TryLock() {
		return false, ErrUpdateInProgress
	}
	defer u.running.Unlock()
	return u.run(ctx)
}

func (u *Updater) run(ctx context.Context) (bool, error) {
	chatID, ok, err := u.store.GetInt64Setting(ctx, database.SettingWatchlistChannel)
	if err != nil {
		return false, errors.Wrap(err, "load watchlist channel")
	}
	if !ok {
		return false, nil
	}

	items, err := u.store.ListWatchlist(ctx)
	if err != nil {
		return false, errors.Wrap(err, "load watchlist")
	}
	if len(items) == 0 {
		return false, nil
	}

	if err := u.upsert(ctx, chatID, u.Render(ctx, items)); err != nil {
		return false, err
	}
	if u.metrics != nil {
		u.metrics.WatchlistRenders.Inc()
	}
	return true, nil
}

func (u *Updater) upsert(ctx context.Context, chatID int64, text string) error {
	messageID, ok, err := u.store.GetInt64Setting(ctx, database.SettingWatchlistMessage)
	if err != nil {
		return errors.Wrap(err, "load watchlist message id")
	}
	if ok {
		err := u.publisher.EditText(ctx, chatID, int(messageID), text)
		if err == nil {
			return nil
		}
		log.Warnf("⚠️ Failed to edit watchlist message %d, posting a new one: %v", messageID, err)
	}

	newID, err := u.publisher.PostText(ctx, chatID, text)
	if err != nil {
		return errors.Wrap(err, "post watchlist")
	}
	return errors.Wrap(u.store.SetInt64Setting(ctx, database.SettingWatchlistMessage, int64(newID)), "save watchlist message id")
}

// Render builds the MarkdownV2 watchlist table.
func (u *Updater) Render(ctx context.Context, items []types.WatchItem) string {
	header := fmt.Sprintf("%-10s | %-12s | %-8s", "SYMBOL", "PRICE", "CHANGE")
	lines := []string{header, strings.Repeat("-", len(header))}

	for _, item := range items {
		q := u.prices.Get(ctx, item.Symbol)

		priceStr := "❓"
		if q.Price.Valid {
			priceStr = helpers.FormatUSD(q.Price.Decimal, false)
		}
		line := fmt.Sprintf("%-10s | %-12s | %-8s", strings.ToUpper(item.Symbol), priceStr, helpers.FormatChange(q.Change))
		lines = append(lines, helpers.EscapeMarkdownV2Code(line))
	}

	return translation.Translate("📋 *Wicksy Watchlist*") + "\n```\n" + strings.Join(lines, "\n") + "\n```"
}

// SetChannel moves the watchlist to chatID and posts it there right away. It waits for an update
// already in flight.
func (u *Updater) SetChannel(ctx context.Context, chatID int64) error {
	u.running.Lock()
	defer u.running.Unlock()

	if err := u.store.SetInt64Setting(ctx, database.SettingWatchlistChannel, chatID); err != nil {
		return errors.Wrap(err, "save watchlist channel")
	}
	if err := u.store.DeleteSetting(ctx, database.SettingWatchlistMessage); err != nil {
		return errors.Wrap(err, "reset watchlist message")
	}
	_, err := u.run(ctx)
	return err
}

// Forget deletes the posted watchlist message, if any, and drops its id. It waits for an update
// already in flight.
func (u *Updater) Forget(ctx context.Context) error {
	u.running.Lock()
	defer u.running.Unlock()

	chatID, hasChannel, err := u.store.GetInt64Setting(ctx, database.SettingWatchlistChannel)
	if err != nil {
		return errors.Wrap(err, "load watchlist channel")
	}
	messageID, hasMessage, err := u.store.GetInt64Setting(ctx, database.SettingWatchlistMessage)
	if err != nil {
		return errors.Wrap(err, "load watchlist message id")
	}
	if hasChannel && hasMessage {
		if err := u.publisher.DeleteMessage(ctx, chatID, int(messageID)); err != nil {
			log.Warnf("⚠️ Failed to delete watchlist message %d: %v", messageID, err)
		}
	}
	return errors.Wrap(u.store.DeleteSetting(ctx, database.SettingWatchlistMessage), "reset watchlist message")
}
