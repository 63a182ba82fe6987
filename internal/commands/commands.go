package commands

import (
	"context"
	"strings"
	"time"

	"wicksy-telegram-bot/internal/alert"
	"wicksy-telegram-bot/internal/database"
	"wicksy-telegram-bot/internal/price"
	"wicksy-telegram-bot/lib/translation"
)

// Request is a parsed chat command.
type Request struct {
	ChatID  int64
	UserID  int64
	IsGroup bool
	Args    string
}

type PriceSource interface {
	Get(ctx context.Context, symbol string) price.Quote
}

// WatchlistPublisher maintains the posted watchlist message.
type WatchlistPublisher interface {
	Run(ctx context.Context) (bool, error)
	SetChannel(ctx context.Context, chatID int64) error
	Forget(ctx context.Context) error
}

type HistorySource interface {
	History(ctx context.Context, id string, since time.Time) ([]time.Time, []float64, error)
}

// Handler answers the bot's commands. Replies are MarkdownV2.
type Handler struct {
	db          *database.DB
	searcher    *price.Searcher
	prices      PriceSource
	destination *alert.Destination
	watchlist   WatchlistPublisher
	history     HistorySource
	charts      *chartCache
}

func NewHandler(db *database.DB, searcher *price.Searcher, prices PriceSource, destination *alert.Destination,
	watchlist WatchlistPublisher, history HistorySource) *Handler {
	return &Handler{
		db:          db,
		searcher:    searcher,
		prices:      prices,
		destination: destination,
		watchlist:   watchlist,
		history:     history,
		charts:      newChartCache(),
	}
}

func Help() string {
	return translation.Translate("Command help message")
}

// splitSubcommand returns the lower-cased first word and the rest of args.
func splitSubcommand(args string) (string, string) {
	args = strings.TrimSpace(args)
	sub, rest, _ := strings.Cut(args, " ")
	return strings.ToLower(sub), strings.TrimSpace(rest)
}
