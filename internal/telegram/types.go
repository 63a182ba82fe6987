package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"wicksy-telegram-bot/internal/commands"
	"wicksy-telegram-bot/internal/metrics"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
	// APIEndpoint overrides the Bot API URL pattern, e.g. for a local Bot API server.
	APIEndpoint string
}

// Bot telegram interaction client
type Bot struct {
	Bot     *tgbotapi.BotAPI
	Config  BotConfig
	handler *commands.Handler
	metrics *metrics.BotMetrics
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
