package telegram

import (
	"context"
	"runtime/debug"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/commands"
	"wicksy-telegram-bot/internal/metrics"
	"wicksy-telegram-bot/lib/helpers"
	"wicksy-telegram-bot/lib/translation"
)

// NewBot creates new telegram bot
func NewBot(c BotConfig) (*Bot, error) {
	var (
		bot *tgbotapi.BotAPI
		err error
	)
	if c.APIEndpoint != "" {
		bot, err = tgbotapi.NewBotAPIWithAPIEndpoint(c.Token, c.APIEndpoint)
	} else {
		bot, err = tgbotapi.NewBotAPI(c.Token)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:    bot,
		Config: c,
	}, nil
}

// Attach wires the command handler and metrics used by HandleUpdate. m may be nil.
func (b *Bot) Attach(h *commands.Handler, m *metrics.BotMetrics) {
	b.handler = h
	b.metrics = m
}

// GetUpdatesChannel gets new updates updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// Serve handles updates until ctx is cancelled.
func (b *Bot) Serve(ctx context.Context) error {
	updates, err := b.GetUpdatesChannel()
	if err != nil {
		return err
	}
	defer b.Bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		log.Debug("Received non-message or non-command")
		return
	}
	if !update.Message.IsCommand() {
		return
	}

	if b.metrics != nil {
		b.metrics.ObserveMessage(update.Message.Chat.ID, update.Message.Chat.Title)
	}
	b.handleCommand(ctx, update)
}

func (b *Bot) handleCommand(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, debug.Stack())
		}
	}()

	text := b.HandleUpdate(ctx, update)
	if text == "" {
		return
	}

	err := b.SendMessage(Message{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		MessageID: update.Message.MessageID,
	})
	if err != nil {
		log.Errorf("Failed to send message: %v", err)
	} else if b.metrics != nil {
		b.metrics.CommandsProcessed.Inc()
	}
}

// HandleUpdate runs the command in u and returns the MarkdownV2 reply. An empty reply means the
// command already answered, e.g. with a photo.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) string {
	text := commands.Help()
	log.Debugf("received command: %s", u.Message.Command())

	req := commands.Request{
		ChatID:  u.Message.Chat.ID,
		UserID:  u.Message.Chat.ID,
		IsGroup: u.Message.Chat.IsGroup() || u.Message.Chat.IsSuperGroup(),
		Args:    u.Message.CommandArguments(),
	}
	if u.Message.From != nil {
		req.UserID = u.Message.From.ID
	}

	var err error
	switch u.Message.Command() {
	case "alert":
		text, err = b.handler.CommandAlert(ctx, req)
	case "watchlist":
		text, err = b.handler.CommandWatchlist(ctx, req)
	case "trade":
		text, err = b.handler.CommandTrade(ctx, req)
	case "search":
		text, err = b.handler.CommandSearch(ctx, req)
	case "chart":
		var chartData []byte
		chartData, text, err = b.handler.CommandChart(ctx, req)
		if errors.Is(err, commands.ErrCoinNotFound) {
			log.Debug(err)
			return helpers.EscapeMarkdownV2(translation.Translate("Coin not found"))
		}
		if err == nil && chartData != nil {
			if err := b.SendPhoto(u.Message.Chat.ID, u.Message.MessageID, chartData, text); err != nil {
				log.Error("error sending chart: ", err)
			}
			return ""
		}
	}

	if err != nil {
		log.Error(err)
		return helpers.EscapeMarkdownV2(translation.Translate("Something went wrong, please try again later."))
	}
	return text
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message to chat %d", m.ChatID)
}

func (b *Bot) SendPhoto(chatID int64, replyTo int, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: png,
	})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdownV2
	photo.ReplyToMessageID = replyTo
	_, err := b.Bot.Send(photo)
	return errors.Wrap(err, "could not send photo")
}

// SendText posts a MarkdownV2 message. It serves the alert notifier tiers.
func (b *Bot) SendText(_ context.Context, chatID int64, text string) error {
	return b.SendMessage(Message{ChatID: chatID, Text: text})
}

// PostText posts a MarkdownV2 message and returns its id.
func (b *Bot) PostText(_ context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	sent, err := b.Bot.Send(msg)
	if err != nil {
		return 0, errors.Wrapf(err, "could not send message to chat %d", chatID)
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a message. Editing to identical text is not an error.
func (b *Bot) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	edit.DisableWebPagePreview = true
	if _, err := b.Bot.Send(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return errors.Wrapf(err, "could not edit message %d", messageID)
	}
	return nil
}

func (b *Bot) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := b.Bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return errors.Wrapf(err, "could not delete message %d", messageID)
}
