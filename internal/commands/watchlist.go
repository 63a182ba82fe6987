package commands

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/price"
	"wicksy-telegram-bot/internal/types"
	"wicksy-telegram-bot/internal/watchlist"
	"wicksy-telegram-bot/lib/helpers"
	"wicksy-telegram-bot/lib/translation"
)

// CommandWatchlist handles /watchlist and its subcommands. The watchlist is shared by everyone.
func (h *Handler) CommandWatchlist(ctx context.Context, req Request) (string, error) {
	log.Debugf("processing command /watchlist with argument :%s", req.Args)

	sub, rest := splitSubcommand(req.Args)
	switch sub {
	case "add":
		return h.watchAdd(ctx, rest)
	case "remove", "delete":
		return h.watchRemove(ctx, rest)
	case "clear":
		if err := h.db.ClearWatchlist(ctx); err != nil {
			return "", errors.Wrap(err, "command /watchlist clear")
		}
		if err := h.watchlist.Forget(ctx); err != nil {
			return "", errors.Wrap(err, "command /watchlist clear")
		}
		return helpers.EscapeMarkdownV2(translation.Translate("🧹 Watchlist cleared.")), nil
	case "list", "":
		return h.watchList(ctx)
	case "setchannel":
		if !req.IsGroup {
			return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Run this command in the group that should show the watchlist.")), nil
		}
		if err := h.watchlist.SetChannel(ctx, req.ChatID); err != nil {
			return "", errors.Wrap(err, "command /watchlist setchannel")
		}
		return helpers.EscapeMarkdownV2(translation.Translate("✅ Watchlist channel set to this chat.")), nil
	}
	return helpers.EscapeMarkdownV2(translation.Translate("watchlist_command_usage")), nil
}

// classify decides whether symbol is a coin: it must match a crypto search hit by id or ticker.
// Coins are stored by lower-case id, stocks by upper-case ticker.
func (h *Handler) classify(ctx context.Context, symbol string) (string, types.AssetType) {
	for _, c := range h.searcher.Crypto(ctx, symbol) {
		if strings.EqualFold(c.Symbol, symbol) || strings.EqualFold(c.Ticker, symbol) {
			return strings.ToLower(c.Symbol), types.AssetCrypto
		}
	}
	return strings.ToUpper(symbol), types.AssetStock
}

func (h *Handler) watchAdd(ctx context.Context, args string) (string, error) {
	raw := strings.TrimSpace(args)
	if raw == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("watchlist_command_usage")), nil
	}
	if strings.Contains(raw, "(") {
		raw = price.NormalizeSymbol(raw)
	}

	symbol, assetType := h.classify(ctx, raw)
	added, err := h.db.AddWatch(ctx, symbol, assetType)
	if err != nil {
		return "", errors.Wrap(err, "command /watchlist add")
	}
	if !added {
		return translation.Translate("`%s` is already on the watchlist\\.", helpers.EscapeMarkdownV2Code(symbol)), nil
	}
	return translation.Translate("🔍 Added `%s` as %s\\.", helpers.EscapeMarkdownV2Code(symbol), assetType), nil
}

func (h *Handler) watchRemove(ctx context.Context, args string) (string, error) {
	clean := price.NormalizeSymbol(args)
	if clean == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("watchlist_command_usage")), nil
	}

	removed, err := h.db.RemoveWatch(ctx, clean)
	if err != nil {
		return "", errors.Wrap(err, "command /watchlist remove")
	}
	if !removed {
		return translation.Translate("⚠️ `%s` is not on the watchlist\\.", helpers.EscapeMarkdownV2Code(clean)), nil
	}
	return translation.Translate("❌ Removed `%s`\\.", helpers.EscapeMarkdownV2Code(clean)), nil
}

func (h *Handler) watchList(ctx context.Context) (string, error) {
	items, err := h.db.ListWatchlist(ctx)
	if err != nil {
		return "", errors.Wrap(err, "command /watchlist list")
	}
	if len(items) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("Empty watchlist.")), nil
	}

	posted, err := h.watchlist.Run(ctx)
	if errors.Is(err, watchlist.ErrUpdateInProgress) {
		return helpers.EscapeMarkdownV2(translation.Translate("⏳ The watchlist is being refreshed right now.")), nil
	}
	if err != nil {
		return "", errors.Wrap(err, "command /watchlist list")
	}
	if !posted {
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Use /watchlist setchannel first.")), nil
	}
	return helpers.EscapeMarkdownV2(translation.Translate("✅ Watchlist updated.")), nil
}
