package commands

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/types"
	"wicksy-telegram-bot/lib/helpers"
	"wicksy-telegram-bot/lib/translation"
)

// CommandSearch lists the crypto ids and stock tickers matching a query.
func (h *Handler) CommandSearch(ctx context.Context, req Request) (string, error) {
	log.Debugf("processing command /search with argument :%s", req.Args)

	query := strings.TrimSpace(req.Args)
	if query == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("Usage: /search <name or ticker>")), nil
	}

	candidates := h.searcher.Suggest(ctx, query)
	if len(candidates) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("Nothing found for %s.", query)), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("🔎 Results for *%s*:", helpers.EscapeMarkdownV2(query)))
	for _, c := range candidates {
		label := c.Name
		if c.Ticker != "" && c.Ticker != c.Symbol {
			label = fmt.Sprintf("%s (%s)", c.Name, c.Ticker)
		}
		kind := translation.Translate("stock")
		if c.Type == types.AssetCrypto {
			kind = translation.Translate("crypto")
		}
		b.WriteString(fmt.Sprintf("\n• `%s` %s \\(%s\\)", helpers.EscapeMarkdownV2Code(c.Symbol), helpers.EscapeMarkdownV2(label), kind))
	}
	return b.String(), nil
}
