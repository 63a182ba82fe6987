package commands

import (
	"context"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/lib/helpers"
	"wicksy-telegram-bot/lib/translation"
)

// CommandTrade handles /trade add and /trade list.
func (h *Handler) CommandTrade(ctx context.Context, req Request) (string, error) {
	log.Debugf("processing command /trade with argument :%s", req.Args)

	sub, rest := splitSubcommand(req.Args)
	switch sub {
	case "add":
		return h.tradeAdd(ctx, req.UserID, rest)
	case "list", "":
		return h.tradeList(ctx, req.UserID)
	}
	return helpers.EscapeMarkdownV2(translation.Translate("trade_command_usage")), nil
}

type tradeArgs struct {
	symbol     string
	entry      decimal.Decimal
	stopLoss   decimal.Decimal
	takeProfit decimal.Decimal
	notes      string
}

// parseTradeArgs reads "<symbol> <entry> <sl> <tp> [notes...]".
func parseTradeArgs(args string) (tradeArgs, error) {
	fields := strings.Fields(args)
	if len(fields) < 4 {
		return tradeArgs{}, errors.New("expected <symbol> <entry> <sl> <tp> [notes]")
	}

	levels := make([]decimal.Decimal, 3)
	for i, raw := range fields[1:4] {
		d, err := decimal.NewFromString(strings.NewReplacer("$", "", ",", "").Replace(raw))
		if err != nil || !d.IsPositive() {
			return tradeArgs{}, errors.Errorf("invalid price %q", raw)
		}
		levels[i] = d
	}

	return tradeArgs{
		symbol:     strings.ToUpper(fields[0]),
		entry:      levels[0],
		stopLoss:   levels[1],
		takeProfit: levels[2],
		notes:      strings.Join(fields[4:], " "),
	}, nil
}

func (h *Handler) tradeAdd(ctx context.Context, owner int64, args string) (string, error) {
	trade, err := parseTradeArgs(args)
	if err != nil {
		log.Debugf("invalid /trade add arguments: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("trade_command_usage")), nil
	}

	if _, err := h.db.InsertTrade(ctx, owner, trade.symbol, trade.entry, trade.stopLoss, trade.takeProfit, trade.notes); err != nil {
		return "", errors.Wrap(err, "command /trade add")
	}

	var b strings.Builder
	b.WriteString(translation.Translate("📊 *Trade idea: %s*", helpers.EscapeMarkdownV2(trade.symbol)))
	b.WriteString("\n" + translation.Translate("Entry: %s", helpers.FormatUSD(trade.entry, true)))
	b.WriteString("\n" + translation.Translate("Stop loss: %s", helpers.FormatUSD(trade.stopLoss, true)))
	b.WriteString("\n" + translation.Translate("Take profit: %s", helpers.FormatUSD(trade.takeProfit, true)))
	if trade.notes != "" {
		b.WriteString("\n" + translation.Translate("Notes: %s", helpers.EscapeMarkdownV2(trade.notes)))
	}
	return b.String(), nil
}

func (h *Handler) tradeList(ctx context.Context, owner int64) (string, error) {
	trades, err := h.db.GetTradesByOwner(ctx, owner)
	if err != nil {
		return "", errors.Wrap(err, "command /trade list")
	}
	if len(trades) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("You have no trades.")), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Your trades:*"))
	for _, t := range trades {
		b.WriteString("\n" + translation.Translate("`#%d` *%s* entry %s, SL %s, TP %s  _%s_",
			t.ID,
			helpers.EscapeMarkdownV2(t.Symbol),
			helpers.FormatUSD(t.Entry, true),
			helpers.FormatUSD(t.StopLoss, true),
			helpers.FormatUSD(t.TakeProfit, true),
			helpers.EscapeMarkdownV2(humanize.Time(t.CreatedAt)),
		))
	}
	return b.String(), nil
}
