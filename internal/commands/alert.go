package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/price"
	"wicksy-telegram-bot/internal/types"
	"wicksy-telegram-bot/lib/helpers"
	"wicksy-telegram-bot/lib/translation"
)

// CommandAlert handles /alert and its subcommands.
func (h *Handler) CommandAlert(ctx context.Context, req Request) (string, error) {
	log.Debugf("processing command /alert with argument :%s", req.Args)

	sub, rest := splitSubcommand(req.Args)
	switch sub {
	case "add":
		return h.alertAdd(ctx, req.UserID, rest)
	case "list", "":
		return h.alertList(ctx, req.UserID)
	case "remove", "delete":
		return h.alertRemove(ctx, req.UserID, rest)
	case "clear":
		n, err := h.db.ClearAlerts(ctx, req.UserID)
		if err != nil {
			return "", errors.Wrap(err, "command /alert clear")
		}
		return helpers.EscapeMarkdownV2(translation.Translate("🧹 Cleared %d alerts.", n)), nil
	case "pause":
		return h.alertSetPaused(ctx, req.UserID, rest, true)
	case "resume":
		return h.alertSetPaused(ctx, req.UserID, rest, false)
	case "setchannel":
		if !req.IsGroup {
			return helpers.EscapeMarkdownV2(translation.Translate("⚠️ Run this command in the group that should receive alerts.")), nil
		}
		if err := h.destination.SetChannel(ctx, req.ChatID); err != nil {
			return "", errors.Wrap(err, "command /alert setchannel")
		}
		return helpers.EscapeMarkdownV2(translation.Translate("✅ Alerts will post in this chat (DMs used if not set).")), nil
	case "test":
		return h.alertTest(ctx, rest)
	}
	return helpers.EscapeMarkdownV2(translation.Translate("alert_command_usage")), nil
}

// parseAlertArgs reads "<symbol...> <target> <direction>"; the symbol may contain spaces.
func parseAlertArgs(args string) (symbol string, target decimal.Decimal, direction types.Direction, err error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return "", decimal.Decimal{}, "", errors.New("expected <symbol> <target> <above|below>")
	}

	direction, ok := types.ParseDirection(fields[len(fields)-1])
	if !ok {
		return "", decimal.Decimal{}, "", errors.Errorf("unknown direction %q", fields[len(fields)-1])
	}

	raw := strings.NewReplacer("$", "", ",", "").Replace(fields[len(fields)-2])
	target, err = decimal.NewFromString(raw)
	if err != nil || !target.IsPositive() {
		return "", decimal.Decimal{}, "", errors.Errorf("invalid target %q", fields[len(fields)-2])
	}

	return strings.Join(fields[:len(fields)-2], " "), target, direction, nil
}

func (h *Handler) alertAdd(ctx context.Context, owner int64, args string) (string, error) {
	rawSymbol, target, direction, err := parseAlertArgs(args)
	if err != nil {
		log.Debugf("invalid /alert add arguments: %v", err)
		return helpers.EscapeMarkdownV2(translation.Translate("alert_command_usage")), nil
	}

	clean := price.NormalizeSymbol(rawSymbol)
	symbol, found := h.searcher.Pick(ctx, clean)

	id, err := h.db.InsertAlert(ctx, owner, symbol, target, direction)
	if err != nil {
		return "", errors.Wrap(err, "command /alert add")
	}

	text := translation.Translate("📌 Alert `#%d` set for *%s* when price is *%s %s*",
		id,
		helpers.EscapeMarkdownV2(symbol),
		helpers.EscapeMarkdownV2(string(direction)),
		helpers.FormatUSD(target, true),
	)
	if !found {
		text += "\n" + helpers.EscapeMarkdownV2(
			translation.Translate("⚠️ %s was not found by any provider, we'll still try it.", symbol))
	}
	return text, nil
}

func (h *Handler) alertList(ctx context.Context, owner int64) (string, error) {
	alerts, err := h.db.GetAlertsByOwner(ctx, owner)
	if err != nil {
		return "", errors.Wrap(err, "command /alert list")
	}
	if len(alerts) == 0 {
		return helpers.EscapeMarkdownV2(translation.Translate("You have no alerts.")), nil
	}

	var b strings.Builder
	b.WriteString(translation.Translate("*Your alerts:*"))
	for _, a := range alerts {
		state := "🔔"
		if a.Paused {
			state = "⏸"
		}
		b.WriteString(fmt.Sprintf("\n%s `#%d`  *%s*  %s %s  _%s_",
			state,
			a.ID,
			helpers.EscapeMarkdownV2(a.Symbol),
			helpers.EscapeMarkdownV2(string(a.Direction)),
			helpers.FormatUSD(a.Target, true),
			helpers.EscapeMarkdownV2(humanize.Time(a.CreatedAt)),
		))
	}
	return b.String(), nil
}

func parseAlertID(args string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(args), "#"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) alertRemove(ctx context.Context, owner int64, args string) (string, error) {
	id, ok := parseAlertID(args)
	if !ok {
		return helpers.EscapeMarkdownV2(translation.Translate("alert_command_usage")), nil
	}

	removed, err := h.db.RemoveAlert(ctx, owner, id)
	if err != nil {
		return "", errors.Wrap(err, "command /alert remove")
	}
	if !removed {
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ No alert #%d found.", id)), nil
	}
	return helpers.EscapeMarkdownV2(translation.Translate("🗑️ Removed alert #%d.", id)), nil
}

func (h *Handler) alertSetPaused(ctx context.Context, owner int64, args string, paused bool) (string, error) {
	id, ok := parseAlertID(args)
	if !ok {
		return helpers.EscapeMarkdownV2(translation.Translate("alert_command_usage")), nil
	}

	changed, err := h.db.SetAlertPaused(ctx, owner, id, paused)
	if err != nil {
		return "", errors.Wrap(err, "command /alert pause")
	}
	if !changed {
		return helpers.EscapeMarkdownV2(translation.Translate("⚠️ No alert #%d found.", id)), nil
	}
	if paused {
		return helpers.EscapeMarkdownV2(translation.Translate("⏸ Paused alert #%d.", id)), nil
	}
	return helpers.EscapeMarkdownV2(translation.Translate("▶️ Resumed alert #%d.", id)), nil
}

func (h *Handler) alertTest(ctx context.Context, args string) (string, error) {
	symbol := strings.TrimSpace(args)
	if symbol == "" {
		return helpers.EscapeMarkdownV2(translation.Translate("alert_command_usage")), nil
	}

	q := h.prices.Get(ctx, symbol)
	if !q.Resolved() {
		return helpers.EscapeMarkdownV2(translation.Translate("❓ No price found for %s.", symbol)), nil
	}
	return translation.Translate("🧪 *%s* is *%s* \\(%s, %s\\)",
		helpers.EscapeMarkdownV2(symbol),
		helpers.FormatUSD(q.Price.Decimal, true),
		helpers.EscapeMarkdownV2(helpers.FormatChange(q.Change)),
		helpers.EscapeMarkdownV2(string(q.Source)),
	), nil
}
