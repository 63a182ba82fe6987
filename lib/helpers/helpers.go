package helpers

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func EscapeMarkdownV2(text string) string {
	charactersToEscape := []string{"\\", ".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}

	for _, char := range charactersToEscape {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

// EscapeMarkdownV2Code escapes text placed inside a MarkdownV2 code span, where only ` and \ are special.
func EscapeMarkdownV2Code(text string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text)
}

// FormatPriceUS formats a price with US thousand separators. Prices under one dollar keep
// more decimals so small-cap coins don't collapse to $0.00.
func FormatPriceUS(price decimal.Decimal, escapeMarkdown bool) string {
	decimals := int32(2)
	abs := price.Abs()
	if abs.LessThan(decimal.NewFromFloat(0.00001)) && !abs.IsZero() {
		decimals = 8
	} else if abs.LessThan(decimal.NewFromInt(1)) && !abs.IsZero() {
		decimals = 6
	}

	formatted := groupThousands(price.StringFixed(decimals))
	if escapeMarkdown {
		return EscapeMarkdownV2(formatted)
	}
	return formatted
}

// FormatUSD is FormatPriceUS with a dollar sign, e.g. "$1,234.56".
func FormatUSD(price decimal.Decimal, escapeMarkdown bool) string {
	return "$" + FormatPriceUS(price, escapeMarkdown)
}

// FormatChange renders a percentage change as "🔺1.23%" or "🔻1.23%", or "N/A" when unknown.
func FormatChange(change decimal.NullDecimal) string {
	if !change.Valid {
		return "N/A"
	}
	arrow := "🔺"
	if change.Decimal.IsNegative() {
		arrow = "🔻"
	}
	return fmt.Sprintf("%s%s%%", arrow, change.Decimal.Abs().StringFixed(2))
}

// MentionUser links a Telegram user by id in MarkdownV2.
func MentionUser(userID int64, name string) string {
	return fmt.Sprintf("[%s](tg://user?id=%d)", EscapeMarkdownV2(name), userID)
}

func groupThousands(fixed string) string {
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, hasFrac := strings.Cut(fixed, ".")

	var whole int64
	if _, err := fmt.Sscan(intPart, &whole); err != nil {
		return sign + fixed
	}

	p := message.NewPrinter(language.English)
	out := sign + p.Sprintf("%d", whole)
	if hasFrac {
		out += "." + frac
	}
	return out
}
