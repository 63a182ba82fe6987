package price

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Source identifies which provider priced a symbol.
type Source string

const (
	SourceNone   Source = ""
	SourceCrypto Source = "crypto"
	SourceStock  Source = "stock"
)

// ErrNotFound is returned by a provider that answered but does not know the symbol.
var ErrNotFound = errors.New("symbol not found")

// Quote is a resolved price with its percentage change. A Quote with an invalid Price is unresolved.
type Quote struct {
	Price  decimal.NullDecimal `json:"price"`
	Change decimal.NullDecimal `json:"change"`
	Source Source              `json:"source"`
}

func (q Quote) Resolved() bool {
	return q.Price.Valid
}

func NewQuote(price, change float64, source Source) Quote {
	return Quote{
		Price:  decimal.NewNullDecimal(decimal.NewFromFloat(price)),
		Change: decimal.NewNullDecimal(decimal.NewFromFloat(change)),
		Source: source,
	}
}

// Provider prices a single symbol. Implementations return ErrNotFound for unknown symbols and any other
// error for transport or upstream failures.
type Provider interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

var parenthesized = regexp.MustCompile(`\(([^)]+)\)`)

// NormalizeSymbol extracts a ticker from labels like "Apple Inc. (AAPL)" and upper-cases it.
func NormalizeSymbol(symbol string) string {
	if m := parenthesized.FindStringSubmatch(symbol); m != nil {
		return strings.ToUpper(strings.TrimSpace(m[1]))
	}
	return strings.ToUpper(strings.TrimSpace(symbol))
}
