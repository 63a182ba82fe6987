package price

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/types"
)

const searchLimit = 5

// Candidate is one search hit. Symbol is the value to store (a coin id or a ticker).
type Candidate struct {
	Symbol string          `json:"symbol"`
	Ticker string          `json:"ticker"`
	Name   string          `json:"name"`
	Type   types.AssetType `json:"type"`
}

type CryptoSearcher interface {
	SearchCrypto(ctx context.Context, query string) ([]Candidate, error)
}

type StockSearcher interface {
	SearchStock(ctx context.Context, query string) ([]Candidate, error)
}

// Searcher combines crypto and stock search. Provider failures are logged and read as no results.
type Searcher struct {
	crypto CryptoSearcher
	stock  StockSearcher
}

func NewSearcher(crypto CryptoSearcher, stock StockSearcher) *Searcher {
	return &Searcher{crypto: crypto, stock: stock}
}

func (s *Searcher) Crypto(ctx context.Context, query string) []Candidate {
	if s.crypto == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	found, err := s.crypto.SearchCrypto(ctx, query)
	if err != nil {
		log.Warnf("⚠️ Crypto search failed: %v", err)
		return nil
	}
	return truncate(found, searchLimit)
}

func (s *Searcher) Stock(ctx context.Context, query string) []Candidate {
	if s.stock == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	found, err := s.stock.SearchStock(ctx, query)
	if err != nil {
		log.Warnf("⚠️ Stock search failed: %v", err)
		return nil
	}
	return found
}

// Suggest lists up to five crypto and five stock candidates, crypto first, without duplicate symbols.
func (s *Searcher) Suggest(ctx context.Context, query string) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, group := range [][]Candidate{
		s.Crypto(ctx, query),
		truncate(s.Stock(ctx, query), searchLimit),
	} {
		for _, c := range group {
			if seen[c.Symbol] {
				continue
			}
			seen[c.Symbol] = true
			out = append(out, c)
		}
	}
	return truncate(out, 2*searchLimit)
}

// Pick chooses the symbol to store for a user's query: the first crypto id, else the first stock
// ticker upper-cased. found is false when neither provider knows the query.
func (s *Searcher) Pick(ctx context.Context, query string) (symbol string, found bool) {
	if crypto := s.Crypto(ctx, query); len(crypto) > 0 {
		return crypto[0].Symbol, true
	}
	if stock := s.Stock(ctx, query); len(stock) > 0 {
		return strings.ToUpper(stock[0].Symbol), true
	}
	return query, false
}

func truncate(c []Candidate, n int) []Candidate {
	if len(c) > n {
		return c[:n]
	}
	return c
}
