package price

import (
	"context"
	"strings"
	"time"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/types"
)

// PaprikaSource prices and searches crypto assets by CoinPaprika coin id (e.g. "btc-bitcoin").
type PaprikaSource struct {
	client *coinpaprika.Client
}

func NewPaprikaSource(apiProKey string) *PaprikaSource {
	if apiProKey != "" {
		return &PaprikaSource{client: coinpaprika.NewClient(nil, coinpaprika.WithAPIKey(apiProKey))}
	}
	return &PaprikaSource{client: coinpaprika.NewClient(nil)}
}

func (s *PaprikaSource) Quote(_ context.Context, symbol string) (Quote, error) {
	id := strings.ToLower(strings.TrimSpace(symbol))
	ticker, err := s.client.Tickers.GetByID(id, &coinpaprika.TickersOptions{Quotes: "USD"})
	if err != nil {
		if isNotFound(err) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, errors.Wrapf(err, "coinpaprika ticker %s", id)
	}

	q, ok := quoteFromTicker(ticker)
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

// quoteFromTicker reads the USD quote. A missing 24h change stays null.
func quoteFromTicker(ticker *coinpaprika.Ticker) (Quote, bool) {
	if ticker == nil {
		return Quote{}, false
	}
	usd, ok := ticker.Quotes["USD"]
	if !ok || usd.Price == nil {
		return Quote{}, false
	}

	q := Quote{
		Price:  decimal.NewNullDecimal(decimal.NewFromFloat(*usd.Price)),
		Source: SourceCrypto,
	}
	if usd.PercentChange24h != nil {
		q.Change = decimal.NewNullDecimal(decimal.NewFromFloat(*usd.PercentChange24h))
	}
	return q, true
}

// SearchCrypto returns up to five coins, trying a symbol search before a name search.
func (s *PaprikaSource) SearchCrypto(_ context.Context, query string) ([]Candidate, error) {
	result, err := s.client.Search.Search(&coinpaprika.SearchOptions{
		Query:      query,
		Categories: "currencies",
		Modifier:   "symbol_search",
	})
	if err != nil || result == nil || len(result.Currencies) == 0 {
		log.Debugf("No results for symbol search, trying name search for '%s'", query)
		result, err = s.client.Search.Search(&coinpaprika.SearchOptions{Query: query, Categories: "currencies"})
		if err != nil {
			return nil, errors.Wrapf(err, "coinpaprika search %q", query)
		}
	}
	if result == nil {
		return nil, nil
	}

	var candidates []Candidate
	for _, coin := range result.Currencies {
		if coin == nil || coin.ID == nil {
			continue
		}
		c := Candidate{Symbol: *coin.ID, Name: *coin.ID, Type: types.AssetCrypto}
		if coin.Name != nil {
			c.Name = *coin.Name
		}
		if coin.Symbol != nil {
			c.Ticker = *coin.Symbol
		}
		candidates = append(candidates, c)
		if len(candidates) == searchLimit {
			break
		}
	}
	return candidates, nil
}

// History returns hourly USD prices for the coin since the given time.
func (s *PaprikaSource) History(_ context.Context, id string, since time.Time) ([]time.Time, []float64, error) {
	tickers, err := s.client.Tickers.GetHistoricalTickersByID(strings.ToLower(id), &coinpaprika.TickersHistoricalOptions{
		Quote:    "USD",
		Limit:    200,
		Interval: "1h",
		Start:    since,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "coinpaprika history %s", id)
	}

	times := make([]time.Time, 0, len(tickers))
	prices := make([]float64, 0, len(tickers))
	for _, t := range tickers {
		if t == nil || t.Timestamp == nil || t.Price == nil {
			continue
		}
		times = append(times, *t.Timestamp)
		prices = append(prices, *t.Price)
	}
	return times, prices, nil
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
