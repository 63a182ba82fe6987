package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"wicksy-telegram-bot/internal/types"
)

// YahooSource prices and searches equities through the public Yahoo Finance endpoints.
type YahooSource struct {
	baseURL string
	client  *http.Client
}

func NewYahooSource(baseURL string) *YahooSource {
	return &YahooSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
	} `json:"quotes"`
}

// Quote prices a ticker from its last daily close and the change against the previous close.
func (s *YahooSource) Quote(ctx context.Context, symbol string) (Quote, error) {
	ticker := strings.ToUpper(strings.TrimSpace(symbol))
	if ticker == "" {
		return Quote{}, ErrNotFound
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", s.baseURL, url.PathEscape(ticker))
	var body yahooChartResponse
	status, err := s.getJSON(ctx, endpoint, &body)
	if status == http.StatusNotFound {
		return Quote{}, ErrNotFound
	}
	if err != nil {
		return Quote{}, errors.Wrapf(err, "yahoo chart %s", ticker)
	}
	if body.Chart.Error != nil || len(body.Chart.Result) == 0 {
		return Quote{}, ErrNotFound
	}

	result := body.Chart.Result[0]
	var closes []float64
	if len(result.Indicators.Quote) > 0 {
		for _, c := range result.Indicators.Quote[0].Close {
			if c != nil {
				closes = append(closes, *c)
			}
		}
	}
	if len(closes) == 0 {
		if result.Meta.RegularMarketPrice <= 0 {
			return Quote{}, ErrNotFound
		}
		closes = []float64{result.Meta.RegularMarketPrice}
	}

	last := decimal.NewFromFloat(closes[len(closes)-1])
	prev := last
	if len(closes) > 1 {
		prev = decimal.NewFromFloat(closes[len(closes)-2])
	}
	change := decimal.Zero
	if !prev.IsZero() {
		change = last.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
	}

	return Quote{
		Price:  decimal.NewNullDecimal(last),
		Change: decimal.NewNullDecimal(change),
		Source: SourceStock,
	}, nil
}

// SearchStock returns matching tickers with their short names.
func (s *YahooSource) SearchStock(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v1/finance/search?q=%s", s.baseURL, url.QueryEscape(query))
	var body yahooSearchResponse
	if _, err := s.getJSON(ctx, endpoint, &body); err != nil {
		return nil, errors.Wrapf(err, "yahoo search %q", query)
	}

	var candidates []Candidate
	for _, q := range body.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.ShortName
		if name == "" {
			name = q.Symbol
		}
		candidates = append(candidates, Candidate{Symbol: q.Symbol, Ticker: q.Symbol, Name: name, Type: types.AssetStock})
	}
	return candidates, nil
}

func (s *YahooSource) getJSON(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, errors.Wrap(err, "decode response")
	}
	return resp.StatusCode, nil
}
