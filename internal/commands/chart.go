package commands

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"wicksy-telegram-bot/lib/helpers"
	"wicksy-telegram-bot/lib/translation"
)

const (
	chartRange    = 7 * 24 * time.Hour
	chartCacheTTL = 5 * time.Minute
)

// ErrCoinNotFound is returned by CommandChart when the query matches no coin.
var ErrCoinNotFound = errors.New("coin not found")

var (
	chartBackground = drawing.Color{R: 55, G: 55, B: 55, A: 255}
	chartText       = drawing.Color{R: 200, G: 200, B: 200, A: 255}
	chartLine       = drawing.Color{R: 0, G: 122, B: 255, A: 255}
	chartFill       = drawing.Color{R: 0, G: 122, B: 255, A: 25}
)

// CommandChart renders the 7 day USD price chart of a coin as PNG.
func (h *Handler) CommandChart(ctx context.Context, req Request) ([]byte, string, error) {
	log.Debugf("processing command /chart with argument :%s", req.Args)

	query := strings.TrimSpace(req.Args)
	if query == "" {
		return nil, helpers.EscapeMarkdownV2(translation.Translate("Usage: /chart <coin>")), nil
	}

	coins := h.searcher.Crypto(ctx, query)
	if len(coins) == 0 {
		return nil, "", errors.Wrapf(ErrCoinNotFound, "command /chart %q", query)
	}
	coin := coins[0]

	if cachedItem, found := h.charts.get(coin.Symbol); found {
		log.Debugf("returning cached chart for %s", coin.Symbol)
		return cachedItem.ChartData, cachedItem.Caption, nil
	}

	times, prices, err := h.history.History(ctx, coin.Symbol, time.Now().Add(-chartRange))
	if err != nil {
		return nil, "", errors.Wrap(err, "command /chart")
	}
	if len(prices) < 2 {
		return nil, translation.Translate("*%s* is not actively traded and has no recent price history\\.",
			helpers.EscapeMarkdownV2(coin.Name)), nil
	}

	title := fmt.Sprintf("%s 7 days price chart", coin.Name)
	if coin.Ticker != "" {
		title = fmt.Sprintf("%s 7 days price chart (%s)", coin.Name, coin.Ticker)
	}
	chartData, err := renderChart(title, times, prices)
	if err != nil {
		return nil, "", errors.Wrap(err, "command /chart")
	}

	last := decimal.NewFromFloat(prices[len(prices)-1])
	caption := fmt.Sprintf("*%s* `%s` %s",
		helpers.EscapeMarkdownV2(coin.Name), helpers.EscapeMarkdownV2Code(coin.Symbol), helpers.FormatUSD(last, true))

	h.charts.set(coin.Symbol, chartData, caption, chartCacheTTL)
	return chartData, caption, nil
}

func renderChart(title string, times []time.Time, prices []float64) ([]byte, error) {
	if len(times) != len(prices) {
		return nil, errors.New("mismatch between number of timestamps and data points")
	}

	minPrice, maxPrice := getMinMax(prices)
	padding := (maxPrice - minPrice) * 0.1
	if padding == 0 {
		padding = maxPrice * 0.01
	}

	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: chartText},
		Width:      1200,
		Height:     600,
		Background: chart.Style{
			FillColor: chartBackground,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{FillColor: chartBackground},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02-Jan"),
			Style:          chart.Style{FontColor: chartText, StrokeColor: chartText},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: minPrice - padding, Max: maxPrice + padding},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return helpers.FormatPriceUS(decimal.NewFromFloat(f), false)
				}
				return ""
			},
			Style: chart.Style{FontColor: chartText, StrokeColor: chartText},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    title,
				XValues: times,
				YValues: prices,
				Style: chart.Style{
					StrokeColor: chartLine,
					StrokeWidth: 2,
					FillColor:   chartFill,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getMinMax(prices []float64) (min, max float64) {
	if len(prices) == 0 {
		return 0, 1
	}

	min, max = prices[0], prices[0]
	for _, price := range prices {
		if price < min {
			min = price
		}
		if price > max {
			max = price
		}
	}
	return min, max
}
