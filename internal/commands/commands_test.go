package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wicksy-telegram-bot/internal/alert"
	"wicksy-telegram-bot/internal/database"
	"wicksy-telegram-bot/internal/price"
	"wicksy-telegram-bot/internal/types"
	"wicksy-telegram-bot/internal/watchlist"
)

type stubSearch struct {
	crypto map[string][]price.Candidate
	stock  map[string][]price.Candidate
}

func (s stubSearch) SearchCrypto(_ context.Context, q string) ([]price.Candidate, error) {
	return s.crypto[q], nil
}

func (s stubSearch) SearchStock(_ context.Context, q string) ([]price.Candidate, error) {
	return s.stock[q], nil
}

type staticPrices map[string]price.Quote

func (p staticPrices) Get(_ context.Context, symbol string) price.Quote { return p[symbol] }

type fakeWatchlist struct {
	posted  bool
	runErr  error
	runs    int
	channel int64
	forgets int
}

func (w *fakeWatchlist) Run(context.Context) (bool, error) {
	w.runs++
	return w.posted, w.runErr
}

func (w *fakeWatchlist) SetChannel(_ context.Context, chatID int64) error {
	w.channel = chatID
	return nil
}

func (w *fakeWatchlist) Forget(context.Context) error {
	w.forgets++
	return nil
}

type fakeHistory struct {
	calls int
}

func (f *fakeHistory) History(_ context.Context, _ string, since time.Time) ([]time.Time, []float64, error) {
	f.calls++
	var times []time.Time
	var prices []float64
	for i := 0; i < 48; i++ {
		times = append(times, since.Add(time.Duration(i)*time.Hour))
		prices = append(prices, 60000+float64(i%7)*150)
	}
	return times, prices, nil
}

var (
	bitcoin = price.Candidate{Symbol: "btc-bitcoin", Ticker: "BTC", Name: "Bitcoin", Type: types.AssetCrypto}
	apple   = price.Candidate{Symbol: "AAPL", Ticker: "AAPL", Name: "Apple Inc.", Type: types.AssetStock}
)

type fixture struct {
	handler   *Handler
	db        *database.DB
	dest      *alert.Destination
	watchlist *fakeWatchlist
	history   *fakeHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "commands.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	search := stubSearch{
		crypto: map[string][]price.Candidate{"BTC": {bitcoin}, "btc": {bitcoin}, "bitcoin": {bitcoin}},
		stock:  map[string][]price.Candidate{"AAPL": {apple}, "aapl": {apple}, "apple": {apple}},
	}
	prices := staticPrices{"btc-bitcoin": price.NewQuote(64000, 1.5, price.SourceCrypto)}

	f := &fixture{
		db:        db,
		dest:      alert.NewDestination(db),
		watchlist: &fakeWatchlist{},
		history:   &fakeHistory{},
	}
	f.handler = NewHandler(db, price.NewSearcher(search, search), prices, f.dest, f.watchlist, f.history)
	return f
}

func TestParseAlertArgs(t *testing.T) {
	symbol, target, direction, err := parseAlertArgs("Apple Inc. (AAPL) $1,250.5 below")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc. (AAPL)", symbol)
	assert.True(t, target.Equal(decimal.RequireFromString("1250.5")))
	assert.Equal(t, types.DirectionBelow, direction)

	for _, args := range []string{"", "btc 100", "btc abc above", "btc 100 sideways", "btc -5 above", "btc 0 below"} {
		_, _, _, err := parseAlertArgs(args)
		assert.Error(t, err, args)
	}
}

func TestAlertAddStoresResolvedSymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "add btc 50000 above"})
	require.NoError(t, err)
	assert.Contains(t, reply, "`#1`")
	assert.Contains(t, reply, `btc\-bitcoin`)
	assert.Contains(t, reply, `$50,000\.00`)

	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "add Apple Inc. (aapl) 150 <"})
	require.NoError(t, err)
	assert.NotContains(t, reply, "not found")

	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "add zzz 1 above"})
	require.NoError(t, err)
	assert.Contains(t, reply, "not found by any provider")

	alerts, err := f.db.GetAlertsByOwner(ctx, 7)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "ZZZ", alerts[0].Symbol)
	assert.Equal(t, "AAPL", alerts[1].Symbol)
	assert.Equal(t, types.DirectionBelow, alerts[1].Direction)
	assert.Equal(t, "btc-bitcoin", alerts[2].Symbol)
}

func TestAlertAddRejectsBadArguments(t *testing.T) {
	f := newFixture(t)

	reply, err := f.handler.CommandAlert(context.Background(), Request{UserID: 7, Args: "add btc lots above"})
	require.NoError(t, err)
	assert.Equal(t, "alert\\_command\\_usage", reply)
}

func TestAlertListPauseResumeRemoveClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "add btc 50000 above"})
	require.NoError(t, err)
	_, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "add btc 40000 below"})
	require.NoError(t, err)
	_, err = f.handler.CommandAlert(ctx, Request{UserID: 8, Args: "add btc 1 below"})
	require.NoError(t, err)

	reply, err := f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "list"})
	require.NoError(t, err)
	assert.Contains(t, reply, "🔔 `#1`")
	assert.Contains(t, reply, "🔔 `#2`")
	assert.NotContains(t, reply, "`#3`")
	assert.Regexp(t, `now|ago`, reply)

	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "pause #1"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Paused alert")
	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "list"})
	require.NoError(t, err)
	assert.Contains(t, reply, "⏸ `#1`")

	active, err := f.db.ListActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "resume 1"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Resumed alert")

	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "remove 3"})
	require.NoError(t, err)
	assert.Contains(t, reply, "No alert")

	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "remove 2"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Removed alert")

	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "clear"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Cleared 1 alerts")

	reply, err = f.handler.CommandAlert(ctx, Request{UserID: 7, Args: "list"})
	require.NoError(t, err)
	assert.Equal(t, `You have no alerts\.`, reply)

	others, err := f.db.GetAlertsByOwner(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestAlertSetChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.handler.CommandAlert(ctx, Request{ChatID: 7, UserID: 7, Args: "setchannel"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Run this command in the group")
	_, ok := f.dest.Channel()
	assert.False(t, ok)

	_, err = f.handler.CommandAlert(ctx, Request{ChatID: -100, UserID: 7, IsGroup: true, Args: "setchannel"})
	require.NoError(t, err)
	chatID, ok := f.dest.Channel()
	assert.True(t, ok)
	assert.Equal(t, int64(-100), chatID)
}

func TestAlertTest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.handler.CommandAlert(ctx, Request{Args: "test btc-bitcoin"})
	require.NoError(t, err)
	assert.Contains(t, reply, `$64,000\.00`)
	assert.Contains(t, reply, `🔺1\.50%`)
	assert.Contains(t, reply, "crypto")

	reply, err = f.handler.CommandAlert(ctx, Request{Args: "test zzz"})
	require.NoError(t, err)
	assert.Contains(t, reply, "No price found")

	alerts, err := f.db.ListAllAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestWatchlistAddClassifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.handler.CommandWatchlist(ctx, Request{Args: "add BTC"})
	require.NoError(t, err)
	assert.Contains(t, reply, "`btc-bitcoin` as crypto")

	reply, err = f.handler.CommandWatchlist(ctx, Request{Args: "add aapl"})
	require.NoError(t, err)
	assert.Contains(t, reply, "`AAPL` as stock")

	reply, err = f.handler.CommandWatchlist(ctx, Request{Args: "add AAPL"})
	require.NoError(t, err)
	assert.Contains(t, reply, "already on the watchlist")

	items, err := f.db.ListWatchlist(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.WatchItem{
		{ID: 1, Symbol: "btc-bitcoin", Type: types.AssetCrypto},
		{ID: 2, Symbol: "AAPL", Type: types.AssetStock},
	}, items)
}

func TestWatchlistRemoveListClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.handler.CommandWatchlist(ctx, Request{Args: "list"})
	require.NoError(t, err)
	assert.Equal(t, `Empty watchlist\.`, reply)
	assert.Zero(t, f.watchlist.runs)

	_, err = f.handler.CommandWatchlist(ctx, Request{Args: "add aapl"})
	require.NoError(t, err)

	reply, err = f.handler.CommandWatchlist(ctx, Request{Args: "list"})
	require.NoError(t, err)
	assert.Contains(t, reply, "setchannel first")

	f.watchlist.posted = true
	reply, err = f.handler.CommandWatchlist(ctx, Request{Args: "list"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Watchlist updated")

	reply, err = f.handler.CommandWatchlist(ctx, Request{Args: "remove aapl"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Removed `AAPL`")

	reply, err = f.handler.CommandWatchlist(ctx, Request{Args: "remove aapl"})
	require.NoError(t, err)
	assert.Contains(t, reply, "not on the watchlist")

	_, err = f.handler.CommandWatchlist(ctx, Request{Args: "clear"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.watchlist.forgets)
}

func TestWatchlistListWhileRefreshing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.handler.CommandWatchlist(ctx, Request{Args: "add aapl"})
	require.NoError(t, err)

	f.watchlist.runErr = watchlist.ErrUpdateInProgress
	reply, err := f.handler.CommandWatchlist(ctx, Request{Args: "list"})
	require.NoError(t, err)
	assert.Contains(t, reply, "being refreshed")

	f.watchlist.runErr = errors.New("telegram down")
	_, err = f.handler.CommandWatchlist(ctx, Request{Args: "list"})
	assert.Error(t, err)
}

func TestWatchlistEscapesCodeSpans(t *testing.T) {
	f := newFixture(t)

	reply, err := f.handler.CommandWatchlist(context.Background(), Request{Args: "add we`ird"})
	require.NoError(t, err)
	assert.Contains(t, reply, "`WE\\`IRD`")
}

func TestWatchlistSetChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.handler.CommandWatchlist(ctx, Request{ChatID: 5, Args: "setchannel"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Run this command in the group")

	_, err = f.handler.CommandWatchlist(ctx, Request{ChatID: -200, IsGroup: true, Args: "setchannel"})
	require.NoError(t, err)
	assert.Equal(t, int64(-200), f.watchlist.channel)
}

func TestParseTradeArgs(t *testing.T) {
	trade, err := parseTradeArgs("eth $3,200 3000 3800.5 retest of range high")
	require.NoError(t, err)
	assert.Equal(t, "ETH", trade.symbol)
	assert.True(t, trade.entry.Equal(decimal.NewFromInt(3200)))
	assert.True(t, trade.stopLoss.Equal(decimal.NewFromInt(3000)))
	assert.True(t, trade.takeProfit.Equal(decimal.RequireFromString("3800.5")))
	assert.Equal(t, "retest of range high", trade.notes)

	trade, err = parseTradeArgs("sol 150 140 180")
	require.NoError(t, err)
	assert.Empty(t, trade.notes)

	for _, args := range []string{"", "btc 100 90", "btc abc 90 110", "btc 100 -90 110", "btc 100 90 0"} {
		_, err := parseTradeArgs(args)
		assert.Error(t, err, args)
	}
}

func TestTradeAddAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.handler.CommandTrade(ctx, Request{UserID: 7, Args: "list"})
	require.NoError(t, err)
	assert.Contains(t, reply, "no trades")

	reply, err = f.handler.CommandTrade(ctx, Request{UserID: 7, Args: "add eth 3200 3000 3800.5 retest of range high"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Trade idea: ETH")
	assert.Contains(t, reply, `$3,200\.00`)
	assert.Contains(t, reply, `$3,000\.00`)
	assert.Contains(t, reply, `$3,800\.50`)
	assert.Contains(t, reply, "retest of range high")

	_, err = f.handler.CommandTrade(ctx, Request{UserID: 7, Args: "add btc 60000 57000 66000"})
	require.NoError(t, err)
	_, err = f.handler.CommandTrade(ctx, Request{UserID: 8, Args: "add sol 150 140 180"})
	require.NoError(t, err)

	trades, err := f.db.ListTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "ETH", trades[0].Symbol)
	assert.Equal(t, "retest of range high", trades[0].Notes)
	assert.Equal(t, int64(8), trades[2].Owner)

	reply, err = f.handler.CommandTrade(ctx, Request{UserID: 7, Args: "list"})
	require.NoError(t, err)
	assert.Contains(t, reply, "*BTC*")
	assert.Contains(t, reply, "*ETH*")
	assert.NotContains(t, reply, "SOL")
	assert.Less(t, strings.Index(reply, "BTC"), strings.Index(reply, "ETH"), "newest first")
}

func TestTradeRejectsBadArguments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, args := range []string{"add btc 100", "add btc lots 90 110", "close 1"} {
		reply, err := f.handler.CommandTrade(ctx, Request{UserID: 7, Args: args})
		require.NoError(t, err)
		assert.Equal(t, "trade\\_command\\_usage", reply, args)
	}

	trades, err := f.db.ListTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)

	reply, err := f.handler.CommandSearch(context.Background(), Request{Args: "bitcoin"})
	require.NoError(t, err)
	assert.Contains(t, reply, "• `btc-bitcoin` Bitcoin \\(BTC\\) \\(crypto\\)")

	reply, err = f.handler.CommandSearch(context.Background(), Request{Args: "apple"})
	require.NoError(t, err)
	assert.Contains(t, reply, "• `AAPL` Apple Inc\\. \\(stock\\)")

	reply, err = f.handler.CommandSearch(context.Background(), Request{Args: "nothing"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Nothing found")
}

func TestChartRendersAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	png, caption, err := f.handler.CommandChart(ctx, Request{Args: "btc"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	assert.Contains(t, caption, "*Bitcoin*")

	_, _, err = f.handler.CommandChart(ctx, Request{Args: "bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.history.calls)

	_, _, err = f.handler.CommandChart(ctx, Request{Args: "zzz"})
	assert.True(t, errors.Is(err, ErrCoinNotFound))
}

func TestChartCacheExpires(t *testing.T) {
	c := newChartCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.set("BTC-Bitcoin", []byte{1}, "caption", time.Minute)
	item, ok := c.get("btc-bitcoin")
	require.True(t, ok)
	assert.Equal(t, "caption", item.Caption)

	now = now.Add(time.Minute)
	_, ok = c.get("btc-bitcoin")
	assert.False(t, ok)
}
