package alert

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/events"
	"wicksy-telegram-bot/internal/metrics"
	"wicksy-telegram-bot/internal/price"
	"wicksy-telegram-bot/internal/types"
)

const defaultConcurrency = 10

// ErrPassInProgress is returned by Run when the previous pass has not finished. The call is skipped, not queued.
var ErrPassInProgress = errors.New("alert pass already in progress")

type Store interface {
	ListActiveAlerts(ctx context.Context) ([]types.Alert, error)
	DeleteAlerts(ctx context.Context, ids []int64) error
}

// PriceSource prices a symbol without failing, usually a *price.Cache.
type PriceSource interface {
	Get(ctx context.Context, symbol string) price.Quote
}

type Deliverer interface {
	Deliver(ctx context.Context, n Notification) bool
}

// Result summarizes one evaluation pass.
type Result struct {
	Checked    int
	Symbols    int
	Unresolved int
	Fired      []types.Alert
}

// Evaluator compares active alerts with live prices, delivers the triggered ones and deletes them.
type Evaluator struct {
	store       Store
	prices      PriceSource
	notifier    Deliverer
	events      events.Publisher
	metrics     *metrics.BotMetrics
	concurrency int
	now         func() time.Time

	running sync.Mutex
}

type Option func(*Evaluator)

// WithConcurrency bounds how many symbols are resolved at once.
func WithConcurrency(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func WithEvents(p events.Publisher) Option {
	return func(e *Evaluator) { e.events = p }
}

func WithMetrics(m *metrics.BotMetrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

func NewEvaluator(store Store, prices PriceSource, notifier Deliverer, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:       store,
		prices:      prices,
		notifier:    notifier,
		events:      events.Nop{},
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs one evaluation pass.
func (e *Evaluator) Run(ctx context.Context) (Result, error) {
	if !e.running.TryLock() {
		if e.metrics != nil {
			e.metrics.AlertPassesSkipped.Inc()
		}
		return Result{}, ErrPassInProgress
	}
	defer e.running.Unlock()

	log.Debug("🔄 Checking alerts...")

	alerts, err := e.store.ListActiveAlerts(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "load active alerts")
	}
	if len(alerts) == 0 {
		e.passDone()
		return Result{}, nil
	}

	symbols := distinctSymbols(alerts)
	quotes := e.resolveAll(ctx, symbols)

	res := Result{Checked: len(alerts), Symbols: len(symbols)}
	for _, q := range quotes {
		if !q.Resolved() {
			res.Unresolved++
		}
	}

	for _, a := range alerts {
		if !a.Active() {
			continue
		}
		q := quotes[a.Symbol]
		if !q.Resolved() {
			continue
		}

		current := q.Price.Decimal
		log.Debugf("🔍 Checking alert ID: %d | Symbol: %s | Target: %s %s | Current: %s",
			a.ID, a.Symbol, a.Direction, a.Target, current)
		if !a.Triggered(current) {
			continue
		}

		delivered := e.notifier.Deliver(ctx, Notification{
			AlertID:   a.ID,
			Owner:     a.Owner,
			Symbol:    a.Symbol,
			Price:     current,
			Target:    a.Target,
			Direction: a.Direction,
			Change:    q.Change,
		})
		res.Fired = append(res.Fired, a)

		if err := e.events.PublishAlertFired(ctx, events.AlertFired{
			AlertID:   a.ID,
			Owner:     a.Owner,
			Symbol:    a.Symbol,
			Price:     current,
			Target:    a.Target,
			Direction: a.Direction,
			Delivered: delivered,
			FiredAt:   e.now(),
		}); err != nil {
			log.Warnf("⚠️ Failed to publish alert event for alert %d: %v", a.ID, err)
		}
	}

	if len(res.Fired) > 0 {
		ids := make([]int64, 0, len(res.Fired))
		for _, a := range res.Fired {
			ids = append(ids, a.ID)
		}
		if e.metrics != nil {
			e.metrics.AlertsFired.Add(float64(len(ids)))
		}
		if err := e.store.DeleteAlerts(ctx, ids); err != nil {
			return res, errors.Wrapf(err, "delete %d fired alerts", len(ids))
		}
	}

	e.passDone()
	log.Debugf("✅ Alert check completed: %d checked, %d symbols, %d unresolved, %d fired",
		res.Checked, res.Symbols, res.Unresolved, len(res.Fired))
	return res, nil
}

func (e *Evaluator) passDone() {
	if e.metrics != nil {
		e.metrics.AlertPasses.Inc()
	}
}

// resolveAll prices every symbol once, at most e.concurrency at a time, and waits for all of them.
func (e *Evaluator) resolveAll(ctx context.Context, symbols []string) map[string]price.Quote {
	quotes := make(map[string]price.Quote, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, e.concurrency)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			q := e.prices.Get(ctx, symbol)

			mu.Lock()
			quotes[symbol] = q
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return quotes
}

func distinctSymbols(alerts []types.Alert) []string {
	seen := make(map[string]bool, len(alerts))
	var symbols []string
	for _, a := range alerts {
		if !a.Active() || seen[a.Symbol] {
			continue
		}
		seen[a.Symbol] = true
		symbols = append(symbols, a.Symbol)
	}
	return symbols
}
