package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/config"
	"wicksy-telegram-bot/internal/alert"
	"wicksy-telegram-bot/internal/commands"
	"wicksy-telegram-bot/internal/dashboard"
	"wicksy-telegram-bot/internal/database"
	"wicksy-telegram-bot/internal/events"
	"wicksy-telegram-bot/internal/metrics"
	"wicksy-telegram-bot/internal/price"
	"wicksy-telegram-bot/internal/scheduler"
	"wicksy-telegram-bot/internal/telegram"
	"wicksy-telegram-bot/internal/watchlist"
	"wicksy-telegram-bot/lib/translation"
)

const metricsSaveInterval = 5 * time.Minute

func main() {
	cfg := config.Load()
	setupLogging(cfg.Debug)
	translation.Configure("locales", cfg.Lang)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	botMetrics := metrics.New(prometheus.DefaultRegisterer)
	if err := botMetrics.Load(ctx, db); err != nil {
		log.Errorf("Failed to load metrics: %v", err)
	}

	paprika := price.NewPaprikaSource(cfg.APIProKey)
	yahoo := price.NewYahooSource(cfg.YahooBaseURL)
	resolver := price.NewResolver(paprika, yahoo, botMetrics)

	var cacheOpts []price.CacheOption
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		cacheOpts = append(cacheOpts, price.WithEntryStore(price.NewRedisEntries(client, cfg.PriceCacheTTL)))
		log.Infof("Price cache backed by redis at %s", cfg.RedisAddr)
	}
	prices := price.NewCache(resolver, cfg.PriceCacheTTL, cacheOpts...)

	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nats, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Errorf("NATS unavailable, alert events disabled: %v", err)
		} else {
			defer nats.Close()
			publisher = nats
		}
	}

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          cfg.TelegramBotToken,
		Debug:          cfg.Debug,
		UpdatesTimeout: 60,
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	destination := alert.NewDestination(db)
	if err := destination.Restore(ctx); err != nil {
		log.Errorf("Failed to restore alerts channel: %v", err)
	}
	notifier := alert.NewNotifier(botMetrics,
		alert.ChannelTier{Destination: destination, Sender: bot},
		alert.DirectTier{Sender: bot},
		alert.BroadcastTier{Groups: botMetrics, Sender: bot},
	)
	evaluator := alert.NewEvaluator(db, prices, notifier,
		alert.WithConcurrency(cfg.ResolveConcurrency),
		alert.WithEvents(publisher),
		alert.WithMetrics(botMetrics),
	)
	updater := watchlist.NewUpdater(db, prices, bot, botMetrics)

	handler := commands.NewHandler(db, price.NewSearcher(paprika, yahoo), prices, destination, updater, paprika)
	bot.Attach(handler, botMetrics)

	jobs := scheduler.New(
		scheduler.AlertJob(evaluator, cfg.AlertInterval),
		scheduler.WatchlistJob(updater, cfg.WatchlistInterval),
		scheduler.MetricsJob(botMetrics, db, metricsSaveInterval),
	)
	if err := jobs.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	go func() {
		server := dashboard.New(db, prometheus.DefaultGatherer, cfg.Debug)
		if err := server.ListenAndServe(ctx, cfg.HTTPPort); err != nil {
			log.Errorf("Failed to start metrics and health server: %v", err)
		}
	}()

	log.Info("🚀 Wicksy bot is running")
	if err := bot.Serve(ctx); err != nil {
		log.Errorf("Bot stopped: %v", err)
	}

	jobs.Stop()
	// ctx is already cancelled here
	if err := botMetrics.Save(context.Background(), db); err != nil {
		log.Errorf("Failed to save metrics: %v", err)
	}
	log.Info("Metrics saved, shutting down...")
}

func setupLogging(debug bool) {
	log.SetLevel(log.ErrorLevel)
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting telegram bot...")
}
