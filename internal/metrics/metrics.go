package metrics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"

	"wicksy-telegram-bot/internal/price"
)

const (
	namespace = "wicksy"
	subsystem = "telegram_bot"
)

// Delivery outcomes per notifier tier.
const (
	OutcomeDelivered   = "delivered"
	OutcomeFailed      = "failed"
	OutcomeUnavailable = "unavailable"
)

// Store persists metric values between restarts, usually the sqlite database.
type Store interface {
	GetMetric(ctx context.Context, metricName string) (float64, error)
	SaveMetric(ctx context.Context, metricName string, value float64) error
	GetMetricsWithLabels(ctx context.Context, metricName string) (map[string]map[string]float64, error)
	SaveMetricWithLabels(ctx context.Context, metricName, labelKey, labelValue string, value float64) error
}

type BotMetrics struct {
	CommandsProcessed  prometheus.Counter
	MessagesHandled    prometheus.Counter
	ChannelsCount      prometheus.Gauge
	ChannelNames       *prometheus.CounterVec
	MessagesPerChannel *prometheus.CounterVec

	AlertPasses        prometheus.Counter
	AlertPassesSkipped prometheus.Counter
	AlertsFired        prometheus.Counter
	AlertDeliveries    *prometheus.CounterVec
	ResolutionMisses   *prometheus.CounterVec
	WatchlistRenders   prometheus.Counter

	mu       sync.Mutex
	channels map[int64]string
	order    []int64
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// New creates the bot metrics and registers them with reg.
func New(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		CommandsProcessed: counter("commands_processed", "The total number of processed commands"),
		MessagesHandled:   counter("messages_handled", "The total number of handled messages"),
		ChannelsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channels_count",
			Help:      "The current number of unique channels the bot is operating in",
		}),
		ChannelNames:       counterVec("channel_names", "Tracks channels the bot has interacted with", "chat_id", "chat_name"),
		MessagesPerChannel: counterVec("messages_per_channel", "The total number of messages handled per channel", "chat_id", "chat_name"),

		AlertPasses:        counter("alert_passes", "The total number of completed alert evaluation passes"),
		AlertPassesSkipped: counter("alert_passes_skipped", "Alert passes skipped because one was still running"),
		AlertsFired:        counter("alerts_fired", "The total number of triggered alerts"),
		AlertDeliveries:    counterVec("alert_deliveries", "Alert delivery attempts by notifier tier and outcome", "tier", "outcome"),
		ResolutionMisses:   counterVec("price_resolution_misses", "Symbols no provider could price, by reason", "reason"),
		WatchlistRenders:   counter("watchlist_renders", "The total number of watchlist table updates"),

		channels: make(map[int64]string),
	}

	reg.MustRegister(
		m.CommandsProcessed,
		m.MessagesHandled,
		m.ChannelsCount,
		m.ChannelNames,
		m.MessagesPerChannel,
		m.AlertPasses,
		m.AlertPassesSkipped,
		m.AlertsFired,
		m.AlertDeliveries,
		m.ResolutionMisses,
		m.WatchlistRenders,
	)
	return m
}

// ObserveMessage counts an incoming command message and remembers its chat.
func (m *BotMetrics) ObserveMessage(chatID int64, chatName string) {
	if chatName == "" {
		chatName = fmt.Sprintf("%s-%d", "PrivateChat", chatID)
	}
	m.MessagesHandled.Inc()
	m.trackChannel(chatID, chatName)
	m.MessagesPerChannel.WithLabelValues(strconv.FormatInt(chatID, 10), chatName).Inc()
}

func (m *BotMetrics) trackChannel(chatID int64, chatName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[chatID]; exists {
		return
	}
	m.channels[chatID] = chatName
	m.order = append(m.order, chatID)
	m.ChannelsCount.Set(float64(len(m.channels)))
	m.ChannelNames.WithLabelValues(strconv.FormatInt(chatID, 10), chatName).Inc()
}

// GroupChats lists known group chats in the order they were first seen. Telegram group ids are negative.
func (m *BotMetrics) GroupChats() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var groups []int64
	for _, id := range m.order {
		if id < 0 {
			groups = append(groups, id)
		}
	}
	return groups
}

func (m *BotMetrics) RecordMiss(reason price.MissReason) {
	m.ResolutionMisses.WithLabelValues(string(reason)).Inc()
}

func (m *BotMetrics) RecordDelivery(tier, outcome string) {
	m.AlertDeliveries.WithLabelValues(tier, outcome).Inc()
}

var plainCounters = []string{
	"commands_processed",
	"messages_handled",
	"alert_passes",
	"alert_passes_skipped",
	"alerts_fired",
	"watchlist_renders",
}

func (m *BotMetrics) plain() map[string]prometheus.Counter {
	return map[string]prometheus.Counter{
		"commands_processed":   m.CommandsProcessed,
		"messages_handled":     m.MessagesHandled,
		"alert_passes":         m.AlertPasses,
		"alert_passes_skipped": m.AlertPassesSkipped,
		"alerts_fired":         m.AlertsFired,
		"watchlist_renders":    m.WatchlistRenders,
	}
}

// Load restores counters and known channels saved by a previous run.
func (m *BotMetrics) Load(ctx context.Context, store Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := m.plain()
	for _, name := range plainCounters {
		v, err := store.GetMetric(ctx, name)
		if err != nil {
			return err
		}
		counters[name].Add(v)
	}

	type seen struct {
		chatID int64
		seq    float64
	}
	var loaded []seen
	err := loadLabeled(ctx, store, "channel_names", func(chatIDStr, chatName string, seq float64) {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Warnf("Failed to parse chatID %s: %v", chatIDStr, err)
			return
		}
		if _, exists := m.channels[chatID]; exists {
			return
		}
		m.ChannelNames.WithLabelValues(chatIDStr, chatName).Add(1)
		m.channels[chatID] = chatName
		loaded = append(loaded, seen{chatID: chatID, seq: seq})
	})
	if err != nil {
		return err
	}
	// channel_names holds the first-seen position of each chat
	sort.Slice(loaded, func(i, j int) bool {
		if loaded[i].seq != loaded[j].seq {
			return loaded[i].seq < loaded[j].seq
		}
		return loaded[i].chatID < loaded[j].chatID
	})
	for _, c := range loaded {
		m.order = append(m.order, c.chatID)
	}
	m.ChannelsCount.Set(float64(len(m.channels)))

	if err := loadLabeled(ctx, store, "messages_per_channel", func(chatID, chatName string, value float64) {
		m.MessagesPerChannel.WithLabelValues(chatID, chatName).Add(value)
	}); err != nil {
		return err
	}
	if err := loadLabeled(ctx, store, "alert_deliveries", func(tier, outcome string, value float64) {
		m.AlertDeliveries.WithLabelValues(tier, outcome).Add(value)
	}); err != nil {
		return err
	}
	if err := loadLabeled(ctx, store, "price_resolution_misses", func(reason, _ string, value float64) {
		m.ResolutionMisses.WithLabelValues(reason).Add(value)
	}); err != nil {
		return err
	}

	log.Debug("Metrics loaded from database.")
	return nil
}

func loadLabeled(ctx context.Context, store Store, metricName string, callback func(labelKey, labelValue string, value float64)) error {
	metricsWithLabels, err := store.GetMetricsWithLabels(ctx, metricName)
	if err != nil {
		return err
	}
	for labelKey, labelValues := range metricsWithLabels {
		for labelValue, value := range labelValues {
			callback(labelKey, labelValue, value)
		}
	}
	return nil
}

// Save writes the current counter values to store.
func (m *BotMetrics) Save(ctx context.Context, store Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := m.plain()
	for _, name := range plainCounters {
		if err := store.SaveMetric(ctx, name, metricValue(counters[name])); err != nil {
			return err
		}
	}
	if err := store.SaveMetric(ctx, "channels_count", float64(len(m.channels))); err != nil {
		return err
	}

	for i, chatID := range m.order {
		if err := store.SaveMetricWithLabels(ctx, "channel_names", strconv.FormatInt(chatID, 10), m.channels[chatID], float64(i+1)); err != nil {
			return err
		}
	}

	for _, vec := range []struct {
		name   string
		vec    *prometheus.CounterVec
		labels [2]string
	}{
		{"messages_per_channel", m.MessagesPerChannel, [2]string{"chat_id", "chat_name"}},
		{"alert_deliveries", m.AlertDeliveries, [2]string{"tier", "outcome"}},
		{"price_resolution_misses", m.ResolutionMisses, [2]string{"reason", ""}},
	} {
		var saveErr error
		collectVec(vec.vec, func(labels map[string]string, value float64) {
			if saveErr != nil {
				return
			}
			saveErr = store.SaveMetricWithLabels(ctx, vec.name, labels[vec.labels[0]], labels[vec.labels[1]], value)
		})
		if saveErr != nil {
			return saveErr
		}
	}

	log.Debug("Metrics saved to database.")
	return nil
}

func collectVec(vec *prometheus.CounterVec, fn func(labels map[string]string, value float64)) {
	metricChan := make(chan prometheus.Metric)
	go func() {
		vec.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Warnf("Failed to read metric: %v", err)
			continue
		}
		labels := make(map[string]string, len(metricProto.Label))
		for _, label := range metricProto.Label {
			labels[label.GetName()] = label.GetValue()
		}
		fn(labels, metricProto.Counter.GetValue())
	}
}

func metricValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Warnf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}
