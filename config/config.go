package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var once sync.Once

// Settings is the typed view of the process configuration handed to the components at startup.
type Settings struct {
	TelegramBotToken   string
	Debug              bool
	Lang               string
	DBPath             string
	HTTPPort           int
	APIProKey          string
	AlertInterval      time.Duration
	WatchlistInterval  time.Duration
	PriceCacheTTL      time.Duration
	ResolveConcurrency int
	YahooBaseURL       string
	RedisAddr          string
	NATSURL            string
	NATSSubject        string
}

func InitConfig() {
	once.Do(func() {
		// a missing .env is fine, the environment may already be populated
		_ = godotenv.Load()

		viper.AutomaticEnv()

		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("http_port", "HTTP_PORT", "METRICS_PORT")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("alert_interval", "ALERT_INTERVAL")
		viper.BindEnv("watchlist_interval", "WATCHLIST_INTERVAL")
		viper.BindEnv("price_cache_ttl", "PRICE_CACHE_TTL")
		viper.BindEnv("resolve_concurrency", "RESOLVE_CONCURRENCY")
		viper.BindEnv("yahoo_base_url", "YAHOO_BASE_URL")
		viper.BindEnv("redis_addr", "REDIS_ADDR")
		viper.BindEnv("nats_url", "NATS_URL")
		viper.BindEnv("nats_subject", "NATS_SUBJECT")

		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("db_path", "data/wicksy.db")
		viper.SetDefault("http_port", 9090)
		viper.SetDefault("alert_interval", time.Minute)
		viper.SetDefault("watchlist_interval", time.Minute)
		viper.SetDefault("price_cache_ttl", 55*time.Second)
		viper.SetDefault("resolve_concurrency", 10)
		viper.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
		viper.SetDefault("nats_subject", "wicksy.alerts.triggered")
	})
}

// Load returns the current configuration as a Settings value.
func Load() Settings {
	InitConfig()
	return Settings{
		TelegramBotToken:   viper.GetString("telegram_bot_token"),
		Debug:              viper.GetBool("debug"),
		Lang:               viper.GetString("lang"),
		DBPath:             viper.GetString("db_path"),
		HTTPPort:           viper.GetInt("http_port"),
		APIProKey:          viper.GetString("api_pro_key"),
		AlertInterval:      viper.GetDuration("alert_interval"),
		WatchlistInterval:  viper.GetDuration("watchlist_interval"),
		PriceCacheTTL:      viper.GetDuration("price_cache_ttl"),
		ResolveConcurrency: viper.GetInt("resolve_concurrency"),
		YahooBaseURL:       viper.GetString("yahoo_base_url"),
		RedisAddr:          viper.GetString("redis_addr"),
		NATSURL:            viper.GetString("nats_url"),
		NATSSubject:        viper.GetString("nats_subject"),
	}
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}
