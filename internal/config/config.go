package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	DB            DBConfig            `mapstructure:"db"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cron          CronConfig          `mapstructure:"cron"`
	MarketData    MarketDataConfig    `mapstructure:"market_data"`
	Consolidation ConsolidationConfig `mapstructure:"consolidation"`
	Tax           TaxConfig           `mapstructure:"tax"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type CronConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ConsolidateAll string `mapstructure:"consolidate_all"`
}

type MarketDataConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Token        string        `mapstructure:"token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FXPair       string        `mapstructure:"fx_pair"`
	LookbackDays int           `mapstructure:"lookback_days"`
}

type ConsolidationConfig struct {
	// MaxParallelAssets bounds how many per-asset pipelines run at once
	// within one portfolio consolidation.
	MaxParallelAssets int `mapstructure:"max_parallel_assets"`
	// RecentWindowDays selects which assets an incremental portfolio run
	// revisits: those with position rows within the window of the newest
	// persisted date.
	RecentWindowDays int `mapstructure:"recent_window_days"`
}

type TaxConfig struct {
	// Per-class overrides for the built-in rules, keyed by asset class
	// name (stock, etf, bdr, fii, crypto).
	Rates      map[string]float64 `mapstructure:"rates"`
	Exemptions map[string]float64 `mapstructure:"exemptions"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.consolidate_all", "0 0 3 * * *")
	v.SetDefault("market_data.base_url", "https://brapi.dev/api")
	v.SetDefault("market_data.timeout", "15s")
	v.SetDefault("market_data.fx_pair", "USD-BRL")
	v.SetDefault("market_data.lookback_days", 10)
	v.SetDefault("consolidation.max_parallel_assets", 8)
	v.SetDefault("consolidation.recent_window_days", 10)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
