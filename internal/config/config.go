// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/arbot/internal/blob/s3"
	"github.com/alanyoungcy/arbot/internal/cache/redis"
	"github.com/alanyoungcy/arbot/internal/collector"
	"github.com/alanyoungcy/arbot/internal/notify"
	"github.com/alanyoungcy/arbot/internal/orchestrator"
	"github.com/alanyoungcy/arbot/internal/risk"
	"github.com/alanyoungcy/arbot/internal/store/postgres"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Trading  TradingConfig  `toml:"trading"`
	Limits   LimitsConfig   `toml:"limits"`
	Breaker  BreakerConfig  `toml:"breaker"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Archive  ArchiveConfig  `toml:"archive"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// TradingConfig holds detection and execution parameters.
type TradingConfig struct {
	// Provider selects the market-data source: "sim" or "binance".
	Provider string   `toml:"provider"`
	Symbols  []string `toml:"symbols"`
	Markets  []string `toml:"markets"`

	TradeAmountUSD    float64  `toml:"trade_amount_usd"`
	InitialBalanceUSD float64  `toml:"initial_balance_usd"`
	Interval          duration `toml:"interval"`
	MaxCycles         int      `toml:"max_cycles"`
	Duration          duration `toml:"duration"`
	MaxTradesPerCycle int      `toml:"max_trades_per_cycle"`

	MinNetProfitPct float64 `toml:"min_net_profit_pct"`
	BookDepth       int     `toml:"book_depth"`
	MaxConcurrent   int     `toml:"max_concurrent"`
	MaxSlippagePct  float64 `toml:"max_slippage_pct"`

	// SimSeed seeds the synthetic provider for reproducible runs.
	SimSeed int64 `toml:"sim_seed"`
	// BinanceStreamURL overrides the websocket endpoint; empty means the
	// public one.
	BinanceStreamURL string `toml:"binance_stream_url"`
	// BasePrices maps symbols to starting mid prices for the simulator.
	BasePrices map[string]float64 `toml:"base_prices"`

	QuoteTTL duration `toml:"quote_ttl"`
	BookTTL  duration `toml:"book_ttl"`
}

// LimitsConfig mirrors the risk limit set in TOML form.
type LimitsConfig struct {
	MinTradeAmount       float64 `toml:"min_trade_amount"`
	MaxTradeAmount       float64 `toml:"max_trade_amount"`
	MaxDailyTrades       int     `toml:"max_daily_trades"`
	MaxConsecutiveLosses int     `toml:"max_consecutive_losses"`
	MaxDailyLoss         float64 `toml:"max_daily_loss"`
	MaxLossPerTrade      float64 `toml:"max_loss_per_trade"`
	MaxPositionSizePct   float64 `toml:"max_position_size_pct"`
	MinProfitPct         float64 `toml:"min_profit_pct"`
	MinScore             float64 `toml:"min_score"`
	MaxSlippagePct       float64 `toml:"max_slippage_pct"`
	MinBalanceUSD        float64 `toml:"min_balance_usd"`
	ReservePct           float64 `toml:"reserve_pct"`
}

// BreakerConfig mirrors the circuit breaker thresholds in TOML form.
type BreakerConfig struct {
	MaxLossInWindow        float64  `toml:"max_loss_in_window"`
	LossWindow             duration `toml:"loss_window"`
	MaxConsecutiveErrors   int      `toml:"max_consecutive_errors"`
	MaxErrorsInWindow      int      `toml:"max_errors_in_window"`
	ErrorWindow            duration `toml:"error_window"`
	MaxMarketDowntime      duration `toml:"max_market_downtime"`
	MinBalanceThresholdPct float64  `toml:"min_balance_threshold_pct"`
	AutoReset              duration `toml:"auto_reset"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	RetentionDays int `toml:"retention_days"`
	// DeleteAfterUpload prunes archived rows from the database once the
	// upload has succeeded.
	DeleteAfterUpload bool `toml:"delete_after_upload"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	limits := risk.DefaultLimits()
	breaker := risk.DefaultBreakerConfig()

	return Config{
		Trading: TradingConfig{
			Provider:          "sim",
			Symbols:           []string{"BTC/USDT", "ETH/USDT"},
			Markets:           []string{"binance", "kraken", "coinbase"},
			TradeAmountUSD:    100.0,
			InitialBalanceUSD: 10000.0,
			Interval:          duration{5 * time.Second},
			MaxCycles:         0,
			Duration:          duration{0},
			MaxTradesPerCycle: 1,
			MinNetProfitPct:   0.5,
			BookDepth:         10,
			MaxConcurrent:     0,
			SimSeed:           0,
			BasePrices: map[string]float64{
				"BTC/USDT": 50000,
				"ETH/USDT": 3000,
			},
			QuoteTTL: duration{30 * time.Second},
			BookTTL:  duration{30 * time.Second},
		},
		Limits: LimitsConfig{
			MinTradeAmount:       limits.MinTradeAmount,
			MaxTradeAmount:       limits.MaxTradeAmount,
			MaxDailyTrades:       limits.MaxDailyTrades,
			MaxConsecutiveLosses: limits.MaxConsecutiveLosses,
			MaxDailyLoss:         limits.MaxDailyLoss,
			MaxLossPerTrade:      limits.MaxLossPerTrade,
			MaxPositionSizePct:   limits.MaxPositionSizePct,
			MinProfitPct:         limits.MinProfitPct,
			MinScore:             limits.MinScore,
			MaxSlippagePct:       limits.MaxSlippagePct,
			MinBalanceUSD:        limits.MinBalanceUSD,
			ReservePct:           limits.ReservePct,
		},
		Breaker: BreakerConfig{
			MaxLossInWindow:        breaker.MaxLossInWindow,
			LossWindow:             duration{breaker.LossWindow},
			MaxConsecutiveErrors:   breaker.MaxConsecutiveErrors,
			MaxErrorsInWindow:      breaker.MaxErrorsInWindow,
			ErrorWindow:            duration{breaker.ErrorWindow},
			MaxMarketDowntime:      duration{breaker.MaxMarketDowntime},
			MinBalanceThresholdPct: breaker.MinBalanceThresholdPct,
			AutoReset:              duration{breaker.AutoReset},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"breaker_trip", "critical", "run_summary"},
		},
		Archive: ArchiveConfig{
			RetentionDays:     90,
			DeleteAfterUpload: false,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validProviders enumerates the accepted values for Trading.Provider.
var validProviders = map[string]bool{
	"sim":     true,
	"binance": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading
	if !validProviders[c.Trading.Provider] {
		errs = append(errs, fmt.Sprintf("trading: unknown provider %q (valid: sim, binance)", c.Trading.Provider))
	}
	if c.Mode != "archive" {
		if len(c.Trading.Symbols) == 0 {
			errs = append(errs, "trading: at least one symbol is required")
		}
		if len(c.Trading.Markets) < 2 {
			errs = append(errs, "trading: at least two markets are required")
		}
		if c.Trading.TradeAmountUSD <= 0 {
			errs = append(errs, "trading: trade_amount_usd must be > 0")
		}
		if c.Trading.InitialBalanceUSD <= 0 {
			errs = append(errs, "trading: initial_balance_usd must be > 0")
		}
		if c.Trading.Interval.Duration <= 0 {
			errs = append(errs, "trading: interval must be > 0")
		}
		if c.Trading.Provider == "sim" && len(c.Trading.BasePrices) == 0 {
			errs = append(errs, "trading: base_prices are required for the sim provider")
		}
	}

	// Limits are validated by the risk package so changes stay in one place.
	if err := c.RiskLimits().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("limits: %v", err))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 is only required for archive mode.
	if c.Mode == "archive" {
		if c.S3.Endpoint == "" && c.S3.Region == "" {
			errs = append(errs, "s3: endpoint or region must be set for archive mode")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for archive mode")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Notify events must be known.
	for _, ev := range c.Notify.Events {
		switch notify.Event(ev) {
		case notify.EventBreakerTrip, notify.EventCritical, notify.EventRunSummary, notify.EventTrade:
		default:
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", ev))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Converters into the runtime configs of the individual components.
// ---------------------------------------------------------------------------

// RiskLimits maps the TOML limits onto the risk package's limit set.
func (c *Config) RiskLimits() risk.Limits {
	return risk.Limits{
		MinTradeAmount:       c.Limits.MinTradeAmount,
		MaxTradeAmount:       c.Limits.MaxTradeAmount,
		MaxDailyTrades:       c.Limits.MaxDailyTrades,
		MaxConsecutiveLosses: c.Limits.MaxConsecutiveLosses,
		MaxDailyLoss:         c.Limits.MaxDailyLoss,
		MaxLossPerTrade:      c.Limits.MaxLossPerTrade,
		MaxPositionSizePct:   c.Limits.MaxPositionSizePct,
		MinProfitPct:         c.Limits.MinProfitPct,
		MinScore:             c.Limits.MinScore,
		MaxSlippagePct:       c.Limits.MaxSlippagePct,
		MinBalanceUSD:        c.Limits.MinBalanceUSD,
		ReservePct:           c.Limits.ReservePct,
	}
}

// RiskBreaker maps the TOML breaker section onto the risk package's
// breaker thresholds.
func (c *Config) RiskBreaker() risk.BreakerConfig {
	return risk.BreakerConfig{
		MaxLossInWindow:        c.Breaker.MaxLossInWindow,
		LossWindow:             c.Breaker.LossWindow.Duration,
		MaxConsecutiveErrors:   c.Breaker.MaxConsecutiveErrors,
		MaxErrorsInWindow:      c.Breaker.MaxErrorsInWindow,
		ErrorWindow:            c.Breaker.ErrorWindow.Duration,
		MaxMarketDowntime:      c.Breaker.MaxMarketDowntime.Duration,
		MinBalanceThresholdPct: c.Breaker.MinBalanceThresholdPct,
		AutoReset:              c.Breaker.AutoReset.Duration,
	}
}

// CollectorConfig maps the trading section onto the collector's config.
func (c *Config) CollectorConfig() collector.Config {
	return collector.Config{
		Markets:         c.Trading.Markets,
		BookDepth:       c.Trading.BookDepth,
		MinNetProfitPct: c.Trading.MinNetProfitPct,
		MaxConcurrent:   c.Trading.MaxConcurrent,
	}
}

// OrchestratorConfig maps the trading section onto the orchestrator's config.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Symbols:           c.Trading.Symbols,
		TradeAmountUSD:    c.Trading.TradeAmountUSD,
		Interval:          c.Trading.Interval.Duration,
		MaxCycles:         c.Trading.MaxCycles,
		Duration:          c.Trading.Duration.Duration,
		MaxTradesPerCycle: c.Trading.MaxTradesPerCycle,
		ExecutionEnabled:  c.Mode == "trade",
	}
}

// PostgresClientConfig maps the postgres section onto the store client config.
func (c *Config) PostgresClientConfig() postgres.ClientConfig {
	return postgres.ClientConfig{
		DSN:      c.Postgres.DSN,
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		Database: c.Postgres.Database,
		User:     c.Postgres.User,
		Password: c.Postgres.Password,
		SSLMode:  c.Postgres.SSLMode,
		MaxConns: c.Postgres.PoolMaxConns,
		MinConns: c.Postgres.PoolMinConns,
	}
}

// RedisClientConfig maps the redis section onto the cache client config.
func (c *Config) RedisClientConfig() redis.ClientConfig {
	return redis.ClientConfig{
		Addr:       c.Redis.Addr,
		Password:   c.Redis.Password,
		DB:         c.Redis.DB,
		PoolSize:   c.Redis.PoolSize,
		MaxRetries: c.Redis.MaxRetries,
		TLSEnabled: c.Redis.TLSEnabled,
	}
}

// S3ClientConfig maps the s3 section onto the blob client config.
func (c *Config) S3ClientConfig() s3blob.ClientConfig {
	return s3blob.ClientConfig{
		Endpoint:       c.S3.Endpoint,
		Region:         c.S3.Region,
		Bucket:         c.S3.Bucket,
		AccessKey:      c.S3.AccessKey,
		SecretKey:      c.S3.SecretKey,
		UseSSL:         c.S3.UseSSL,
		ForcePathStyle: c.S3.ForcePathStyle,
	}
}

// NotifyEvents converts the configured event names to typed events.
func (c *Config) NotifyEvents() []notify.Event {
	events := make([]notify.Event, 0, len(c.Notify.Events))
	for _, ev := range c.Notify.Events {
		events = append(events, notify.Event(ev))
	}
	return events
}
