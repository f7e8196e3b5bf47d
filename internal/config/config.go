package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"riskwatch/internal/logging"
	"riskwatch/internal/risk"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Source    SourceConfig    `mapstructure:"source"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the price cache.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SchedulerConfig governs the periodic re-evaluation cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SourceConfig selects and tunes the price source.
type SourceConfig struct {
	Kind     string      `mapstructure:"kind"`
	Ticker   string      `mapstructure:"ticker"`
	Start    string      `mapstructure:"start"`
	Lookback int         `mapstructure:"lookback_days"`
	CSVPath  string      `mapstructure:"csv_path"`
	Yahoo    YahooConfig `mapstructure:"yahoo"`
}

// YahooConfig captures Yahoo chart API connectivity.
type YahooConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxElapsed        time.Duration `mapstructure:"max_elapsed"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// RiskConfig holds the estimation and backtest parameters.
type RiskConfig struct {
	WindowDays   int     `mapstructure:"window_days"`
	TestDays     int     `mapstructure:"test_days"`
	AlphaVaR     float64 `mapstructure:"alpha_var"`
	AlphaES      float64 `mapstructure:"alpha_es"`
	Significance float64 `mapstructure:"significance"`
}

// AlertingConfig defines when and where Kupiec rejections are reported.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets export defaults.
type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	ChartWidth  int    `mapstructure:"chart_width"`
	ChartHeight int    `mapstructure:"chart_height"`
}

// Source kinds.
const (
	SourceYahoo    = "yahoo"
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RISKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "riskwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x72736b77))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("source.kind", SourceYahoo)
	v.SetDefault("source.ticker", "^FCHI")
	v.SetDefault("source.lookback_days", 1500)
	v.SetDefault("source.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("source.yahoo.request_timeout", "15s")
	v.SetDefault("source.yahoo.user_agent", "riskwatch/1.0")
	v.SetDefault("source.yahoo.max_retries", 4)
	v.SetDefault("source.yahoo.initial_backoff", "500ms")
	v.SetDefault("source.yahoo.max_elapsed", "1m")
	v.SetDefault("source.yahoo.requests_per_second", 2.0)

	params := risk.DefaultParams()
	v.SetDefault("risk.window_days", params.WindowDays)
	v.SetDefault("risk.test_days", params.TestDays)
	v.SetDefault("risk.alpha_var", params.AlphaVaR)
	v.SetDefault("risk.alpha_es", params.AlphaES)
	v.SetDefault("risk.significance", 0.05)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.dir", "out")
	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceYahoo, SourceCSV, SourcePostgres:
	default:
		return fmt.Errorf("source.kind must be one of yahoo, csv, postgres (got %q)", c.Source.Kind)
	}
	if c.Source.Kind == SourceCSV && c.Source.CSVPath == "" {
		return fmt.Errorf("source.csv_path is required when source.kind is csv")
	}
	if c.Source.Kind == SourcePostgres && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when source.kind is postgres")
	}
	if c.Source.Start != "" {
		if _, err := time.Parse("2006-01-02", c.Source.Start); err != nil {
			return fmt.Errorf("source.start must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Source.Lookback < 0 {
		return fmt.Errorf("source.lookback_days cannot be negative")
	}
	if c.Risk.WindowDays <= 0 {
		return fmt.Errorf("risk.window_days must be greater than zero")
	}
	if c.Risk.TestDays <= 0 {
		return fmt.Errorf("risk.test_days must be greater than zero")
	}
	if c.Risk.AlphaVaR <= 0 || c.Risk.AlphaVaR >= 1 {
		return fmt.Errorf("risk.alpha_var must be in (0,1)")
	}
	if c.Risk.AlphaES <= 0 || c.Risk.AlphaES >= 1 {
		return fmt.Errorf("risk.alpha_es must be in (0,1)")
	}
	if c.Risk.Significance <= 0 || c.Risk.Significance >= 1 {
		return fmt.Errorf("risk.significance must be in (0,1)")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// StartDate resolves the first day of history to request relative to end.
func (c *Config) StartDate(end time.Time) time.Time {
	if c.Source.Start != "" {
		if t, err := time.Parse("2006-01-02", c.Source.Start); err == nil {
			return t
		}
	}
	return end.AddDate(0, 0, -c.Source.Lookback)
}
