package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"whalesignal"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Lookback   LookbackConfig   `yaml:"lookback"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Source     SourceConfig     `yaml:"source"`
	Notify     NotifyConfig     `yaml:"notify"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// InstrumentConfig identifies the single contract the engine watches.
type InstrumentConfig struct {
	InstID     string `yaml:"inst_id"`
	Underlying string `yaml:"underlying"`
	InstType   string `yaml:"inst_type"`
	Currency   string `yaml:"currency"`
}

type LookbackConfig struct {
	CandleInterval     string `yaml:"candle_interval"`
	Candles            int    `yaml:"candles"`
	PriceTrendWindow   int    `yaml:"price_trend_window"`
	Trades             int    `yaml:"trades"`
	Liquidations       int    `yaml:"liquidations"`
	OpenInterestPoints int    `yaml:"open_interest_points"`
	OpenInterestPeriod string `yaml:"open_interest_period"`
}

type StrategyConfig struct {
	LiquidationRatio float64 `yaml:"liquidation_ratio"`
	ATRMultiplier    float64 `yaml:"atr_multiplier"`
	RewardRiskRatio  float64 `yaml:"reward_risk_ratio"`
}

type SchedulerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
	ClearScreen  bool          `yaml:"clear_screen"`
}

type SourceConfig struct {
	Okx OkxSourceConfig `yaml:"okx"`
}

type OkxSourceConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Timeout   time.Duration   `yaml:"timeout"`
	UserAgent string          `yaml:"user_agent"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BotToken     string        `yaml:"bot_token"`
	ChatID       string        `yaml:"chat_id"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	StartMessage string        `yaml:"start_message"`
}

type DashboardConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogHistory      int           `yaml:"log_history"`
	MetricsHistory  int           `yaml:"metrics_history"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level          string        `yaml:"level"`
	Format         string        `yaml:"format"`
	Output         string        `yaml:"output"`
	MaxAge         int           `yaml:"max_age"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// Default returns a configuration populated with the built-in defaults.
// Underlying and currency are derived from the instrument during validation.
func Default() Config {
	return Config{
		App: AppConfig{Name: "whalesignal", Version: "dev"},
		Instrument: InstrumentConfig{
			InstID:   "SUI-USDT-SWAP",
			InstType: "SWAP",
		},
		Lookback: LookbackConfig{
			CandleInterval:     "15m",
			Candles:            15,
			PriceTrendWindow:   5,
			Trades:             200,
			Liquidations:       100,
			OpenInterestPoints: 5,
			OpenInterestPeriod: "5m",
		},
		Strategy: StrategyConfig{
			LiquidationRatio: 1.5,
			ATRMultiplier:    1.5,
			RewardRiskRatio:  2,
		},
		Scheduler: SchedulerConfig{
			Interval:     60 * time.Second,
			CycleTimeout: 20 * time.Second,
			ClearScreen:  true,
		},
		Source: SourceConfig{
			Okx: OkxSourceConfig{
				BaseURL:   "https://www.okx.com",
				Timeout:   10 * time.Second,
				UserAgent: "whalesignal/1.0",
				RateLimit: RateLimitConfig{RequestsPerSecond: 5, BurstSize: 5},
			},
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{
				BaseURL:      "https://api.telegram.org",
				Timeout:      10 * time.Second,
				StartMessage: "Start bot",
			},
		},
		Dashboard: DashboardConfig{
			Address:         "0.0.0.0:8080",
			RefreshInterval: 5 * time.Second,
			LogHistory:      200,
			MetricsHistory:  200,
		},
		Metrics: MetricsConfig{
			Prometheus: true,
			CloudWatch: CloudWatchConfig{Namespace: "WhaleSignal"},
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			Output:         "stdout",
			ReportInterval: 30 * time.Second,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OKX_BASE_URL"); v != "" {
		cfg.Source.Okx.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("WHALESIGNAL_INST_ID"); v != "" {
		cfg.Instrument.InstID = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.Telegram.BotToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.Telegram.ChatID = strings.TrimSpace(v)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			cfg.Metrics.CloudWatch.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			cfg.Metrics.CloudWatch.SecretAccessKey = strings.TrimSpace(v)
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("whalesignal.name is required")
	}

	if strings.TrimSpace(cfg.Instrument.InstID) == "" {
		return fmt.Errorf("instrument.inst_id is required")
	}
	if cfg.Instrument.Underlying == "" {
		cfg.Instrument.Underlying = deriveUnderlying(cfg.Instrument.InstID)
	}
	if cfg.Instrument.Currency == "" {
		cfg.Instrument.Currency = strings.SplitN(cfg.Instrument.Underlying, "-", 2)[0]
	}

	if cfg.Lookback.CandleInterval == "" {
		return fmt.Errorf("lookback.candle_interval is required")
	}
	if cfg.Lookback.Candles < 2 {
		return fmt.Errorf("lookback.candles must be at least 2")
	}
	if cfg.Lookback.PriceTrendWindow < 2 {
		return fmt.Errorf("lookback.price_trend_window must be at least 2")
	}
	if cfg.Lookback.PriceTrendWindow > cfg.Lookback.Candles {
		return fmt.Errorf("lookback.price_trend_window must not exceed lookback.candles")
	}
	if cfg.Lookback.Trades <= 0 {
		return fmt.Errorf("lookback.trades must be greater than 0")
	}
	if cfg.Lookback.Liquidations <= 0 {
		return fmt.Errorf("lookback.liquidations must be greater than 0")
	}
	if cfg.Lookback.OpenInterestPoints < 2 {
		return fmt.Errorf("lookback.open_interest_points must be at least 2")
	}

	if cfg.Strategy.LiquidationRatio <= 0 {
		return fmt.Errorf("strategy.liquidation_ratio must be greater than 0")
	}
	if cfg.Strategy.ATRMultiplier <= 0 {
		return fmt.Errorf("strategy.atr_multiplier must be greater than 0")
	}
	if cfg.Strategy.RewardRiskRatio <= 0 {
		return fmt.Errorf("strategy.reward_risk_ratio must be greater than 0")
	}

	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than 0")
	}
	if cfg.Scheduler.CycleTimeout <= 0 || cfg.Scheduler.CycleTimeout > cfg.Scheduler.Interval {
		cfg.Scheduler.CycleTimeout = cfg.Scheduler.Interval
	}

	if cfg.Source.Okx.BaseURL == "" {
		return fmt.Errorf("source.okx.base_url is required")
	}

	tg := cfg.Notify.Telegram
	if tg.Enabled && (tg.BotToken == "" || tg.ChatID == "") {
		if IsProductionLike(AppEnvironment()) {
			return fmt.Errorf("notify.telegram.bot_token and notify.telegram.chat_id are required when telegram is enabled")
		}
		cfg.Notify.Telegram.Enabled = false
	}

	cw := cfg.Metrics.CloudWatch
	if cw.Enabled && cw.Region == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when cloudwatch is enabled")
	}

	return nil
}

// deriveUnderlying maps an OKX swap instrument ("SUI-USDT-SWAP") to its
// underlying ("SUI-USDT").
func deriveUnderlying(instID string) string {
	return strings.TrimSuffix(strings.TrimSpace(instID), "-SWAP")
}
