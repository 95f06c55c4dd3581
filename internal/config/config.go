package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Venue     VenueConfig     `yaml:"venue"`
	State     StateConfig     `yaml:"state"`
	Hedge     HedgeConfig     `yaml:"hedge"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	History   HistoryConfig   `yaml:"history"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type VenueConfig struct {
	RESTURL        string        `yaml:"rest_url"`
	WSURL          string        `yaml:"ws_url"`
	Timeout        time.Duration `yaml:"timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	SlippagePct    float64       `yaml:"slippage_pct"`
	PriceMaxAge    time.Duration `yaml:"price_max_age"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// HedgeConfig describes the collateral position being hedged and how its
// exposure splits across the hedgeable assets.
type HedgeConfig struct {
	CollateralToken     string             `yaml:"collateral_token"`
	TargetWeights       map[string]float64 `yaml:"target_weights"`
	MinOrderSizes       map[string]float64 `yaml:"min_order_sizes"`
	DefaultThresholdPct float64            `yaml:"default_threshold_pct"`
}

type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
	CallTimeout  time.Duration `yaml:"call_timeout"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type HistoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DSN       string `yaml:"dsn"`
	Schema    string `yaml:"schema"`
	QueueSize int    `yaml:"queue_size"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

// Telegram credentials are secrets and may come from the environment
// instead of the config file. Env values win.
func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("JLP_TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("JLP_TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Venue.RESTURL == "" {
		cfg.Venue.RESTURL = "https://api.hyperliquid.xyz"
	}
	if cfg.Venue.WSURL == "" {
		cfg.Venue.WSURL = "wss://api.hyperliquid.xyz/ws"
	}
	if cfg.Venue.Timeout == 0 {
		cfg.Venue.Timeout = 10 * time.Second
	}
	if cfg.Venue.ReconnectDelay == 0 {
		cfg.Venue.ReconnectDelay = 3 * time.Second
	}
	if cfg.Venue.PingInterval == 0 {
		cfg.Venue.PingInterval = 30 * time.Second
	}
	if cfg.Venue.SlippagePct == 0 {
		cfg.Venue.SlippagePct = 1
	}
	if cfg.Venue.PriceMaxAge == 0 {
		cfg.Venue.PriceMaxAge = 30 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/jlp-hedge-bot.db"
	}
	if cfg.Hedge.CollateralToken == "" {
		cfg.Hedge.CollateralToken = "JLP"
	}
	if len(cfg.Hedge.TargetWeights) == 0 {
		cfg.Hedge.TargetWeights = map[string]float64{
			"SOL": 0.47,
			"ETH": 0.08,
			"BTC": 0.13,
		}
	}
	if len(cfg.Hedge.MinOrderSizes) == 0 {
		cfg.Hedge.MinOrderSizes = map[string]float64{
			"SOL": 0.01,
			"ETH": 0.001,
			"BTC": 0.0001,
		}
	}
	if cfg.Hedge.DefaultThresholdPct == 0 {
		cfg.Hedge.DefaultThresholdPct = 5
	}
	if cfg.Scheduler.TickInterval == 0 {
		cfg.Scheduler.TickInterval = time.Minute
	}
	if cfg.Scheduler.CycleTimeout == 0 {
		cfg.Scheduler.CycleTimeout = 2 * time.Minute
	}
	if cfg.Scheduler.CallTimeout == 0 {
		cfg.Scheduler.CallTimeout = 10 * time.Second
	}
	if cfg.History.Schema == "" {
		cfg.History.Schema = "public"
	}
	if cfg.History.QueueSize == 0 {
		cfg.History.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	var weightSum float64
	for asset, weight := range cfg.Hedge.TargetWeights {
		if weight < 0 {
			return fmt.Errorf("hedge.target_weights.%s must be >= 0", asset)
		}
		weightSum += weight
	}
	if weightSum > 1 {
		return errors.New("hedge.target_weights must sum to at most 1")
	}
	for asset, size := range cfg.Hedge.MinOrderSizes {
		if size < 0 {
			return fmt.Errorf("hedge.min_order_sizes.%s must be >= 0", asset)
		}
	}
	if cfg.Hedge.DefaultThresholdPct < 0 || cfg.Hedge.DefaultThresholdPct > 100 {
		return errors.New("hedge.default_threshold_pct must be between 0 and 100")
	}
	if cfg.Venue.SlippagePct < 0 || cfg.Venue.SlippagePct > 100 {
		return errors.New("venue.slippage_pct must be between 0 and 100")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	if cfg.History.Enabled && cfg.History.DSN == "" {
		return errors.New("history.dsn is required when history is enabled")
	}
	return nil
}
