package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHedgeDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Hedge.CollateralToken != "JLP" {
		t.Fatalf("expected collateral token JLP, got %q", cfg.Hedge.CollateralToken)
	}
	if cfg.Hedge.DefaultThresholdPct != 5 {
		t.Fatalf("expected default threshold 5, got %v", cfg.Hedge.DefaultThresholdPct)
	}
	if got := cfg.Hedge.TargetWeights["SOL"]; got != 0.47 {
		t.Fatalf("expected SOL weight 0.47, got %v", got)
	}
	if got := cfg.Hedge.TargetWeights["ETH"]; got != 0.08 {
		t.Fatalf("expected ETH weight 0.08, got %v", got)
	}
	if got := cfg.Hedge.TargetWeights["BTC"]; got != 0.13 {
		t.Fatalf("expected BTC weight 0.13, got %v", got)
	}
	if got := cfg.Hedge.MinOrderSizes["SOL"]; got <= 0 {
		t.Fatalf("expected SOL min order size default, got %v", got)
	}
}

func TestSchedulerDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Scheduler.TickInterval != time.Minute {
		t.Fatalf("expected tick interval 1m, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.CycleTimeout <= 0 {
		t.Fatalf("expected cycle timeout default, got %v", cfg.Scheduler.CycleTimeout)
	}
	if cfg.Scheduler.CallTimeout <= 0 {
		t.Fatalf("expected call timeout default, got %v", cfg.Scheduler.CallTimeout)
	}
}

func TestVenueDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Venue.RESTURL == "" || cfg.Venue.WSURL == "" {
		t.Fatalf("expected venue url defaults, got %q %q", cfg.Venue.RESTURL, cfg.Venue.WSURL)
	}
	if cfg.Venue.SlippagePct != 1 {
		t.Fatalf("expected slippage default 1, got %v", cfg.Venue.SlippagePct)
	}
	if cfg.Venue.PriceMaxAge <= 0 {
		t.Fatalf("expected price max age default, got %v", cfg.Venue.PriceMaxAge)
	}
}

func TestValidateRejectsOverweight(t *testing.T) {
	cfg := &Config{Hedge: HedgeConfig{TargetWeights: map[string]float64{
		"SOL": 0.8,
		"ETH": 0.3,
	}}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for weights summing above 1")
	}
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	cfg := &Config{Hedge: HedgeConfig{TargetWeights: map[string]float64{"SOL": -0.1}}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative weight")
	}
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	cfg := &Config{Hedge: HedgeConfig{DefaultThresholdPct: 150}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for threshold above 100")
	}
}

func TestValidateRejectsTelegramEnabledWithoutConfig(t *testing.T) {
	t.Setenv("JLP_TELEGRAM_TOKEN", "")
	t.Setenv("JLP_TELEGRAM_CHAT_ID", "")
	cfg := &Config{Telegram: TelegramConfig{Enabled: true}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing telegram token/chat_id")
	}
}

func TestTelegramEnvOverridesConfig(t *testing.T) {
	t.Setenv("JLP_TELEGRAM_TOKEN", "env-token")
	t.Setenv("JLP_TELEGRAM_CHAT_ID", "123")
	cfg := &Config{Telegram: TelegramConfig{
		Enabled: true,
		Token:   "config-token",
		ChatID:  "999",
	}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("expected env token override, got %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != "123" {
		t.Fatalf("expected env chat id override, got %q", cfg.Telegram.ChatID)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected valid config with env overrides, got %v", err)
	}
}

func TestValidateRejectsHistoryWithoutDSN(t *testing.T) {
	cfg := &Config{History: HistoryConfig{Enabled: true}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for history without dsn")
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := []byte(`
log:
  level: debug
hedge:
  collateral_token: JLP
  default_threshold_pct: 10
  target_weights:
    SOL: 0.5
scheduler:
  tick_interval: 30s
`)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
	if cfg.Hedge.DefaultThresholdPct != 10 {
		t.Fatalf("expected threshold 10, got %v", cfg.Hedge.DefaultThresholdPct)
	}
	if cfg.Scheduler.TickInterval != 30*time.Second {
		t.Fatalf("expected tick interval 30s, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Venue.RESTURL == "" {
		t.Fatalf("expected rest url default after load")
	}
}
