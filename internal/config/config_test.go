package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHedgeDefaults(t *testing.T) {
	cfg := &Config{Hedge: HedgeConfig{HedgeProductID: 3136}}
	applyDefaults(cfg)
	if cfg.Hedge.DeltaThreshold != nil || cfg.Hedge.DeltaThresholdValue() != 0.15 {
		t.Fatalf("expected delta threshold 0.15, got %v", cfg.Hedge.DeltaThresholdValue())
	}
	if cfg.Hedge.CheckInterval != 30*time.Second {
		t.Fatalf("expected check interval 30s, got %v", cfg.Hedge.CheckInterval)
	}
	if cfg.Hedge.MinHedgeSize != 0 {
		t.Fatalf("expected min hedge size 0, got %v", cfg.Hedge.MinHedgeSize)
	}
	if cfg.Hedge.AutoStart {
		t.Fatalf("expected auto start disabled by default")
	}
}

func TestRESTDefaults(t *testing.T) {
	cfg := &Config{REST: RESTConfig{BaseURL: "https://example.com/"}}
	applyDefaults(cfg)
	if cfg.REST.BaseURL != "https://example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.REST.BaseURL)
	}
	if cfg.REST.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", cfg.REST.Timeout)
	}
}

func TestHTTPAndMetricsDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if !cfg.HTTP.EnabledValue() {
		t.Fatalf("expected http enabled default")
	}
	if cfg.HTTP.Addr != "127.0.0.1:8080" {
		t.Fatalf("expected http addr default, got %q", cfg.HTTP.Addr)
	}
	if !cfg.Metrics.EnabledValue() {
		t.Fatalf("expected metrics enabled default")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Fatalf("expected metrics path default, got %q", cfg.Metrics.Path)
	}
}

func TestValidateRequiresHedgeProduct(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing hedge product id")
	}
}

func TestValidateRejectsNegativeThreshold(t *testing.T) {
	threshold := -0.1
	cfg := &Config{Hedge: HedgeConfig{HedgeProductID: 1, DeltaThreshold: &threshold}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative delta threshold")
	}
}

func TestValidateRejectsNegativeInterval(t *testing.T) {
	cfg := &Config{Hedge: HedgeConfig{HedgeProductID: 1, CheckInterval: -time.Second}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative check interval")
	}
}

func TestValidateRejectsNegativeMinHedgeSize(t *testing.T) {
	cfg := &Config{Hedge: HedgeConfig{HedgeProductID: 1, MinHedgeSize: -1}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative min hedge size")
	}
}

func TestValidateTimescaleRequiresDSN(t *testing.T) {
	cfg := &Config{
		Hedge:     HedgeConfig{HedgeProductID: 1},
		Timescale: TimescaleConfig{Enabled: true},
	}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing timescale dsn")
	}
}

func TestValidateOperatorRequiresTelegram(t *testing.T) {
	cfg := &Config{
		Hedge:    HedgeConfig{HedgeProductID: 1},
		Telegram: TelegramConfig{OperatorEnabled: true},
	}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for operator without telegram")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "" +
		"log:\n" +
		"  level: debug\n" +
		"hedge:\n" +
		"  delta_threshold: 0.2\n" +
		"  check_interval: 5s\n" +
		"  min_hedge_size: 1\n" +
		"  hedge_product_id: 3136\n" +
		"  auto_start: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
	if cfg.Hedge.DeltaThresholdValue() != 0.2 || cfg.Hedge.CheckInterval != 5*time.Second {
		t.Fatalf("unexpected hedge config: %+v", cfg.Hedge)
	}
	if cfg.Hedge.MinHedgeSize != 1 || cfg.Hedge.HedgeProductID != 3136 || !cfg.Hedge.AutoStart {
		t.Fatalf("unexpected hedge config: %+v", cfg.Hedge)
	}
}

func TestLoadKeepsExplicitZeroThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "" +
		"hedge:\n" +
		"  delta_threshold: 0\n" +
		"  hedge_product_id: 3136\n" +
		"http:\n" +
		"  allowed_origins:\n" +
		"    - dashboard.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Hedge.DeltaThreshold == nil || cfg.Hedge.DeltaThresholdValue() != 0 {
		t.Fatalf("expected explicit zero threshold kept, got %v", cfg.Hedge.DeltaThresholdValue())
	}
	if len(cfg.HTTP.AllowedOrigins) != 1 || cfg.HTTP.AllowedOrigins[0] != "dashboard.example.com" {
		t.Fatalf("unexpected allowed origins: %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
