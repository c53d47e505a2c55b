package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("Env = %q", cfg.Env)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log defaults = %+v", cfg.Log)
	}
	if cfg.Kimai.RefreshInterval != 30 {
		t.Errorf("RefreshInterval = %d", cfg.Kimai.RefreshInterval)
	}
	if cfg.Kimai.ConnectTimeout != 15 || cfg.Kimai.RequestTimeout != 30 {
		t.Errorf("timeouts = %d/%d", cfg.Kimai.ConnectTimeout, cfg.Kimai.RequestTimeout)
	}
	if cfg.Kimai.RecentCount != 5 || cfg.Kimai.HistoryPageSize != 50 {
		t.Errorf("paging = %d/%d", cfg.Kimai.RecentCount, cfg.Kimai.HistoryPageSize)
	}
	if !cfg.Notifications.Enabled || !cfg.Tray.Enabled {
		t.Error("notifications and tray should default to enabled")
	}
	if cfg.CurrencySuffix != "EUR" {
		t.Errorf("CurrencySuffix = %q", cfg.CurrencySuffix)
	}
	if cfg.StoragePath == "" {
		t.Error("StoragePath not defaulted")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
storage_path: /tmp/test-agent.db
log:
  level: debug
  format: console
kimai:
  refresh_interval: 10
currency_suffix: USD
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StoragePath != "/tmp/test-agent.db" {
		t.Errorf("StoragePath = %q", cfg.StoragePath)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Kimai.RefreshInterval != 10 {
		t.Errorf("RefreshInterval = %d", cfg.Kimai.RefreshInterval)
	}
	if cfg.CurrencySuffix != "USD" {
		t.Errorf("CurrencySuffix = %q", cfg.CurrencySuffix)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("KIMAI_AGENT_LOG_LEVEL", "warn")
	t.Setenv("KIMAI_AGENT_STORAGE_PATH", "/tmp/env-agent.db")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want env override", cfg.Log.Level)
	}
	if cfg.StoragePath != "/tmp/env-agent.db" {
		t.Errorf("StoragePath = %q", cfg.StoragePath)
	}
}
