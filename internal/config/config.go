package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the full agent configuration
type Config struct {
	Env         string `yaml:"env" env:"KIMAI_AGENT_ENV" env-default:"production"`
	StoragePath string `yaml:"storage_path" env:"KIMAI_AGENT_STORAGE_PATH"`

	Log struct {
		Level  string `yaml:"level" env:"KIMAI_AGENT_LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"KIMAI_AGENT_LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`

	Kimai struct {
		RefreshInterval int `yaml:"refresh_interval" env:"KIMAI_AGENT_REFRESH_INTERVAL" env-default:"30"` // seconds
		ConnectTimeout  int `yaml:"connect_timeout" env:"KIMAI_AGENT_CONNECT_TIMEOUT" env-default:"15"`   // seconds
		RequestTimeout  int `yaml:"request_timeout" env:"KIMAI_AGENT_REQUEST_TIMEOUT" env-default:"30"`   // seconds
		RecentCount     int `yaml:"recent_count" env:"KIMAI_AGENT_RECENT_COUNT" env-default:"5"`
		HistoryPageSize int `yaml:"history_page_size" env:"KIMAI_AGENT_HISTORY_PAGE_SIZE" env-default:"50"`
	} `yaml:"kimai"`

	Notifications struct {
		Enabled bool `yaml:"enabled" env:"KIMAI_AGENT_NOTIFICATIONS" env-default:"true"`
	} `yaml:"notifications"`

	Tray struct {
		Enabled bool `yaml:"enabled" env:"KIMAI_AGENT_TRAY" env-default:"true"`
	} `yaml:"tray"`

	CurrencySuffix string `yaml:"currency_suffix" env:"KIMAI_AGENT_CURRENCY_SUFFIX" env-default:"EUR"`
}

// LoadConfig reads configuration from the given YAML file with environment
// variable overrides. A missing file is not an error; defaults and
// environment values apply.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	}

	if cfg.StoragePath == "" {
		dir, err := defaultStorageDir()
		if err != nil {
			return nil, err
		}
		cfg.StoragePath = filepath.Join(dir, "kimai-agent.db")
	}

	return &cfg, nil
}

func defaultStorageDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".local", "share", "kimai-agent")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	return dir, nil
}
